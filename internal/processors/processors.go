// Package processors holds the per-pixel and neighbourhood operations used by
// the editing pipeline. Point operations mutate their argument; anything that
// needs to read neighbours works on a copy and returns the result.
package processors

import (
	"math"

	"imageeditor/internal/domain"
	"imageeditor/internal/imatrix"
)

const (
	contrastGamma = 30.0
	ln2           = math.Ln2
)

// Channel returns a new image keeping only the requested channel. Gray
// replicates the luma into all three channels.
func Channel(img imatrix.Image, ch domain.ChannelType) imatrix.Image {
	out := imatrix.New(img.Width, img.Height)
	imatrix.ForEachRow(img.Height, func(y int) {
		for x, p := range img.Matrix[y] {
			switch ch {
			case domain.ChannelRed:
				out.Matrix[y][x] = [3]uint8{p[0], 0, 0}
			case domain.ChannelGreen:
				out.Matrix[y][x] = [3]uint8{0, p[1], 0}
			case domain.ChannelBlue:
				out.Matrix[y][x] = [3]uint8{0, 0, p[2]}
			default:
				g := imatrix.Gray(p)
				out.Matrix[y][x] = [3]uint8{g, g, g}
			}
		}
	})
	return out
}

// ChangeBrightness raises normalized samples of one channel to the given power.
func ChangeBrightness(img imatrix.Image, channel int, gamma float64) {
	imatrix.ForEachRow(img.Height, func(y int) {
		row := img.Matrix[y]
		for x := range row {
			v := imatrix.PixelToContinuous(row[x][channel])
			row[x][channel] = imatrix.Clip(math.Pow(v, gamma) * 255)
		}
	})
}

// ChangeContrast blends every sample with a logistic curve around mid-gray.
// contrast > 1 steepens the curve, contrast < 1 flattens it.
func ChangeContrast(img imatrix.Image, contrast float64) {
	if contrast == 1 {
		return
	}
	imatrix.ForEachRow(img.Height, func(y int) {
		row := img.Matrix[y]
		for x := range row {
			for k := 0; k < 3; k++ {
				row[x][k] = imatrix.Clip(contrastSample(imatrix.PixelToContinuous(row[x][k]), contrast) * 255)
			}
		}
	})
}

func contrastSample(v, contrast float64) float64 {
	if contrast > 1 {
		s := 1 / (1 + math.Exp(contrastGamma*(0.5-v)))
		return (contrast-1)*s + (2-contrast)*v
	}
	s := 1 / (1 + math.Exp((0.5-v)/contrastGamma))
	return (1-contrast)*s + contrast*v
}

func Negative(img imatrix.Image) {
	imatrix.ForEachRow(img.Height, func(y int) {
		row := img.Matrix[y]
		for x := range row {
			row[x] = [3]uint8{255 - row[x][0], 255 - row[x][1], 255 - row[x][2]}
		}
	})
}

// VerticalMirror flips the image upside down.
func VerticalMirror(img imatrix.Image) {
	for i, j := 0, img.Height-1; i < j; i, j = i+1, j-1 {
		img.Matrix[i], img.Matrix[j] = img.Matrix[j], img.Matrix[i]
	}
}

// HorizontalMirror flips every row left to right.
func HorizontalMirror(img imatrix.Image) {
	imatrix.ForEachRow(img.Height, func(y int) {
		row := img.Matrix[y]
		for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	})
}

// Magic inverts every sample that lies at least t away from both ends of
// the range.
func Magic(img imatrix.Image, t int) {
	imatrix.ForEachRow(img.Height, func(y int) {
		row := img.Matrix[y]
		for x := range row {
			for k := 0; k < 3; k++ {
				v := int(row[x][k])
				if v+t <= 255 && v-t >= 0 {
					row[x][k] = uint8(255 - v)
				}
			}
		}
	})
}

// ChangeOrder permutes channels. order names the source channel for each
// output position, e.g. "BGR" swaps red and blue.
func ChangeOrder(img imatrix.Image, order string) imatrix.Image {
	var channelMap [3]int
	for i, char := range order {
		if i > 2 {
			break
		}
		switch char {
		case 'R':
			channelMap[i] = 0
		case 'G':
			channelMap[i] = 1
		case 'B':
			channelMap[i] = 2
		}
	}

	out := imatrix.New(img.Width, img.Height)
	imatrix.ForEachRow(img.Height, func(y int) {
		for x, p := range img.Matrix[y] {
			out.Matrix[y][x] = [3]uint8{p[channelMap[0]], p[channelMap[1]], p[channelMap[2]]}
		}
	})
	return out
}

// LogarithmicBrightness maps v to c*ln(1+v)/ln(2), so c=1 keeps both ends fixed.
func LogarithmicBrightness(img imatrix.Image, c float64) {
	img.Apply(logarithmicBrightnessCore, c)
}

func logarithmicBrightnessCore(value float64, c float64) float64 {
	return c * math.Log(1+value) / ln2
}

// Changes renders 1-|a-b| per sample: white where nothing changed.
func Changes(a, b imatrix.Image) imatrix.Image {
	out := imatrix.New(b.Width, b.Height)
	if !a.SameSize(b) {
		return out
	}
	imatrix.ForEachRow(b.Height, func(y int) {
		for x := 0; x < b.Width; x++ {
			for k := 0; k < 3; k++ {
				av := imatrix.PixelToContinuous(a.Matrix[y][x][k])
				bv := imatrix.PixelToContinuous(b.Matrix[y][x][k])
				out.Matrix[y][x][k] = imatrix.Clip((1 - math.Abs(av-bv)) * 255)
			}
		}
	})
	return out
}

func findMaxBrightness(img imatrix.Image) float64 {
	var maxVal uint8
	for y := 0; y < img.Height; y++ {
		for _, p := range img.Matrix[y] {
			maxVal = max(maxVal, p[0], p[1], p[2])
		}
	}
	return float64(maxVal)
}
