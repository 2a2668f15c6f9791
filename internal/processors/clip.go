package processors

import (
	"math"

	"imageeditor/internal/imatrix"
)

// LogarithmicClipAuto compresses the range with c*ln(1+v), c chosen so the
// brightest sample maps to 255.
func LogarithmicClipAuto(img imatrix.Image) imatrix.Image {
	out := img.Copy()
	maxBrightness := findMaxBrightness(out)
	if maxBrightness == 0 {
		return out
	}
	c := 255 / math.Log(1+maxBrightness)
	imatrix.ForEachRow(out.Height, func(y int) {
		row := out.Matrix[y]
		for x := range row {
			for k := 0; k < 3; k++ {
				row[x][k] = imatrix.Clip(c * math.Log(1+float64(row[x][k])))
			}
		}
	})
	return out
}

// PowerClipAuto applies v^gamma on normalized samples and rescales so the
// brightest sample maps to 255.
func PowerClipAuto(img imatrix.Image, gamma float64) imatrix.Image {
	out := img.Copy()
	maxBrightness := findMaxBrightness(out)
	if maxBrightness == 0 || gamma <= 0 {
		return out
	}
	c := 255 / math.Pow(maxBrightness/255, gamma)
	imatrix.ForEachRow(out.Height, func(y int) {
		row := out.Matrix[y]
		for x := range row {
			for k := 0; k < 3; k++ {
				row[x][k] = imatrix.Clip(c * math.Pow(imatrix.PixelToContinuous(row[x][k]), gamma))
			}
		}
	})
	return out
}

// BinaryClip thresholds every sample to 0 or 255.
func BinaryClip(img imatrix.Image, threshold uint8) imatrix.Image {
	out := img.Copy()
	imatrix.ForEachRow(out.Height, func(y int) {
		row := out.Matrix[y]
		for x := range row {
			for k := 0; k < 3; k++ {
				if row[x][k] >= threshold {
					row[x][k] = 255
				} else {
					row[x][k] = 0
				}
			}
		}
	})
	return out
}

// IntensitySliceConstant paints pixels whose channels all lie in [low,high]
// with a constant gray.
func IntensitySliceConstant(img imatrix.Image, low, high, value uint8) imatrix.Image {
	out := img.Copy()
	imatrix.ForEachRow(out.Height, func(y int) {
		row := out.Matrix[y]
		for x, p := range row {
			if p[0] >= low && p[0] <= high && p[1] >= low && p[1] <= high && p[2] >= low && p[2] <= high {
				row[x] = [3]uint8{value, value, value}
			}
		}
	})
	return out
}
