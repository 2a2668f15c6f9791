package processors

import (
	"math"
	"slices"

	"imageeditor/internal/imatrix"
)

func createGaussianKernel(size int, sigma float64) []float64 {
	kernel := make([]float64, size)
	radius := size / 2
	for i := -radius; i < size-radius; i++ {
		x := float64(i)
		kernel[i+radius] = math.Exp(-(x*x)/(2*sigma*sigma)) / (sigma * math.Sqrt(2*math.Pi))
	}
	return kernel
}

func createRectangularKernel(size int) []float64 {
	kernel := make([]float64, size)
	for i := range kernel {
		kernel[i] = 1 / float64(size)
	}
	return kernel
}

// convolve applies a 1-D kernel along one axis. Taps falling outside the
// image are dropped and the remaining weights renormalized.
func convolve(src, dst imatrix.Image, kernel []float64, horizontal bool) {
	radius := len(kernel) / 2
	imatrix.ForEachRow(src.Height, func(y int) {
		for x := 0; x < src.Width; x++ {
			var sumR, sumG, sumB, weightSum float64
			for k := -radius; k < len(kernel)-radius; k++ {
				px, py := x, y+k
				if horizontal {
					px, py = x+k, y
				}
				if px < 0 || px >= src.Width || py < 0 || py >= src.Height {
					continue
				}
				w := kernel[k+radius]
				p := src.Matrix[py][px]
				sumR += float64(p[0]) * w
				sumG += float64(p[1]) * w
				sumB += float64(p[2]) * w
				weightSum += w
			}
			if weightSum > 0 {
				dst.Matrix[y][x] = [3]uint8{
					imatrix.Clip(sumR / weightSum),
					imatrix.Clip(sumG / weightSum),
					imatrix.Clip(sumB / weightSum),
				}
			}
		}
	})
}

func separable(img imatrix.Image, kernel []float64) imatrix.Image {
	tmp := img.Copy()
	out := img.Copy()
	convolve(img, tmp, kernel, true)
	convolve(tmp, out, kernel, false)
	return out
}

// GaussianFilter blurs with a separable gaussian of the given edge length.
func GaussianFilter(img imatrix.Image, size int, sigma float64) imatrix.Image {
	if sigma <= 0 || size <= 1 {
		return img.Copy()
	}
	return separable(img, createGaussianKernel(size, sigma))
}

// RectangularFilter is a separable box blur.
func RectangularFilter(img imatrix.Image, size int) imatrix.Image {
	if size <= 1 {
		return img.Copy()
	}
	return separable(img, createRectangularKernel(size))
}

func MedianFilter(img imatrix.Image, size int) imatrix.Image {
	out := img.Copy()
	if size <= 1 {
		return out
	}
	radius := size / 2
	imatrix.ForEachRow(img.Height, func(y int) {
		var window [3][]uint8
		for k := range window {
			window[k] = make([]uint8, 0, size*size)
		}
		for x := 0; x < img.Width; x++ {
			for k := range window {
				window[k] = window[k][:0]
			}
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= img.Width || ny < 0 || ny >= img.Height {
						continue
					}
					p := img.Matrix[ny][nx]
					window[0] = append(window[0], p[0])
					window[1] = append(window[1], p[1])
					window[2] = append(window[2], p[2])
				}
			}
			out.Matrix[y][x] = [3]uint8{median(window[0]), median(window[1]), median(window[2])}
		}
	})
	return out
}

// median sorts data in place.
func median(data []uint8) uint8 {
	if len(data) == 0 {
		return 0
	}
	slices.Sort(data)
	return data[len(data)/2]
}

// SigmaFilter averages the neighbours whose every channel lies within k*sigma
// of the centre pixel.
func SigmaFilter(img imatrix.Image, size int, sigma, k float64) imatrix.Image {
	out := img.Copy()
	if size <= 1 {
		return out
	}
	radius := (size - 1) / 2
	limit := k * sigma
	imatrix.ForEachRow(img.Height, func(y int) {
		for x := 0; x < img.Width; x++ {
			center := img.Matrix[y][x]
			var sumR, sumG, sumB float64
			var count int
			for dy := -radius; dy <= radius; dy++ {
				for dx := -radius; dx <= radius; dx++ {
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= img.Width || ny < 0 || ny >= img.Height {
						continue
					}
					n := img.Matrix[ny][nx]
					if within(n[0], center[0], limit) && within(n[1], center[1], limit) && within(n[2], center[2], limit) {
						sumR += float64(n[0])
						sumG += float64(n[1])
						sumB += float64(n[2])
						count++
					}
				}
			}
			if count > 0 {
				c := float64(count)
				out.Matrix[y][x] = [3]uint8{imatrix.Clip(sumR / c), imatrix.Clip(sumG / c), imatrix.Clip(sumB / c)}
			}
		}
	})
	return out
}

func within(a, b uint8, limit float64) bool {
	return math.Abs(float64(a)-float64(b)) <= limit
}

// UnsharpMasking adds power times the detail lost by blurring.
func UnsharpMasking(img, blurred imatrix.Image, power float64) imatrix.Image {
	out := img.Copy()
	if power <= 0 || !img.SameSize(blurred) {
		return out
	}
	imatrix.ForEachRow(img.Height, func(y int) {
		for x := 0; x < img.Width; x++ {
			for k := 0; k < 3; k++ {
				v := imatrix.PixelToContinuous(img.Matrix[y][x][k])
				b := imatrix.PixelToContinuous(blurred.Matrix[y][x][k])
				out.Matrix[y][x][k] = imatrix.Clip((v + power*(v-b)) * 255)
			}
		}
	})
	return out
}
