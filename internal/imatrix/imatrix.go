package imatrix

import (
	"image"
	"image/color"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Image is an 8-bit RGB raster addressed as Matrix[y][x][channel].
type Image struct {
	Matrix [][][3]uint8
	Height int
	Width  int
}

// Core is a point function over a normalized sample in [0,1].
type Core func(value float64, c float64) float64

var workers atomic.Int32

func init() {
	workers.Store(int32(runtime.NumCPU()))
}

// SetWorkers bounds the number of goroutines used by row-parallel operations.
func SetWorkers(n int) {
	if n < 1 {
		n = 1
	}
	workers.Store(int32(n))
}

func Workers() int {
	return int(workers.Load())
}

func New(width, height int) Image {
	m := make([][][3]uint8, height)
	for y := range m {
		m[y] = make([][3]uint8, width)
	}
	return Image{Matrix: m, Width: width, Height: height}
}

// FromImage converts any decoded image into an Image, dropping alpha.
func FromImage(img image.Image) Image {
	b := img.Bounds()
	out := New(b.Dx(), b.Dy())
	ForEachRow(out.Height, func(y int) {
		for x := 0; x < out.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out.Matrix[y][x] = [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8)}
		}
	})
	return out
}

// ToRGBA renders the matrix as an opaque RGBA image.
func (img Image) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	ForEachRow(img.Height, func(y int) {
		for x := 0; x < img.Width; x++ {
			p := img.Matrix[y][x]
			dst.SetRGBA(x, y, color.RGBA{R: p[0], G: p[1], B: p[2], A: 255})
		}
	})
	return dst
}

func (img Image) Copy() Image {
	out := Image{
		Matrix: make([][][3]uint8, img.Height),
		Height: img.Height,
		Width:  img.Width,
	}
	for y := 0; y < img.Height; y++ {
		out.Matrix[y] = make([][3]uint8, img.Width)
		copy(out.Matrix[y], img.Matrix[y])
	}
	return out
}

func (img Image) SameSize(other Image) bool {
	return img.Width == other.Width && img.Height == other.Height
}

// Apply runs core on every sample in place.
func (img Image) Apply(core Core, c float64) {
	ForEachRow(img.Height, func(y int) {
		row := img.Matrix[y]
		for x := range row {
			for k := 0; k < 3; k++ {
				v := PixelToContinuous(row[x][k])
				row[x][k] = Clip(core(v, c) * 255)
			}
		}
	})
}

// ForEachRow calls fn for every y in [0,height), splitting rows into bands
// processed concurrently. fn must only touch row y.
func ForEachRow(height int, fn func(y int)) {
	n := Workers()
	if n <= 1 || height < 2*n {
		for y := 0; y < height; y++ {
			fn(y)
		}
		return
	}

	band := (height + n - 1) / n
	var g errgroup.Group
	for start := 0; start < height; start += band {
		end := min(start+band, height)
		g.Go(func() error {
			for y := start; y < end; y++ {
				fn(y)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func PixelToContinuous(v uint8) float64 {
	return float64(v) / 255
}

// Clip rounds v to the nearest sample value in [0,255]. NaN maps to 0.
func Clip(v float64) uint8 {
	if v >= 255 {
		return 255
	}
	if v < 0 || v != v {
		return 0
	}
	return uint8(v + 0.5)
}

// Gray is the luma of an RGB sample using BT.601 weights.
func Gray(p [3]uint8) uint8 {
	return Clip(0.299*float64(p[0]) + 0.587*float64(p[1]) + 0.114*float64(p[2]))
}
