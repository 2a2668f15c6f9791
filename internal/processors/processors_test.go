package processors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imageeditor/internal/domain"
	"imageeditor/internal/imatrix"
)

func gradient(w, h int) imatrix.Image {
	img := imatrix.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Matrix[y][x] = [3]uint8{uint8(x * 255 / max(w-1, 1)), uint8(y * 255 / max(h-1, 1)), uint8((x + y) % 256)}
		}
	}
	return img
}

func filled(w, h int, p [3]uint8) imatrix.Image {
	img := imatrix.New(w, h)
	for y := range img.Matrix {
		for x := range img.Matrix[y] {
			img.Matrix[y][x] = p
		}
	}
	return img
}

func TestChannel(t *testing.T) {
	img := filled(2, 2, [3]uint8{10, 20, 30})

	assert.Equal(t, [3]uint8{10, 0, 0}, Channel(img, domain.ChannelRed).Matrix[1][1])
	assert.Equal(t, [3]uint8{0, 20, 0}, Channel(img, domain.ChannelGreen).Matrix[1][1])
	assert.Equal(t, [3]uint8{0, 0, 30}, Channel(img, domain.ChannelBlue).Matrix[1][1])

	g := imatrix.Gray([3]uint8{10, 20, 30})
	assert.Equal(t, [3]uint8{g, g, g}, Channel(img, domain.ChannelGray).Matrix[0][0])
	assert.Equal(t, [3]uint8{10, 20, 30}, img.Matrix[0][0], "source must not change")
}

func TestChangeBrightness(t *testing.T) {
	img := filled(1, 1, [3]uint8{64, 64, 64})

	ChangeBrightness(img, 0, 1)
	assert.Equal(t, uint8(64), img.Matrix[0][0][0])

	ChangeBrightness(img, 0, 0.5)
	assert.Greater(t, img.Matrix[0][0][0], uint8(64))
	assert.Equal(t, uint8(64), img.Matrix[0][0][1])
}

func TestChangeContrast(t *testing.T) {
	dark, light := uint8(70), uint8(185)
	img := imatrix.New(2, 1)
	img.Matrix[0][0] = [3]uint8{dark, dark, dark}
	img.Matrix[0][1] = [3]uint8{light, light, light}

	up := img.Copy()
	ChangeContrast(up, 1.8)
	assert.Less(t, up.Matrix[0][0][0], dark)
	assert.Greater(t, up.Matrix[0][1][0], light)

	down := img.Copy()
	ChangeContrast(down, 0.2)
	assert.Greater(t, down.Matrix[0][0][0], dark)
	assert.Less(t, down.Matrix[0][1][0], light)

	same := img.Copy()
	ChangeContrast(same, 1)
	assert.Equal(t, img.Matrix, same.Matrix)
}

func TestInvolutions(t *testing.T) {
	src := gradient(5, 4)

	tests := []struct {
		name string
		op   func(imatrix.Image)
	}{
		{"negative", Negative},
		{"vertical mirror", VerticalMirror},
		{"horizontal mirror", HorizontalMirror},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := src.Copy()
			tt.op(img)
			assert.NotEqual(t, src.Matrix, img.Matrix)
			tt.op(img)
			assert.Equal(t, src.Matrix, img.Matrix)
		})
	}
}

func TestMirrors(t *testing.T) {
	img := gradient(3, 2)
	want := img.Matrix[0][0]

	v := img.Copy()
	VerticalMirror(v)
	assert.Equal(t, want, v.Matrix[1][0])

	h := img.Copy()
	HorizontalMirror(h)
	assert.Equal(t, want, h.Matrix[0][2])
}

func TestMagic(t *testing.T) {
	img := imatrix.New(3, 1)
	img.Matrix[0][0] = [3]uint8{5, 5, 5}
	img.Matrix[0][1] = [3]uint8{100, 100, 100}
	img.Matrix[0][2] = [3]uint8{250, 250, 250}

	Magic(img, 10)

	assert.Equal(t, [3]uint8{5, 5, 5}, img.Matrix[0][0])
	assert.Equal(t, [3]uint8{155, 155, 155}, img.Matrix[0][1])
	assert.Equal(t, [3]uint8{250, 250, 250}, img.Matrix[0][2])
}

func TestChangeOrder(t *testing.T) {
	img := filled(2, 2, [3]uint8{1, 2, 3})

	assert.Equal(t, img.Matrix, ChangeOrder(img, "RGB").Matrix)
	assert.Equal(t, [3]uint8{3, 2, 1}, ChangeOrder(img, "BGR").Matrix[0][0])
	assert.Equal(t, [3]uint8{2, 3, 1}, ChangeOrder(img, "GBR").Matrix[1][1])
}

func TestLogarithmicBrightnessKeepsEnds(t *testing.T) {
	img := imatrix.New(2, 1)
	img.Matrix[0][1] = [3]uint8{255, 255, 255}

	LogarithmicBrightness(img, 1)

	assert.Equal(t, [3]uint8{0, 0, 0}, img.Matrix[0][0])
	assert.Equal(t, [3]uint8{255, 255, 255}, img.Matrix[0][1])
}

func TestChanges(t *testing.T) {
	a := gradient(4, 4)

	same := Changes(a, a.Copy())
	for _, row := range same.Matrix {
		for _, p := range row {
			require.Equal(t, [3]uint8{255, 255, 255}, p)
		}
	}

	black := filled(1, 1, [3]uint8{0, 0, 0})
	white := filled(1, 1, [3]uint8{255, 255, 255})
	assert.Equal(t, [3]uint8{0, 0, 0}, Changes(black, white).Matrix[0][0])
}
