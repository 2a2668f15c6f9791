// Package redactor turns EditorParams into an ordered chain of processors.
package redactor

import (
	"context"

	"imageeditor/internal/domain"
	"imageeditor/internal/imatrix"
	"imageeditor/internal/processors"
)

// step adapts a pair of plain functions to the Step interface.
type step struct {
	name   string
	should func(p domain.EditorParams) bool
	apply  func(img imatrix.Image, p domain.EditorParams) imatrix.Image
}

func (s step) Name() string { return s.name }

func (s step) ShouldRun(p domain.EditorParams) bool { return s.should(p) }

func (s step) Apply(_ context.Context, img imatrix.Image, p domain.EditorParams) (imatrix.Image, error) {
	return s.apply(img, p), nil
}

// inPlace wraps a mutating processor.
func inPlace(fn func(img imatrix.Image, p domain.EditorParams)) func(imatrix.Image, domain.EditorParams) imatrix.Image {
	return func(img imatrix.Image, p domain.EditorParams) imatrix.Image {
		fn(img, p)
		return img
	}
}

var defaultChain = NewChain(
	step{
		name:   "order",
		should: func(p domain.EditorParams) bool { return p.Order != "" && p.Order != "RGB" },
		apply: func(img imatrix.Image, p domain.EditorParams) imatrix.Image {
			return processors.ChangeOrder(img, p.Order)
		},
	},
	step{
		name: "brightness",
		should: func(p domain.EditorParams) bool {
			return p.RedBrightness != 100 || p.GreenBrightness != 100 || p.BlueBrightness != 100
		},
		apply: inPlace(func(img imatrix.Image, p domain.EditorParams) {
			for channel, slider := range [3]int{p.RedBrightness, p.GreenBrightness, p.BlueBrightness} {
				if slider != 100 {
					processors.ChangeBrightness(img, channel, domain.BrightnessGamma(slider))
				}
			}
		}),
	},
	step{
		name:   "logarithmic_brightness",
		should: func(p domain.EditorParams) bool { return p.LogarithmicBrightness != 0 },
		apply: inPlace(func(img imatrix.Image, p domain.EditorParams) {
			processors.LogarithmicBrightness(img, p.LogarithmicFactor())
		}),
	},
	step{
		name:   "contrast",
		should: func(p domain.EditorParams) bool { return p.Contrast != 100 },
		apply: inPlace(func(img imatrix.Image, p domain.EditorParams) {
			processors.ChangeContrast(img, p.ContrastFactor())
		}),
	},
	step{
		name:   "negative",
		should: func(p domain.EditorParams) bool { return p.Negative },
		apply:  inPlace(func(img imatrix.Image, _ domain.EditorParams) { processors.Negative(img) }),
	},
	step{
		name:   "vertical_mirror",
		should: func(p domain.EditorParams) bool { return p.VerticalMirror },
		apply:  inPlace(func(img imatrix.Image, _ domain.EditorParams) { processors.VerticalMirror(img) }),
	},
	step{
		name:   "horizontal_mirror",
		should: func(p domain.EditorParams) bool { return p.HorizontalMirror },
		apply:  inPlace(func(img imatrix.Image, _ domain.EditorParams) { processors.HorizontalMirror(img) }),
	},
	step{
		name:   "magic",
		should: func(p domain.EditorParams) bool { return p.Magic != 0 },
		apply:  inPlace(func(img imatrix.Image, p domain.EditorParams) { processors.Magic(img, p.Magic) }),
	},
	step{
		name:   "filter",
		should: func(p domain.EditorParams) bool { return p.Filter != "" && p.Filter != domain.FilterNone },
		apply:  applyFilter,
	},
	step{
		name:   "unsharp_masking",
		should: func(p domain.EditorParams) bool { return p.UnsharpMasking > 0 },
		apply: func(img imatrix.Image, p domain.EditorParams) imatrix.Image {
			blurred := processors.GaussianFilter(img, max(p.FilterSize, 3), p.SigmaOrDefault())
			return processors.UnsharpMasking(img, blurred, p.UnsharpMasking)
		},
	},
	step{
		name:   "logarithmic_clip",
		should: func(p domain.EditorParams) bool { return p.LogarithmicClip },
		apply: func(img imatrix.Image, _ domain.EditorParams) imatrix.Image {
			return processors.LogarithmicClipAuto(img)
		},
	},
	step{
		name:   "power_clip",
		should: func(p domain.EditorParams) bool { return p.PowerClip > 0 },
		apply: func(img imatrix.Image, p domain.EditorParams) imatrix.Image {
			return processors.PowerClipAuto(img, p.PowerClip)
		},
	},
	step{
		name:   "binary_clip",
		should: func(p domain.EditorParams) bool { return p.BinaryClip > 0 },
		apply: func(img imatrix.Image, p domain.EditorParams) imatrix.Image {
			return processors.BinaryClip(img, uint8(p.BinaryClip))
		},
	},
	step{
		name:   "constant_slice",
		should: domain.EditorParams.ConstantSliceEnabled,
		apply: func(img imatrix.Image, p domain.EditorParams) imatrix.Image {
			return processors.IntensitySliceConstant(img, uint8(p.ConstantLow), uint8(p.ConstantHigh), uint8(p.ConstantValue))
		},
	},
)

func applyFilter(img imatrix.Image, p domain.EditorParams) imatrix.Image {
	switch p.Filter {
	case domain.FilterGaussian:
		return processors.GaussianFilter(img, p.FilterSize, p.SigmaOrDefault())
	case domain.FilterRectangular:
		return processors.RectangularFilter(img, p.FilterSize)
	case domain.FilterMedian:
		return processors.MedianFilter(img, p.FilterSize)
	case domain.FilterSigma:
		return processors.SigmaFilter(img, p.FilterSize, p.Sigma, float64(p.Interval))
	}
	return img
}

// Steps lists the pipeline stages in execution order.
func Steps() []string {
	return defaultChain.StepNames()
}

// Redact runs the pipeline on a copy of input and returns the changes
// image, the edited image and the names of the stages that ran.
func Redact(ctx context.Context, input imatrix.Image, p domain.EditorParams) (imatrix.Image, imatrix.Image, []string, error) {
	redacted, applied, err := defaultChain.Execute(ctx, input.Copy(), p)
	if err != nil {
		return imatrix.Image{}, imatrix.Image{}, applied, err
	}
	return processors.Changes(input, redacted), redacted, applied, nil
}
