package domain

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin/binding"
	"gopkg.in/yaml.v3"
)

// Filter names accepted in EditorParams.Filter.
const (
	FilterNone        = "none"
	FilterGaussian    = "gaussian"
	FilterRectangular = "rectangular"
	FilterMedian      = "median"
	FilterSigma       = "sigma"
)

// EditorParams mirrors the slider state of the editor UI. Field names are the
// wire names used in query strings, forms and JSON.
type EditorParams struct {
	RedBrightness         int     `form:"RedBrightness,default=100" json:"RedBrightness" yaml:"RedBrightness" binding:"min=0,max=200"`
	GreenBrightness       int     `form:"GreenBrightness,default=100" json:"GreenBrightness" yaml:"GreenBrightness" binding:"min=0,max=200"`
	BlueBrightness        int     `form:"BlueBrightness,default=100" json:"BlueBrightness" yaml:"BlueBrightness" binding:"min=0,max=200"`
	LogarithmicBrightness int     `form:"LogarithmicBrightness" json:"LogarithmicBrightness" yaml:"LogarithmicBrightness" binding:"min=0,max=200"`
	Contrast              int     `form:"Contrast,default=100" json:"Contrast" yaml:"Contrast" binding:"min=0,max=200"`
	Negative              bool    `form:"Negative" json:"Negative" yaml:"Negative"`
	Order                 string  `form:"Order,default=RGB" json:"Order" yaml:"Order" binding:"omitempty,oneof=RGB RBG GRB GBR BRG BGR"`
	VerticalMirror        bool    `form:"VerticalMirror" json:"VerticalMirror" yaml:"VerticalMirror"`
	HorizontalMirror      bool    `form:"HorizontalMirror" json:"HorizontalMirror" yaml:"HorizontalMirror"`
	Magic                 int     `form:"Magic" json:"Magic" yaml:"Magic" binding:"min=0,max=255"`
	Filter                string  `form:"Filter,default=none" json:"Filter" yaml:"Filter" binding:"omitempty,oneof=none gaussian rectangular median sigma"`
	FilterSize            int     `form:"FilterSize,default=3" json:"FilterSize" yaml:"FilterSize" binding:"min=1,max=31"`
	Sigma                 float64 `form:"Sigma" json:"Sigma" yaml:"Sigma" binding:"min=0,max=100"`
	Interval              int     `form:"Interval,default=2" json:"Interval" yaml:"Interval" binding:"min=0,max=10"`
	UnsharpMasking        float64 `form:"UnsharpMasking" json:"UnsharpMasking" yaml:"UnsharpMasking" binding:"min=0,max=100"`
	LogarithmicClip       bool    `form:"LogarithmicClip" json:"LogarithmicClip" yaml:"LogarithmicClip"`
	PowerClip             float64 `form:"PowerClip" json:"PowerClip" yaml:"PowerClip" binding:"min=0,max=100"`
	BinaryClip            int     `form:"BinaryClip" json:"BinaryClip" yaml:"BinaryClip" binding:"min=0,max=255"`
	ConstantLow           int     `form:"ConstantLow" json:"ConstantLow" yaml:"ConstantLow" binding:"min=0,max=255"`
	ConstantHigh          int     `form:"ConstantHigh" json:"ConstantHigh" yaml:"ConstantHigh" binding:"min=0,max=255"`
	ConstantValue         int     `form:"ConstantValue" json:"ConstantValue" yaml:"ConstantValue" binding:"min=0,max=255"`
}

func DefaultEditorParams() EditorParams {
	return EditorParams{
		RedBrightness:   100,
		GreenBrightness: 100,
		BlueBrightness:  100,
		Contrast:        100,
		Order:           "RGB",
		Filter:          FilterNone,
		FilterSize:      3,
		Interval:        2,
	}
}

// ParseParams binds and validates params from a raw query string. Missing
// keys take their defaults.
func ParseParams(rawQuery string) (EditorParams, error) {
	var p EditorParams
	req := &http.Request{URL: &url.URL{RawQuery: rawQuery}}
	if err := binding.Query.Bind(req, &p); err != nil {
		return EditorParams{}, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	p.normalize()
	return p, nil
}

// normalize maps empty enum values, which mean "leave as is", to their
// neutral defaults.
func (p *EditorParams) normalize() {
	if p.Order == "" {
		p.Order = "RGB"
	}
	if p.Filter == "" {
		p.Filter = FilterNone
	}
}

// LoadPreset reads params saved as YAML. Keys left out keep their defaults
// and unknown keys are an error.
func LoadPreset(r io.Reader) (EditorParams, error) {
	p := DefaultEditorParams()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return EditorParams{}, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	if err := binding.Validator.ValidateStruct(&p); err != nil {
		return EditorParams{}, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	p.normalize()
	return p, nil
}

// WritePreset is the inverse of LoadPreset.
func (p EditorParams) WritePreset(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

// Query renders p back into its canonical query string form.
func (p EditorParams) Query() string {
	v := url.Values{}
	v.Set("RedBrightness", strconv.Itoa(p.RedBrightness))
	v.Set("GreenBrightness", strconv.Itoa(p.GreenBrightness))
	v.Set("BlueBrightness", strconv.Itoa(p.BlueBrightness))
	v.Set("LogarithmicBrightness", strconv.Itoa(p.LogarithmicBrightness))
	v.Set("Contrast", strconv.Itoa(p.Contrast))
	v.Set("Negative", strconv.FormatBool(p.Negative))
	v.Set("Order", p.Order)
	v.Set("VerticalMirror", strconv.FormatBool(p.VerticalMirror))
	v.Set("HorizontalMirror", strconv.FormatBool(p.HorizontalMirror))
	v.Set("Magic", strconv.Itoa(p.Magic))
	v.Set("Filter", p.Filter)
	v.Set("FilterSize", strconv.Itoa(p.FilterSize))
	v.Set("Sigma", strconv.FormatFloat(p.Sigma, 'g', -1, 64))
	v.Set("Interval", strconv.Itoa(p.Interval))
	v.Set("UnsharpMasking", strconv.FormatFloat(p.UnsharpMasking, 'g', -1, 64))
	v.Set("LogarithmicClip", strconv.FormatBool(p.LogarithmicClip))
	v.Set("PowerClip", strconv.FormatFloat(p.PowerClip, 'g', -1, 64))
	v.Set("BinaryClip", strconv.Itoa(p.BinaryClip))
	v.Set("ConstantLow", strconv.Itoa(p.ConstantLow))
	v.Set("ConstantHigh", strconv.Itoa(p.ConstantHigh))
	v.Set("ConstantValue", strconv.Itoa(p.ConstantValue))
	return v.Encode()
}

// BrightnessGamma converts a 0..200 slider value into the exponent applied to
// normalized samples. 100 maps to 1 (no change), larger values brighten.
func BrightnessGamma(slider int) float64 {
	return float64(200-slider) / 100
}

// ContrastFactor is 1 at the neutral slider position.
func (p EditorParams) ContrastFactor() float64 {
	return float64(p.Contrast) / 100
}

func (p EditorParams) LogarithmicFactor() float64 {
	return float64(p.LogarithmicBrightness) / 100
}

// SigmaOrDefault returns the sigma used by kernels that need a positive one.
func (p EditorParams) SigmaOrDefault() float64 {
	if p.Sigma > 0 {
		return p.Sigma
	}
	return math.Max(float64(p.FilterSize)/6, 0.5)
}

func (p EditorParams) ConstantSliceEnabled() bool {
	return p.ConstantHigh > 0 && p.ConstantLow <= p.ConstantHigh
}
