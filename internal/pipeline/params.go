package pipeline

import (
	"fmt"

	"github.com/andresmejia3/depthbrush/internal/types"
)

// DiffusionParams tune the anisotropic diffusion job.
type DiffusionParams struct {
	Beta       float64 `mapstructure:"beta"`
	Iterations int     `mapstructure:"iterations"`
}

// DefaultDiffusionParams match the backend defaults.
func DefaultDiffusionParams() DiffusionParams {
	return DiffusionParams{Beta: 0.1, Iterations: 3000}
}

func (p DiffusionParams) Validate() error {
	if p.Beta <= 0 {
		return fmt.Errorf("beta must be positive, got %v", p.Beta)
	}
	if p.Iterations < 1 {
		return fmt.Errorf("iterations must be >= 1, got %d", p.Iterations)
	}
	return nil
}

// FocusParams tune the depth of field blur.
type FocusParams struct {
	DepthRange     float64 `mapstructure:"depth_range"`
	KernelSizeGaus int     `mapstructure:"kernel_size_gaus"`
	KernelSizeBf   int     `mapstructure:"kernel_size_bf"`
	SigmaColor     float64 `mapstructure:"sigma_color"`
	SigmaSpace     float64 `mapstructure:"sigma_space"`
	GausSigma      float64 `mapstructure:"gaus_sigma"`
}

// DefaultFocusParams match the backend defaults.
func DefaultFocusParams() FocusParams {
	return FocusParams{
		DepthRange:     0.1,
		KernelSizeGaus: 5,
		KernelSizeBf:   5,
		SigmaColor:     200,
		SigmaSpace:     200,
		GausSigma:      60,
	}
}

// FocusClick is a click on the rendered diffusion result, in the same
// display units as its rendered size.
type FocusClick struct {
	X, Y                          float64
	RenderedWidth, RenderedHeight float64
}

// Relative converts the click into a point in [0,1]x[0,1].
func (f FocusClick) Relative() (types.FocusPoint, error) {
	if f.RenderedWidth <= 0 || f.RenderedHeight <= 0 {
		return types.FocusPoint{}, fmt.Errorf("rendered size %vx%v is empty", f.RenderedWidth, f.RenderedHeight)
	}
	if f.X < 0 || f.Y < 0 || f.X > f.RenderedWidth || f.Y > f.RenderedHeight {
		return types.FocusPoint{}, fmt.Errorf("click %v,%v is outside the rendered image", f.X, f.Y)
	}
	return types.FocusPoint{X: f.X / f.RenderedWidth, Y: f.Y / f.RenderedHeight}, nil
}

// At returns a click already expressed as a relative point.
func At(x, y float64) FocusClick {
	return FocusClick{X: x, Y: y, RenderedWidth: 1, RenderedHeight: 1}
}
