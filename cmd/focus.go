package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/depthbrush/internal/pipeline"
)

// FocusOptions selects the focus point either as a relative position or as
// a click on an image rendered at some size.
type FocusOptions struct {
	InputPath string
	X, Y      float64
	Click     string
	Rendered  string
}

var focusOpts FocusOptions

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Blur the image around a focus point using the diffusion result",
	RunE: func(cmd *cobra.Command, args []string) error {
		click, err := focusOpts.click()
		if err != nil {
			return err
		}
		s, err := openSession(cmd.Context(), focusOpts.InputPath, "")
		if err != nil {
			return err
		}
		arts, err := s.Ctrl.Focus(cmd.Context(), click, Cfg.Focus)
		if err != nil {
			return err
		}
		fmt.Println("✅ Focus blur finished")
		printArtifacts(arts)
		return nil
	},
}

func init() {
	addFocusFlags(focusCmd, &focusOpts)
	focusCmd.Flags().StringVarP(&focusOpts.InputPath, "input", "i", "", "Path to the source image")
	focusCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(focusCmd)
}

func addFocusFlags(cmd *cobra.Command, opts *FocusOptions) {
	cmd.Flags().Float64Var(&opts.X, "x", 0.5, "Relative focus x in [0,1]")
	cmd.Flags().Float64Var(&opts.Y, "y", 0.5, "Relative focus y in [0,1]")
	cmd.Flags().StringVar(&opts.Click, "click", "", "Click position X,Y on the rendered image (overrides --x/--y)")
	cmd.Flags().StringVar(&opts.Rendered, "rendered", "", "Rendered size WxH the click refers to")
	cmd.MarkFlagsRequiredTogether("click", "rendered")
}

// click resolves the flags into a FocusClick.
func (o FocusOptions) click() (pipeline.FocusClick, error) {
	if o.Click == "" {
		return pipeline.At(o.X, o.Y), nil
	}
	x, y, err := parsePair(o.Click, ",")
	if err != nil {
		return pipeline.FocusClick{}, fmt.Errorf("--click: %w", err)
	}
	w, h, err := parsePair(strings.ToLower(o.Rendered), "x")
	if err != nil {
		return pipeline.FocusClick{}, fmt.Errorf("--rendered: %w", err)
	}
	return pipeline.FocusClick{X: x, Y: y, RenderedWidth: w, RenderedHeight: h}, nil
}

func parsePair(s, sep string) (float64, float64, error) {
	a, b, ok := strings.Cut(s, sep)
	if !ok {
		return 0, 0, fmt.Errorf("expected two numbers separated by %q, got %q", sep, s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, 0, err
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}
