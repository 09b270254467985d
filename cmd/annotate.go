package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/depthbrush/internal/utils"
)

// AnnotateOptions holds flags for the local annotate command.
type AnnotateOptions struct {
	InputPath  string
	ScriptPath string
	OutputDir  string
}

var annotateOpts AnnotateOptions

var annotateCmd = &cobra.Command{
	Use:         "annotate",
	Short:       "Replay a stroke script locally and write both canvas buffers as PNG",
	Annotations: map[string]string{skipArchive: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnnotate(annotateOpts)
	},
}

func init() {
	annotateCmd.Flags().StringVarP(&annotateOpts.InputPath, "input", "i", "", "Path to the source image")
	annotateCmd.Flags().StringVarP(&annotateOpts.ScriptPath, "strokes", "s", "", "Path to the stroke script")
	annotateCmd.Flags().StringVarP(&annotateOpts.OutputDir, "output", "o", ".", "Directory for with_scribbles.png and annotations.png")

	annotateCmd.MarkFlagRequired("input")
	annotateCmd.MarkFlagRequired("strokes")
	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(opts AnnotateOptions) error {
	file, err := utils.ReadImageFile(opts.InputPath)
	if err != nil {
		return err
	}
	surface, err := annotateSurface(file, opts.ScriptPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return err
	}
	composite := filepath.Join(opts.OutputDir, "with_scribbles.png")
	mask := filepath.Join(opts.OutputDir, "annotations.png")
	if err := writePNG(composite, surface.Composite()); err != nil {
		return err
	}
	if err := writePNG(mask, surface.Mask()); err != nil {
		return err
	}

	fmt.Printf("✅ Wrote %s and %s\n", composite, mask)
	return nil
}
