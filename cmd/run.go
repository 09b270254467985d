package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/depthbrush/internal/artifact"
)

// RunOptions holds flags for the end-to-end run command.
type RunOptions struct {
	ScriptPath string
	Upload     bool
	ExportDir  string
	Beta       float64
	Iterations int
	Focus      FocusOptions
}

var runOpts RunOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Annotate, save, diffuse and focus in one go",
	RunE: func(cmd *cobra.Command, args []string) error {
		click, err := runOpts.Focus.click()
		if err != nil {
			return err
		}

		// 1. Select the image and replay the strokes
		s, err := openSession(cmd.Context(), runOpts.Focus.InputPath, runOpts.ScriptPath)
		if err != nil {
			return err
		}

		// 2. Optional upload so the backend keeps its own copy
		if runOpts.Upload {
			img, err := s.Ctrl.Upload(cmd.Context(), s.File.Name, s.File.Data)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "📤 Uploaded as '%s'\n", img.ServerName)
		}

		// 3. Save annotations
		if _, err := s.Ctrl.Save(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "💾 Annotations saved")

		// 4. Diffusion with live progress
		if _, err := runDiffusion(cmd, s, diffusionParams(cmd, runOpts.Beta, runOpts.Iterations)); err != nil {
			return err
		}

		// 5. Focus
		if _, err := s.Ctrl.Focus(cmd.Context(), click, Cfg.Focus); err != nil {
			return err
		}
		fmt.Println("✅ Pipeline complete")

		var all []artifact.Artifact
		for _, cat := range artifact.Categories {
			all = append(all, s.Ctrl.Artifacts().Get(cat)...)
		}
		printArtifacts(all)

		if runOpts.ExportDir != "" {
			written, err := exportArtifacts(runOpts.ExportDir, all)
			if err != nil {
				return fmt.Errorf("failed to export artifacts: %w", err)
			}
			fmt.Printf("📁 Exported %d images to %s\n", len(written), runOpts.ExportDir)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.Focus.InputPath, "input", "i", "", "Path to the source image")
	runCmd.Flags().StringVarP(&runOpts.ScriptPath, "strokes", "s", "", "Path to the stroke script")
	runCmd.Flags().BoolVar(&runOpts.Upload, "upload", false, "Upload the image first and reference it by name")
	runCmd.Flags().StringVar(&runOpts.ExportDir, "export", "", "Write every resulting image as PNG into this directory")
	addDiffusionFlags(runCmd, &runOpts.Beta, &runOpts.Iterations)
	addFocusFlags(runCmd, &runOpts.Focus)

	runCmd.MarkFlagRequired("input")
	runCmd.MarkFlagRequired("strokes")
	rootCmd.AddCommand(runCmd)
}
