package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/andresmejia3/depthbrush/internal/artifact"
	"github.com/andresmejia3/depthbrush/internal/pipeline"
)

var (
	diffuseInput string
	diffuseBeta  float64
	diffuseIters int
)

var diffuseCmd = &cobra.Command{
	Use:   "diffuse",
	Short: "Run anisotropic diffusion on the saved annotations and follow its progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), diffuseInput, "")
		if err != nil {
			return err
		}
		arts, err := runDiffusion(cmd, s, diffusionParams(cmd, diffuseBeta, diffuseIters))
		if err != nil {
			return err
		}
		printArtifacts(arts)
		return nil
	},
}

func init() {
	diffuseCmd.Flags().StringVarP(&diffuseInput, "input", "i", "", "Path to the source image")
	addDiffusionFlags(diffuseCmd, &diffuseBeta, &diffuseIters)
	diffuseCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(diffuseCmd)
}

// addDiffusionFlags registers --beta and --iterations. Unset flags fall back to the config.
func addDiffusionFlags(cmd *cobra.Command, beta *float64, iterations *int) {
	d := pipeline.DefaultDiffusionParams()
	cmd.Flags().Float64Var(beta, "beta", d.Beta, "Diffusion edge sensitivity")
	cmd.Flags().IntVar(iterations, "iterations", d.Iterations, "Diffusion iterations")
}

func diffusionParams(cmd *cobra.Command, beta float64, iterations int) pipeline.DiffusionParams {
	params := Cfg.Diffusion
	if cmd.Flags().Changed("beta") {
		params.Beta = beta
	}
	if cmd.Flags().Changed("iterations") {
		params.Iterations = iterations
	}
	return params
}

// runDiffusion starts the job and mirrors its progress frames on a bar.
func runDiffusion(cmd *cobra.Command, s *session, params pipeline.DiffusionParams) ([]artifact.Artifact, error) {
	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("🌊 Diffusing depth"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)
	arts, err := s.Ctrl.Diffuse(cmd.Context(), params, func(p float64) {
		bar.Set(int(p))
	})
	if err != nil {
		bar.Exit()
		fmt.Fprintln(os.Stderr)
		return nil, err
	}
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	fmt.Printf("✅ Diffusion finished (beta %.3g, %d iterations)\n", params.Beta, params.Iterations)
	return arts, nil
}
