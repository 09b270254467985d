package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	saveInput  string
	saveScript string
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Replay a stroke script and send the annotation buffers to the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), saveInput, saveScript)
		if err != nil {
			return err
		}
		arts, err := s.Ctrl.Save(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("✅ Annotations saved (%d images)\n", len(arts))
		printArtifacts(arts)
		return nil
	},
}

func init() {
	saveCmd.Flags().StringVarP(&saveInput, "input", "i", "", "Path to the source image")
	saveCmd.Flags().StringVarP(&saveScript, "strokes", "s", "", "Path to the stroke script")
	saveCmd.MarkFlagRequired("input")
	saveCmd.MarkFlagRequired("strokes")
	rootCmd.AddCommand(saveCmd)
}
