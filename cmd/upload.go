package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uploadInput string

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload the source image so later requests reference it by name",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd.Context(), uploadInput, "")
		if err != nil {
			return err
		}
		img, err := s.Ctrl.Upload(cmd.Context(), s.File.Name, s.File.Data)
		if err != nil {
			return err
		}
		fmt.Printf("✅ Uploaded %s as '%s'\n", s.File.Name, img.ServerName)
		return nil
	},
}

func init() {
	uploadCmd.Flags().StringVarP(&uploadInput, "input", "i", "", "Path to the source image")
	uploadCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(uploadCmd)
}
