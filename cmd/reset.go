package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every archived image and artifact",
	RunE: func(cmd *cobra.Command, args []string) error {
		if Archive == nil {
			return errNoArchive
		}

		reader := bufio.NewReader(os.Stdin)
		if !resetYes && !confirm(reader, os.Stdout, fmt.Sprintf("⚠️  Are you sure you want to delete everything in the %s archive?", Cfg.Archive.Driver)) {
			fmt.Println("Aborted.")
			return nil
		}

		fmt.Println("🗑️  Clearing archive...")
		if err := Archive.Reset(cmd.Context()); err != nil {
			return fmt.Errorf("failed to reset archive: %w", err)
		}
		fmt.Println("✨ Archive Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}
