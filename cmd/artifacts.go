package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/andresmejia3/depthbrush/internal/artifact"
	"github.com/andresmejia3/depthbrush/internal/utils"
)

var errNoArchive = errors.New("no archive configured (pass --archive postgres|redis or set archive.driver)")

var (
	artifactsInput  string
	artifactsExport string
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "List archived images, or the artifacts of one image",
	RunE: func(cmd *cobra.Command, args []string) error {
		if Archive == nil {
			return errNoArchive
		}
		if artifactsInput == "" {
			return listImages(cmd.Context(), os.Stdout, Archive)
		}

		file, err := utils.ReadImageFile(artifactsInput)
		if err != nil {
			return err
		}
		arts, err := loadAll(cmd.Context(), Archive, file.Key)
		if err != nil {
			return err
		}
		listArtifacts(os.Stdout, arts)

		if artifactsExport != "" {
			written, err := exportArtifacts(artifactsExport, arts)
			if err != nil {
				return fmt.Errorf("failed to export artifacts: %w", err)
			}
			fmt.Printf("📁 Exported %d images to %s\n", len(written), artifactsExport)
		}
		return nil
	},
}

func init() {
	artifactsCmd.Flags().StringVarP(&artifactsInput, "input", "i", "", "Show the artifacts of this source image")
	artifactsCmd.Flags().StringVar(&artifactsExport, "export", "", "Write the image's artifacts as PNG into this directory")
	rootCmd.AddCommand(artifactsCmd)
}

func loadAll(ctx context.Context, a artifact.Archive, key string) ([]artifact.Artifact, error) {
	var all []artifact.Artifact
	for _, cat := range artifact.Categories {
		arts, err := a.LoadCategory(ctx, key, cat)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s artifacts: %w", cat, err)
		}
		all = append(all, arts...)
	}
	return all, nil
}

func listImages(ctx context.Context, out io.Writer, a artifact.Archive) error {
	images, err := a.ListImages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list images: %w", err)
	}
	if len(images) == 0 {
		fmt.Fprintln(out, "No images found in the archive.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "KEY\tNAME\tSERVER NAME\tSTAGES\tUPDATED")
	fmt.Fprintln(w, "---\t----\t-----------\t------\t-------")

	for _, im := range images {
		stages := make([]string, len(im.Categories))
		for i, c := range im.Categories {
			stages[i] = string(c)
		}
		server := im.ServerName
		if server == "" {
			server = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortKey(im.Key), im.DisplayName, server, strings.Join(stages, ","), im.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func listArtifacts(out io.Writer, arts []artifact.Artifact) {
	if len(arts) == 0 {
		fmt.Fprintln(out, "No artifacts archived for this image.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tTITLE\tSIZE")
	fmt.Fprintln(w, "--------\t-----\t----")
	for _, a := range arts {
		size := "?"
		if img, err := a.Decode(); err == nil {
			b := img.Bounds()
			size = fmt.Sprintf("%dx%d", b.Dx(), b.Dy())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Category, a.Title, size)
	}
	w.Flush()
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
