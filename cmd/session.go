package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/andresmejia3/depthbrush/internal/artifact"
	"github.com/andresmejia3/depthbrush/internal/canvas"
	"github.com/andresmejia3/depthbrush/internal/notify"
	"github.com/andresmejia3/depthbrush/internal/pipeline"
	"github.com/andresmejia3/depthbrush/internal/raster"
	"github.com/andresmejia3/depthbrush/internal/types"
	"github.com/andresmejia3/depthbrush/internal/utils"
)

// session binds one source image to a pipeline controller.
type session struct {
	File    *utils.ImageFile
	Image   types.Image
	Surface *canvas.Surface
	Ctrl    *pipeline.Controller
}

// annotateSurface loads the source into a fresh surface and replays the
// stroke script on it.
func annotateSurface(file *utils.ImageFile, scriptPath string) (*canvas.Surface, error) {
	log := utils.Logger.Named("canvas")
	surface := canvas.New(canvas.WithBrush(Cfg.InitialBrush(raster.ModeAnnotate)), canvas.WithLogger(log))
	if err := surface.Load(bytes.NewReader(file.Data)); err != nil {
		return nil, err
	}

	f, err := os.Open(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open stroke script: %w", err)
	}
	defer f.Close()

	cmds, err := canvas.ParseScript(f)
	if err != nil {
		return nil, err
	}
	if err := surface.Replay(cmds, Cfg.IgnoreRGBA()); err != nil {
		return nil, err
	}
	log.Debug("strokes replayed", zap.String("script", scriptPath), zap.Int("commands", len(cmds)))
	return surface, nil
}

// openSession reads inputPath, optionally replays a stroke script, and
// selects the image on a new controller. Archived artifacts for the same
// picture are restored.
func openSession(ctx context.Context, inputPath, scriptPath string) (*session, error) {
	// 1. Read the source and derive its archive key
	file, err := utils.ReadImageFile(inputPath)
	if err != nil {
		return nil, err
	}

	// 2. Annotation surface, only when strokes were supplied
	var surface *canvas.Surface
	if scriptPath != "" {
		if surface, err = annotateSurface(file, scriptPath); err != nil {
			return nil, err
		}
	}

	// 3. Controller wired to the backend, the archive and notifications
	opts := []pipeline.Option{pipeline.WithLogger(utils.Logger.Named("pipeline"))}
	if Archive != nil {
		opts = append(opts, pipeline.WithArchive(Archive))
	}
	if Cfg.Notify.Enabled {
		n := notify.New(notify.DefaultPreferences(Cfg.Notify.Title), utils.Logger.Named("notify"))
		n.EnableAll(true)
		opts = append(opts, pipeline.WithNotifier(n))
	}
	ctrl := pipeline.New(newClient(), artifact.NewStore(), opts...)

	// 4. Reuse the backend filename from an earlier upload of the same picture
	img := types.NewImage(file.Name, file.DataURI)
	if name := archivedServerName(ctx, file.Key); name != "" {
		img = img.WithServerName(name)
	}

	if err := ctrl.SelectImage(ctx, img, file.Key, surface); err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "🖼️  Image %s (%s), stage: %s\n", file.Name, file.Key[:12], ctrl.Stage())
	return &session{File: file, Image: img, Surface: surface, Ctrl: ctrl}, nil
}

func archivedServerName(ctx context.Context, key string) string {
	if Archive == nil {
		return ""
	}
	images, err := Archive.ListImages(ctx)
	if err != nil {
		utils.Logger.Warn("archive: failed to list images", zap.Error(err))
		return ""
	}
	for _, im := range images {
		if im.Key == key {
			return im.ServerName
		}
	}
	return ""
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// exportName turns an artifact into a stable file name, e.g. diffusion_anisotropic_diffusion.png.
func exportName(a artifact.Artifact) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(a.Title), "_"), "_")
	if slug == "" {
		slug = "untitled"
	}
	return fmt.Sprintf("%s_%s.png", a.Category, slug)
}

// exportArtifacts writes every artifact as a PNG under dir.
func exportArtifacts(dir string, arts []artifact.Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var written []string
	for _, a := range arts {
		img, err := a.Decode()
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, exportName(a))
		if err := writePNG(path, img); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printArtifacts(arts []artifact.Artifact) {
	for _, a := range arts {
		fmt.Printf("   • [%s] %s\n", a.Category, a.Title)
	}
}
