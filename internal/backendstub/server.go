// Package backendstub serves the depth backend HTTP contract with
// placeholder image processing, for offline runs and tests.
package backendstub

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/andresmejia3/depthbrush/internal/artifact"
	"github.com/andresmejia3/depthbrush/internal/canvas"
	"github.com/andresmejia3/depthbrush/internal/config"
	"github.com/andresmejia3/depthbrush/internal/types"
	"github.com/andresmejia3/depthbrush/internal/utils"
)

// Image keys used in "images" objects.
const (
	KeyWithScribbles = "with_scribbles"
	KeyAnnotations   = "annotations"
	KeyMask          = "mask"
	KeyIgnoreMask    = "ignore_mask"
	KeyDiffusion     = "anisotropic_diffusion"
	KeyFocus         = "focus_result"
)

type Server struct {
	cfg    config.StubConfig
	log    *zap.Logger
	engine *gin.Engine
}

// New prepares the upload directory and the router.
func New(cfg config.StubConfig, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Steps < 1 {
		cfg.Steps = 1
	}
	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	s := &Server{cfg: cfg, log: log}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(Logger(log))
	r.Use(CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := r.Group("/api")
	{
		api.POST("/upload-image", s.uploadImage)
		api.POST("/save-annotations", s.saveAnnotations)
		api.POST("/process-anisotropic", s.processAnisotropic)
		api.POST("/process-focus", s.processFocus)
	}

	s.engine = r
	return s, nil
}

// Handler exposes the router, mostly for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on cfg.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("stub backend listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func fail(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"status": types.StatusError, "message": msg})
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// secureName reduces a client supplied name to a plain file stem.
func secureName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

func (s *Server) isAllowedType(contentType string) bool {
	if len(s.cfg.AllowedTypes) == 0 {
		return true
	}
	for _, t := range s.cfg.AllowedTypes {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}

func (s *Server) uploadPath(name string) string {
	return filepath.Join(s.cfg.UploadDir, name+".png")
}

func (s *Server) uploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		fail(c, http.StatusBadRequest, "No image provided")
		return
	}
	if file.Filename == "" {
		fail(c, http.StatusBadRequest, "No selected file")
		return
	}
	if s.cfg.MaxSize > 0 && file.Size > s.cfg.MaxSize {
		fail(c, http.StatusBadRequest, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxSize))
		return
	}
	contentType := file.Header.Get("Content-Type")
	if !s.isAllowedType(contentType) {
		fail(c, http.StatusBadRequest, fmt.Sprintf("unsupported file type %q", contentType))
		return
	}

	name := secureName(strings.TrimSuffix(file.Filename, filepath.Ext(file.Filename)))
	if name == "" {
		fail(c, http.StatusBadRequest, "invalid file name")
		return
	}

	f, err := file.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		fail(c, http.StatusBadRequest, "file is not a decodable image")
		return
	}
	if err := writePNG(s.uploadPath(name), img); err != nil {
		s.log.Error("failed to save upload", zap.String("name", name), zap.Error(err))
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Info("image uploaded", zap.String("filename", name), zap.Int64("size", file.Size))
	c.JSON(http.StatusOK, types.UploadResponse{Status: types.StatusSuccess, Filename: name})
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

// source resolves the original picture from an inline data URI or a
// previously uploaded name. Both empty yields nil.
func (s *Server) source(imageData, imageName string) (image.Image, error) {
	switch {
	case imageData != "":
		return decodeURI("imageData", imageData)
	case imageName != "":
		name := secureName(imageName)
		f, err := os.Open(s.uploadPath(name))
		if err != nil {
			return nil, fmt.Errorf("unknown image %q", imageName)
		}
		defer f.Close()
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("image %q: %w", imageName, err)
		}
		return img, nil
	}
	return nil, nil
}

func decodeURI(field, uri string) (image.Image, error) {
	raw, _, err := utils.DecodeDataURI(uri)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return img, nil
}

type entry struct {
	key, title string
	img        image.Image
}

func encodeSet(entries ...entry) (types.ImageSet, error) {
	set := make(types.ImageSet, 0, len(entries))
	for _, e := range entries {
		uri, err := canvas.EncodeDataURI(e.img)
		if err != nil {
			return nil, err
		}
		set = append(set, types.ImageEntry{Key: e.key, Src: uri, Title: e.title})
	}
	return set, nil
}

func (s *Server) saveAnnotations(c *gin.Context) {
	var req types.SaveAnnotationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Annotations == "" {
		fail(c, http.StatusBadRequest, "annotations is required")
		return
	}

	annotations, err := decodeURI("annotations", req.Annotations)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	src, err := s.source(req.ImageData, req.ImageName)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if src == nil && req.WithScribbles != "" {
		if src, err = decodeURI("withScribbles", req.WithScribbles); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	if src == nil {
		fail(c, http.StatusBadRequest, "no source image: send imageData, imageName or withScribbles")
		return
	}

	d, err := DeriveMasks(src, annotations)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	set, err := encodeSet(
		entry{KeyWithScribbles, artifact.TitleWithScribbles, d.WithScribbles},
		entry{KeyAnnotations, artifact.TitleInputAnnotations, d.Annotations},
		entry{KeyMask, artifact.TitleMask, d.Mask},
		entry{KeyIgnoreMask, artifact.TitleIgnoreMask, d.IgnoreMask},
	)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, types.ImagesResponse{Status: types.StatusSuccess, Images: set})
}

func (s *Server) processAnisotropic(c *gin.Context) {
	var req types.AnisotropicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Annotations == "" {
		fail(c, http.StatusBadRequest, "annotations is required")
		return
	}
	if req.Iterations < 1 {
		fail(c, http.StatusBadRequest, "iterations must be positive")
		return
	}
	annotations, err := decodeURI("annotations", req.Annotations)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	set, err := encodeSet(entry{KeyDiffusion, artifact.TitleDiffusion, grayscale(annotations)})
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for i := 1; i <= s.cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			s.log.Info("diffusion stream abandoned by client", zap.Int("step", i))
			return
		case <-time.After(s.cfg.StepDelay):
		}
		progress := float64(i) * 100 / float64(s.cfg.Steps)
		if err := writeFrame(c.Writer, types.StreamFrame{Progress: &progress}); err != nil {
			return
		}
		c.Writer.Flush()
	}

	if err := writeFrame(c.Writer, types.StreamFrame{Status: types.StatusSuccess, Images: set}); err != nil {
		s.log.Warn("failed to write result frame", zap.Error(err))
		return
	}
	c.Writer.Flush()
}

// writeFrame emits one "data: <json>" event.
func writeFrame(w io.Writer, frame types.StreamFrame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", payload)
	return err
}

func (s *Server) processFocus(c *gin.Context) {
	var req types.FocusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.AnisotropicResult == "" {
		fail(c, http.StatusBadRequest, "anisotropicResult is required")
		return
	}
	p := req.FocusPoint
	if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
		fail(c, http.StatusBadRequest, "focusPoint must lie within [0,1]")
		return
	}

	depth, err := decodeURI("anisotropicResult", req.AnisotropicResult)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	src, err := s.source(req.ImageData, req.ImageName)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if src == nil {
		src = depth
	}

	set, err := encodeSet(entry{KeyFocus, artifact.TitleFocus, src})
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, types.ImagesResponse{Status: types.StatusSuccess, Images: set})
}
