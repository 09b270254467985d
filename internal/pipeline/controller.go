package pipeline

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/andresmejia3/depthbrush/internal/artifact"
	"github.com/andresmejia3/depthbrush/internal/canvas"
	"github.com/andresmejia3/depthbrush/internal/types"
)

// Stage is the position of the active image in the pipeline.
type Stage string

const (
	StageIdle             Stage = "idle"
	StageAnnotationSaved  Stage = "annotation_saved"
	StageDiffusionRunning Stage = "diffusion_running"
	StageDiffusionDone    Stage = "diffusion_done"
	StageFocusSelecting   Stage = "focus_selecting"
	StageFocusDone        Stage = "focus_done"
)

// Titles save-annotations must have produced before diffusion may run.
var diffusionInputs = []string{
	artifact.TitleWithScribbles,
	artifact.TitleInputAnnotations,
	artifact.TitleMask,
	artifact.TitleIgnoreMask,
}

// Backend is the HTTP contract of the depth service.
type Backend interface {
	UploadImage(ctx context.Context, filename string, data []byte) (*types.UploadResponse, error)
	SaveAnnotations(ctx context.Context, req types.SaveAnnotationsRequest) (types.ImageSet, error)
	ProcessAnisotropic(ctx context.Context, req types.AnisotropicRequest, onProgress func(float64)) (*types.StreamResult, error)
	ProcessFocus(ctx context.Context, req types.FocusRequest) (types.ImageSet, error)
}

// Notifier is told when a long running stage completes.
type Notifier interface {
	Completed(op, detail string, preview image.Image)
}

// Controller gates every backend call on the stage preconditions and records
// the returned artifacts. Nothing is sent when a precondition fails.
type Controller struct {
	backend Backend
	store   *artifact.Store
	archive artifact.Archive
	notify  Notifier
	log     *zap.Logger

	mu      sync.Mutex
	image   *types.Image
	key     string
	surface *canvas.Surface
	stage   Stage
	gen     uint64
	running *atomic.Bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithArchive persists every category the controller stores.
func WithArchive(a artifact.Archive) Option { return func(c *Controller) { c.archive = a } }

// WithNotifier reports finished diffusion and focus jobs.
func WithNotifier(n Notifier) Option { return func(c *Controller) { c.notify = n } }

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.log = l } }

// New returns a controller with no image selected.
func New(backend Backend, store *artifact.Store, opts ...Option) *Controller {
	if store == nil {
		store = artifact.NewStore()
	}
	c := &Controller{
		backend: backend,
		store:   store,
		log:     zap.NewNop(),
		stage:   StageIdle,
		running: new(atomic.Bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stage returns the current stage.
func (c *Controller) Stage() Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stage
}

// Artifacts exposes the artifact store.
func (c *Controller) Artifacts() *artifact.Store { return c.store }

// Image returns the selected image, if any.
func (c *Controller) Image() (types.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.image == nil {
		return types.Image{}, false
	}
	return *c.image, true
}

// SelectImage makes img the active image. The stage goes back to Idle, the
// store is cleared, and anything archived under key is restored.
// surface may be nil when no annotation will be saved in this session.
func (c *Controller) SelectImage(ctx context.Context, img types.Image, key string, surface *canvas.Surface) error {
	c.mu.Lock()
	c.image = &img
	c.key = key
	c.surface = surface
	c.stage = StageIdle
	c.gen++
	c.running = new(atomic.Bool)
	c.mu.Unlock()

	c.store.Clear()
	if c.archive == nil || key == "" {
		return nil
	}

	if err := c.archive.RememberImage(ctx, key, img.DisplayName, img.ServerName); err != nil {
		c.log.Warn("archive: failed to record image", zap.String("key", key), zap.Error(err))
	}

	restored := StageIdle
	for _, cat := range artifact.Categories {
		arts, err := c.archive.LoadCategory(ctx, key, cat)
		if err != nil {
			c.log.Warn("archive: failed to restore category", zap.String("key", key), zap.String("category", string(cat)), zap.Error(err))
			continue
		}
		if len(arts) == 0 {
			continue
		}
		c.store.Replace(cat, arts)
		switch cat {
		case artifact.Annotations:
			restored = StageAnnotationSaved
		case artifact.Diffusion:
			restored = StageDiffusionDone
		case artifact.Focus:
			restored = StageFocusDone
		}
	}

	c.mu.Lock()
	c.stage = restored
	c.mu.Unlock()
	c.log.Debug("image selected", zap.String("key", key), zap.String("stage", string(restored)))
	return nil
}

// snapshot is the selection a request was issued for.
type snapshot struct {
	image   types.Image
	key     string
	surface *canvas.Surface
	gen     uint64
	running *atomic.Bool
}

func (c *Controller) current(op string) (snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.image == nil {
		return snapshot{}, &PreconditionError{Op: op, Reason: "no image selected"}
	}
	return snapshot{image: *c.image, key: c.key, surface: c.surface, gen: c.gen, running: c.running}, nil
}

// commit applies fn if the selection is still the one the request was issued for.
func (c *Controller) commit(s snapshot, fn func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != s.gen {
		return ErrImageChanged
	}
	fn()
	return nil
}

// source fills the image reference of a request. The server name wins once
// the image has been uploaded.
func source(img types.Image) (data, name string) {
	if img.ServerName != "" {
		return "", img.ServerName
	}
	return img.SourceRef, ""
}

// Upload sends the raw image to the backend and binds the returned filename
// to the active image.
func (c *Controller) Upload(ctx context.Context, filename string, data []byte) (types.Image, error) {
	const op = "upload"
	s, err := c.current(op)
	if err != nil {
		return types.Image{}, err
	}

	res, err := c.backend.UploadImage(ctx, filename, data)
	if err != nil {
		return types.Image{}, err
	}

	img := s.image.WithServerName(res.Filename)
	if err := c.commit(s, func() { c.image = &img }); err != nil {
		return types.Image{}, err
	}
	if c.archive != nil && s.key != "" {
		if err := c.archive.RememberImage(ctx, s.key, img.DisplayName, img.ServerName); err != nil {
			c.log.Warn("archive: failed to record image", zap.String("key", s.key), zap.Error(err))
		}
	}
	return img, nil
}

// Save serializes both canvas buffers and stores the derived annotation images.
func (c *Controller) Save(ctx context.Context) ([]artifact.Artifact, error) {
	const op = "save"
	s, err := c.current(op)
	if err != nil {
		return nil, err
	}
	if s.surface == nil {
		return nil, &PreconditionError{Op: op, Reason: "no annotation surface attached"}
	}
	if st := s.surface.State(); st != canvas.StateReady && st != canvas.StateDrawing {
		return nil, &PreconditionError{Op: op, Reason: "annotation surface is " + st.String()}
	}
	snap, err := s.surface.Serialize()
	if err != nil {
		return nil, &PreconditionError{Op: op, Reason: err.Error()}
	}

	data, name := source(s.image)
	images, err := c.backend.SaveAnnotations(ctx, types.SaveAnnotationsRequest{
		ImageData:     data,
		ImageName:     name,
		Annotations:   snap.Annotations,
		WithScribbles: snap.WithScribbles,
	})
	if err != nil {
		return nil, err
	}

	var arts []artifact.Artifact
	err = c.commit(s, func() {
		arts = c.store.Put(artifact.Annotations, images)
		c.stage = StageAnnotationSaved
	})
	if err != nil {
		return nil, err
	}
	c.persist(ctx, s.key, artifact.Annotations, arts)
	return arts, nil
}

// Diffuse runs the anisotropic diffusion on the saved annotation images.
// Only one job per image may be in flight.
func (c *Controller) Diffuse(ctx context.Context, params DiffusionParams, onProgress func(float64)) ([]artifact.Artifact, error) {
	const op = "diffuse"
	s, err := c.current(op)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, &PreconditionError{Op: op, Reason: err.Error()}
	}
	if missing := c.store.Missing(artifact.Annotations, diffusionInputs...); len(missing) > 0 {
		return nil, &MissingArtifactError{Op: op, Category: artifact.Annotations, Titles: missing}
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	annotations, _ := c.store.FindByTitle(artifact.Annotations, artifact.TitleInputAnnotations)
	mask, _ := c.store.FindByTitle(artifact.Annotations, artifact.TitleMask)
	ignore, _ := c.store.FindByTitle(artifact.Annotations, artifact.TitleIgnoreMask)

	var previous Stage
	if err := c.commit(s, func() { previous, c.stage = c.stage, StageDiffusionRunning }); err != nil {
		return nil, err
	}

	data, name := source(s.image)
	res, err := c.backend.ProcessAnisotropic(ctx, types.AnisotropicRequest{
		ImageData:   data,
		ImageName:   name,
		Annotations: annotations.Src,
		Mask:        mask.Src,
		IgnoreMask:  ignore.Src,
		Beta:        params.Beta,
		Iterations:  params.Iterations,
	}, onProgress)
	if err != nil {
		_ = c.commit(s, func() { c.stage = previous })
		return nil, err
	}

	var arts []artifact.Artifact
	err = c.commit(s, func() {
		arts = c.store.Put(artifact.Diffusion, res.Images)
		c.stage = StageDiffusionDone
	})
	if err != nil {
		return nil, err
	}
	c.persist(ctx, s.key, artifact.Diffusion, arts)
	c.completed(op, s.image, arts, artifact.TitleDiffusion)
	return arts, nil
}

// BeginFocus moves to focus point selection once a diffusion result exists.
func (c *Controller) BeginFocus() error {
	const op = "focus"
	s, err := c.current(op)
	if err != nil {
		return err
	}
	if _, err := c.store.FindByTitle(artifact.Diffusion, artifact.TitleDiffusion); err != nil {
		return &MissingArtifactError{Op: op, Category: artifact.Diffusion, Titles: []string{artifact.TitleDiffusion}}
	}
	return c.commit(s, func() { c.stage = StageFocusSelecting })
}

// Focus sends the diffusion result and the clicked point, normalised to the
// rendered size of the image.
func (c *Controller) Focus(ctx context.Context, click FocusClick, params FocusParams) ([]artifact.Artifact, error) {
	const op = "focus"
	s, err := c.current(op)
	if err != nil {
		return nil, err
	}
	diffusion, err := c.store.FindByTitle(artifact.Diffusion, artifact.TitleDiffusion)
	if err != nil {
		return nil, &MissingArtifactError{Op: op, Category: artifact.Diffusion, Titles: []string{artifact.TitleDiffusion}}
	}
	point, err := click.Relative()
	if err != nil {
		return nil, &PreconditionError{Op: op, Reason: err.Error()}
	}

	var previous Stage
	if err := c.commit(s, func() { previous, c.stage = c.stage, StageFocusSelecting }); err != nil {
		return nil, err
	}

	data, name := source(s.image)
	images, err := c.backend.ProcessFocus(ctx, types.FocusRequest{
		ImageData:         data,
		ImageName:         name,
		AnisotropicResult: diffusion.Src,
		FocusPoint:        point,
		DepthRange:        params.DepthRange,
		KernelSizeGaus:    params.KernelSizeGaus,
		KernelSizeBf:      params.KernelSizeBf,
		SigmaColor:        params.SigmaColor,
		SigmaSpace:        params.SigmaSpace,
		GausSigma:         params.GausSigma,
	})
	if err != nil {
		_ = c.commit(s, func() { c.stage = previous })
		return nil, err
	}

	var arts []artifact.Artifact
	err = c.commit(s, func() {
		arts = c.store.Put(artifact.Focus, images)
		c.stage = StageFocusDone
	})
	if err != nil {
		return nil, err
	}
	c.persist(ctx, s.key, artifact.Focus, arts)
	c.completed(op, s.image, arts, artifact.TitleFocus)
	return arts, nil
}

// persist archives a category. Failures are logged; the stage still succeeds.
func (c *Controller) persist(ctx context.Context, key string, cat artifact.Category, arts []artifact.Artifact) {
	if c.archive == nil || key == "" {
		return
	}
	if err := c.archive.SaveCategory(ctx, key, cat, arts); err != nil {
		c.log.Warn("archive: failed to save category",
			zap.String("key", key),
			zap.String("category", string(cat)),
			zap.Error(err),
		)
	}
}

func (c *Controller) completed(op string, img types.Image, arts []artifact.Artifact, title string) {
	if c.notify == nil {
		return
	}
	var preview image.Image
	for _, a := range arts {
		if a.Title != title {
			continue
		}
		if decoded, err := a.Decode(); err == nil {
			preview = decoded
		}
		break
	}
	c.notify.Completed(op, img.DisplayName, preview)
}
