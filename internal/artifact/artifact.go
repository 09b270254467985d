package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"sync"
	"time"

	"github.com/andresmejia3/depthbrush/internal/types"
	"github.com/andresmejia3/depthbrush/internal/utils"
)

// Category groups the artifacts returned by one pipeline stage.
type Category string

const (
	Annotations Category = "annotations"
	Diffusion   Category = "diffusion"
	Focus       Category = "focus"
)

// Categories lists every category in pipeline order.
var Categories = []Category{Annotations, Diffusion, Focus}

// ParseCategory accepts a category name in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown artifact category %q", s)
}

// Well-known titles the backend uses.
const (
	TitleWithScribbles    = "With Scribbles"
	TitleInputAnnotations = "Input Annotations"
	TitleMask             = "Mask"
	TitleIgnoreMask       = "Ignore Mask"
	TitleDiffusion        = "Anisotropic Diffusion"
	TitleFocus            = "Focus Result"
)

// ErrNotFound is returned by FindByTitle.
var ErrNotFound = errors.New("artifact not found")

// Artifact is a named raster returned by the backend.
type Artifact struct {
	Category Category `json:"category"`
	Title    string   `json:"title"`
	Src      string   `json:"src"`
}

// Decode returns the raster behind a data URI source.
func (a Artifact) Decode() (image.Image, error) {
	raw, _, err := utils.DecodeDataURI(a.Src)
	if err != nil {
		return nil, fmt.Errorf("artifact %q: %w", a.Title, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("artifact %q: %w", a.Title, err)
	}
	return img, nil
}

// ImageSummary describes an archived image.
type ImageSummary struct {
	Key         string
	DisplayName string
	ServerName  string
	Categories  []Category
	UpdatedAt   time.Time
}

// Archive persists categories between runs. Implementations replace a
// category wholesale, the same way Store does.
type Archive interface {
	SaveCategory(ctx context.Context, imageKey string, category Category, artifacts []Artifact) error
	LoadCategory(ctx context.Context, imageKey string, category Category) ([]Artifact, error)
	RememberImage(ctx context.Context, imageKey, displayName, serverName string) error
	ListImages(ctx context.Context) ([]ImageSummary, error)
	Reset(ctx context.Context) error
	Close(ctx context.Context)
}

// Store keeps the latest artifacts per category for the active image.
type Store struct {
	mu    sync.RWMutex
	byCat map[Category][]Artifact
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{byCat: make(map[Category][]Artifact)}
}

// Put replaces category with the images of one server response. Entries
// without a source are dropped and a missing title falls back to the key.
// It returns what was stored.
func (s *Store) Put(category Category, images types.ImageSet) []Artifact {
	arts := make([]Artifact, 0, len(images))
	for _, img := range images {
		if img.Src == "" {
			continue
		}
		title := img.Title
		if title == "" {
			title = img.Key
		}
		arts = append(arts, Artifact{Category: category, Title: title, Src: img.Src})
	}
	s.Replace(category, arts)
	return arts
}

// Replace sets category to exactly arts.
func (s *Store) Replace(category Category, arts []Artifact) {
	cp := make([]Artifact, len(arts))
	for i, a := range arts {
		a.Category = category
		cp[i] = a
	}
	s.mu.Lock()
	s.byCat[category] = cp
	s.mu.Unlock()
}

// Get returns the artifacts of category in server order.
func (s *Store) Get(category Category) []Artifact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arts := s.byCat[category]
	out := make([]Artifact, len(arts))
	copy(out, arts)
	return out
}

// FindByTitle returns the first artifact of category named title.
func (s *Store) FindByTitle(category Category, title string) (Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.byCat[category] {
		if a.Title == title {
			return a, nil
		}
	}
	return Artifact{}, fmt.Errorf("%s/%q: %w", category, title, ErrNotFound)
}

// Missing returns the titles absent from category.
func (s *Store) Missing(category Category, titles ...string) []string {
	var missing []string
	for _, title := range titles {
		if _, err := s.FindByTitle(category, title); err != nil {
			missing = append(missing, title)
		}
	}
	return missing
}

// Clear drops every category.
func (s *Store) Clear() {
	s.mu.Lock()
	s.byCat = make(map[Category][]Artifact)
	s.mu.Unlock()
}
