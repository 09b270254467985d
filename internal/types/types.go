package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Image is a source picture selected for annotation. It is immutable once created.
type Image struct {
	ID          uuid.UUID
	DisplayName string
	SourceRef   string // data URI or URL of the raster
	ServerName  string // name returned by upload-image, empty until uploaded
}

// NewImage creates an Image with a fresh identifier.
func NewImage(displayName, sourceRef string) Image {
	return Image{ID: uuid.New(), DisplayName: displayName, SourceRef: sourceRef}
}

// WithServerName returns a copy of the image bound to a backend filename.
func (i Image) WithServerName(name string) Image {
	i.ServerName = name
	return i
}

// ImageEntry is one named raster inside a backend "images" object.
type ImageEntry struct {
	Key   string
	Src   string `json:"src"`
	Title string `json:"title"`
}

// ImageSet keeps the entries of an "images" object in wire order.
type ImageSet []ImageEntry

// UnmarshalJSON decodes {"key": {"src": ..., "title": ...}, ...} preserving key order.
func (s *ImageSet) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("images: expected object, got %v", tok)
	}

	out := ImageSet{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("images: expected key, got %v", tok)
		}
		var entry ImageEntry
		if err := dec.Decode(&entry); err != nil {
			return fmt.Errorf("images[%q]: %w", key, err)
		}
		entry.Key = key
		out = append(out, entry)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = out
	return nil
}

// MarshalJSON encodes the set as an object in slice order.
func (s ImageSet) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, e := range s {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(e.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(struct {
			Src   string `json:"src"`
			Title string `json:"title"`
		}{e.Src, e.Title})
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// SaveAnnotationsRequest is the body of POST save-annotations.
type SaveAnnotationsRequest struct {
	ImageData     string `json:"imageData,omitempty"`
	ImageName     string `json:"imageName,omitempty"`
	Annotations   string `json:"annotations"`
	WithScribbles string `json:"withScribbles"`
}

// AnisotropicRequest is the body of POST process-anisotropic.
type AnisotropicRequest struct {
	ImageData   string  `json:"imageData,omitempty"`
	ImageName   string  `json:"imageName,omitempty"`
	Annotations string  `json:"annotations"`
	Mask        string  `json:"mask"`
	IgnoreMask  string  `json:"ignoreMask"`
	Beta        float64 `json:"beta"`
	Iterations  int     `json:"iterations"`
}

// FocusPoint is a resolution independent position in [0,1]x[0,1].
type FocusPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FocusRequest is the body of POST process-focus.
type FocusRequest struct {
	ImageData         string     `json:"imageData,omitempty"`
	ImageName         string     `json:"imageName,omitempty"`
	AnisotropicResult string     `json:"anisotropicResult"`
	FocusPoint        FocusPoint `json:"focusPoint"`
	DepthRange        float64    `json:"depthRange"`
	KernelSizeGaus    int        `json:"kernelSizeGaus"`
	KernelSizeBf      int        `json:"kernelSizeBf"`
	SigmaColor        float64    `json:"sigmaColor"`
	SigmaSpace        float64    `json:"sigmaSpace"`
	GausSigma         float64    `json:"gausSigma"`
}

// ImagesResponse is returned by save-annotations and process-focus.
type ImagesResponse struct {
	Status  string   `json:"status,omitempty"`
	Message string   `json:"message,omitempty"`
	Images  ImageSet `json:"images"`
}

// UploadResponse is returned by upload-image.
type UploadResponse struct {
	Status   string `json:"status"`
	Filename string `json:"filename"`
	Message  string `json:"message,omitempty"`
}

// StreamFrame is the JSON payload carried by one streaming frame.
type StreamFrame struct {
	Progress *float64 `json:"progress,omitempty"`
	Status   string   `json:"status,omitempty"`
	Message  string   `json:"message,omitempty"`
	Images   ImageSet `json:"images,omitempty"`
}

// StreamResult is the terminal success payload of a streamed job.
type StreamResult struct {
	Status string
	Images ImageSet
}

// Frame status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)
