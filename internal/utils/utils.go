package utils

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
)

// --- 1. CLI Error Reporting ---

// ShowError prints the unified error box to w without exiting.
// hint, when non-empty, tells the user what to do next.
func ShowError(w io.Writer, context string, err error, hint string) {
	fmt.Fprintf(w, "\n---------------------------------------------------------\n")
	fmt.Fprintf(w, "🚨 DEPTHBRUSH ERROR: %s\n", context)
	if err != nil {
		fmt.Fprintf(w, "DETAILS: %v\n", err)
	}
	if hint != "" {
		fmt.Fprintf(w, "\nHINT: %s\n", hint)
	}
	fmt.Fprintf(w, "---------------------------------------------------------\n")
}

// --- 2. Image Identity & Encoding ---

// GenerateImageKey creates a deterministic hash of the source image bytes.
// The same picture maps to the same archive entry across runs and paths.
func GenerateImageKey(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// DataURI encodes data as a base64 data URI. An empty mime is sniffed.
func DataURI(mime string, data []byte) string {
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI returns the payload and media type of a base64 data URI.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", errors.New("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", errors.New("data URI has no payload")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", errors.New("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("data URI payload: %w", err)
	}
	return data, mime, nil
}

// ImageFile is a source image read from disk.
type ImageFile struct {
	Path    string
	Name    string
	Data    []byte
	Mime    string
	DataURI string
	Key     string
}

// ReadImageFile loads path and prepares every representation the pipeline needs.
func ReadImageFile(path string) (*ImageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%s does not look like an image (detected %s)", path, mime)
	}
	name := path
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		name = path[i+1:]
	}
	return &ImageFile{
		Path:    path,
		Name:    name,
		Data:    data,
		Mime:    mime,
		DataURI: DataURI(mime, data),
		Key:     GenerateImageKey(data),
	}, nil
}
