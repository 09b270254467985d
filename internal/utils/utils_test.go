package utils

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestGenerateImageKey(t *testing.T) {
	id := GenerateImageKey([]byte("fake image content"))
	if len(id) != 64 {
		t.Fatalf("Expected a sha256 hex digest, got %q", id)
	}

	// Verify Determinism
	if id2 := GenerateImageKey([]byte("fake image content")); id != id2 {
		t.Errorf("Hash is not deterministic. Got %s, then %s", id, id2)
	}

	// Verify Sensitivity (Change content -> Change ID)
	if id3 := GenerateImageKey([]byte("fake image content modified")); id == id3 {
		t.Error("Hash did not change after content modification")
	}
}

func TestDataURIRoundTrip(t *testing.T) {
	uri := DataURI("", pngHeader)
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Fatalf("Unexpected prefix: %s", uri)
	}

	data, mime, err := DecodeDataURI(uri)
	if err != nil {
		t.Fatalf("DecodeDataURI failed: %v", err)
	}
	if mime != "image/png" {
		t.Errorf("Expected image/png, got %s", mime)
	}
	if !bytes.Equal(data, pngHeader) {
		t.Errorf("Payload mismatch: %X", data)
	}
}

func TestDecodeDataURIErrors(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"Plain URL", "http://127.0.0.1:5000/static/a.png"},
		{"No payload", "data:image/png;base64"},
		{"Not base64", "data:text/plain,hello"},
		{"Bad payload", "data:image/png;base64,@@@"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := DecodeDataURI(tt.uri); err == nil {
				t.Errorf("Expected an error for %q", tt.uri)
			}
		})
	}
}

func TestReadImageFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cat.png")
	if err := os.WriteFile(path, pngHeader, 0644); err != nil {
		t.Fatal(err)
	}

	img, err := ReadImageFile(path)
	if err != nil {
		t.Fatalf("ReadImageFile failed: %v", err)
	}
	if img.Name != "cat.png" || img.Mime != "image/png" {
		t.Errorf("Unexpected file info: %+v", img)
	}
	if img.Key != GenerateImageKey(pngHeader) {
		t.Errorf("Key is not the content hash")
	}

	text := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(text, []byte("just some notes"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadImageFile(text); err == nil {
		t.Error("Expected non-image file to be rejected")
	}
	if _, err := ReadImageFile(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Expected missing file to fail")
	}
}

func TestShowError(t *testing.T) {
	var buf bytes.Buffer
	ShowError(&buf, "diffusion failed", errors.New("boom"), "run `depthbrush save` first")

	out := buf.String()
	for _, want := range []string{"DEPTHBRUSH ERROR: diffusion failed", "DETAILS: boom", "HINT: run `depthbrush save` first"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestInitLogger(t *testing.T) {
	for _, mode := range []string{"release", "quiet", "debug"} {
		if err := InitLogger(mode); err != nil {
			t.Fatalf("InitLogger(%q) failed: %v", mode, err)
		}
		if Logger == nil {
			t.Fatalf("Logger not set for mode %q", mode)
		}
	}
}
