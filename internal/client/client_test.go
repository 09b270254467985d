package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/depthbrush/internal/stream"
	"github.com/andresmejia3/depthbrush/internal/types"
)

func TestUploadImageSendsMultipartField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathUpload, r.URL.Path)
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		require.Equal(t, "cat.png", hdr.Filename)
		require.Equal(t, []byte("\x89PNG\r\n\x1a\nrest"), data)
		fmt.Fprint(w, `{"status":"success","filename":"cat.png"}`)
	}))
	defer srv.Close()

	c := New(srv.URL + "/")
	res, err := c.UploadImage(context.Background(), "/tmp/in/cat.png", []byte("\x89PNG\r\n\x1a\nrest"))
	require.NoError(t, err)
	require.Equal(t, "cat.png", res.Filename)
	require.Equal(t, srv.URL, c.BaseURL())
}

func TestSaveAnnotationsWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathSave, r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "cat.png", body["imageName"])
		require.Equal(t, "data:mask", body["annotations"])
		require.Equal(t, "data:comp", body["withScribbles"])
		require.NotContains(t, body, "imageData")

		fmt.Fprint(w, `{"images":{"With Scribbles":{"src":"data:a","title":"With Scribbles"},"Mask":{"src":"data:b","title":"Mask"}}}`)
	}))
	defer srv.Close()

	images, err := New(srv.URL).SaveAnnotations(context.Background(), types.SaveAnnotationsRequest{
		ImageName:     "cat.png",
		Annotations:   "data:mask",
		WithScribbles: "data:comp",
	})
	require.NoError(t, err)
	require.Len(t, images, 2)
	require.Equal(t, "With Scribbles", images[0].Key)
	require.Equal(t, "Mask", images[1].Title)
}

func TestProcessFocusWireFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]any{"x": 0.25, "y": 0.75}, body["focusPoint"])
		require.Equal(t, "data:diff", body["anisotropicResult"])
		require.EqualValues(t, 5, body["kernelSizeGaus"])
		require.EqualValues(t, 60, body["gausSigma"])
		fmt.Fprint(w, `{"status":"success","images":{"Focus Result":{"src":"data:f","title":"Focus Result"}}}`)
	}))
	defer srv.Close()

	images, err := New(srv.URL).ProcessFocus(context.Background(), types.FocusRequest{
		ImageData:         "data:src",
		AnisotropicResult: "data:diff",
		FocusPoint:        types.FocusPoint{X: 0.25, Y: 0.75},
		KernelSizeGaus:    5,
		GausSigma:         60,
	})
	require.NoError(t, err)
	require.Equal(t, "Focus Result", images[0].Title)
}

func TestProcessAnisotropicStreamsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body types.AnisotropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, 3000, body.Iterations)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range []string{"data: {\"prog", "ress\":10}\n\ndata: {\"progress\":50}\n", "\ndata: {\"status\":\"success\",\"images\":{}}\n\n"} {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	var progress []float64
	res, err := New(srv.URL).ProcessAnisotropic(context.Background(), types.AnisotropicRequest{Iterations: 3000}, func(p float64) {
		progress = append(progress, p)
	})
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, res.Status)
	require.Equal(t, []float64{10, 50}, progress)
}

func TestProcessAnisotropicErrorFrame(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "data: {\"status\":\"error\",\"message\":\"bad mask\"}\n\n")
	}))
	defer srv.Close()

	_, err := New(srv.URL).ProcessAnisotropic(context.Background(), types.AnisotropicRequest{}, nil)
	var se *stream.StreamError
	require.True(t, errors.As(err, &se))
	require.Equal(t, "bad mask", se.Message)
}

func TestHTTPErrorIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":"error","message":"No image data provided"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).SaveAnnotations(context.Background(), types.SaveAnnotationsRequest{})
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	require.Equal(t, http.StatusBadRequest, re.StatusCode)
	require.Equal(t, "No image data provided", re.Message)

	_, err = New(srv.URL).ProcessAnisotropic(context.Background(), types.AnisotropicRequest{}, nil)
	require.True(t, errors.As(err, &re))
}

func TestStatusErrorBodyIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"error","message":"focus failed"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).ProcessFocus(context.Background(), types.FocusRequest{})
	var re *RemoteError
	require.True(t, errors.As(err, &re))
	require.Equal(t, "focus failed", re.Message)
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).SaveAnnotations(context.Background(), types.SaveAnnotationsRequest{})
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	require.Equal(t, "save-annotations", ne.Op)
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(srv.URL, WithTimeout(50*time.Millisecond)).ProcessFocus(context.Background(), types.FocusRequest{})
	var ne *NetworkError
	require.True(t, errors.As(err, &ne))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
