package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/andresmejia3/depthbrush/internal/stream"
	"github.com/andresmejia3/depthbrush/internal/types"
)

// DefaultBaseURL is where the depth backend listens by default.
const DefaultBaseURL = "http://127.0.0.1:5000/api"

// Endpoint paths relative to the base URL.
const (
	PathUpload      = "/upload-image"
	PathSave        = "/save-annotations"
	PathAnisotropic = "/process-anisotropic"
	PathFocus       = "/process-focus"
)

// NetworkError is a transport failure. No retry is attempted.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: network error: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// RemoteError is a response the backend marked as failed, either by HTTP
// status or by a {"status":"error"} body.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend returned HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: backend error (HTTP %d): %s", e.Op, e.StatusCode, e.Message)
}

// Client talks to the depth backend.
type Client struct {
	base    string
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithTimeout bounds every request except the streamed diffusion job.
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// New returns a client for baseURL, e.g. http://127.0.0.1:5000/api.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: http.DefaultClient,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string { return c.base }

// UploadImage posts the raw image as the multipart field "image".
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (*types.UploadResponse, error) {
	const op = "upload-image"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(filename)))
	h.Set("Content-Type", http.DetectContentType(data))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	var out types.UploadResponse
	if err := c.do(ctx, op, PathUpload, mw.FormDataContentType(), &body, &out); err != nil {
		return nil, err
	}
	if out.Status == types.StatusError {
		return nil, &RemoteError{Op: op, StatusCode: http.StatusOK, Message: out.Message}
	}
	return &out, nil
}

// SaveAnnotations sends both serialized buffers and returns the derived images.
func (c *Client) SaveAnnotations(ctx context.Context, req types.SaveAnnotationsRequest) (types.ImageSet, error) {
	return c.images(ctx, "save-annotations", PathSave, req)
}

// ProcessFocus runs the focus blur around req.FocusPoint.
func (c *Client) ProcessFocus(ctx context.Context, req types.FocusRequest) (types.ImageSet, error) {
	return c.images(ctx, "process-focus", PathFocus, req)
}

// ProcessAnisotropic starts the diffusion job and follows its frame stream
// until a terminal frame. onProgress may be nil.
func (c *Client) ProcessAnisotropic(ctx context.Context, req types.AnisotropicRequest, onProgress func(float64)) (*types.StreamResult, error) {
	const op = "process-anisotropic"

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}
	resp, err := c.post(ctx, op, PathAnisotropic, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, remoteFromBody(op, resp)
	}

	m := &stream.Monitor{OnProgress: onProgress, Logger: c.log.With(zap.String("op", op))}
	res, err := m.Consume(ctx, resp.Body)
	if err != nil {
		var se *stream.StreamError
		if errors.As(err, &se) || errors.Is(err, stream.ErrNoResult) || ctx.Err() != nil {
			return nil, err
		}
		return nil, &NetworkError{Op: op, Err: err}
	}
	return res, nil
}

func (c *Client) images(ctx context.Context, op, path string, req any) (types.ImageSet, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}

	ctx, cancel := c.bounded(ctx)
	defer cancel()

	var out types.ImagesResponse
	if err := c.do(ctx, op, path, "application/json", bytes.NewReader(payload), &out); err != nil {
		return nil, err
	}
	if out.Status == types.StatusError {
		return nil, &RemoteError{Op: op, StatusCode: http.StatusOK, Message: out.Message}
	}
	return out.Images, nil
}

func (c *Client) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	c.log.Debug("backend call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)
	return resp, nil
}

func (c *Client) do(ctx context.Context, op, path, contentType string, body io.Reader, out any) error {
	resp, err := c.post(ctx, op, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remoteFromBody(op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return &NetworkError{Op: op, Err: ctx.Err()}
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// remoteFromBody builds a RemoteError, using the backend's message when the
// body is a JSON error object.
func remoteFromBody(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		}
	}
	return &RemoteError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}
