package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andresmejia3/depthbrush/internal/artifact"
)

// ErrPrecondition matches every stage run out of order.
var ErrPrecondition = errors.New("stage precondition not met")

// ErrAlreadyRunning is returned while a diffusion job for the image is in flight.
var ErrAlreadyRunning = errors.New("diffusion already running for this image")

// PreconditionError names the operation and what it was missing.
// The request is never sent.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *PreconditionError) Is(target error) bool { return target == ErrPrecondition }

// MissingArtifactError is a precondition failure caused by artifacts an
// earlier stage should have produced.
type MissingArtifactError struct {
	Op       string
	Category artifact.Category
	Titles   []string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("%s: missing %s artifacts: %s (run the previous stage first)",
		e.Op, e.Category, strings.Join(e.Titles, ", "))
}

func (e *MissingArtifactError) Is(target error) bool { return target == ErrPrecondition }

// ErrImageChanged is returned when the selection changed while a request was
// in flight. Its response is discarded.
var ErrImageChanged = errors.New("selected image changed while the request was in flight")
