package notify

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Event identifies a notification trigger.
type Event string

const (
	// EventDiffusion fires when a diffusion job completes.
	EventDiffusion Event = "diffuse"
	// EventFocus fires when a focus blur completes.
	EventFocus Event = "focus"
)

// Preferences describes notification behaviour loaded from configuration.
type Preferences struct {
	Title     string
	Templates map[Event]string
}

// DefaultPreferences returns the default notification settings.
func DefaultPreferences(title string) Preferences {
	if strings.TrimSpace(title) == "" {
		title = "depthbrush"
	}
	return Preferences{
		Title: title,
		Templates: map[Event]string{
			EventDiffusion: "Depth diffusion finished for %s",
			EventFocus:     "Focus blur finished for %s",
		},
	}
}

// sender delivers one desktop notification.
type sender func(title, body, iconPath string) error

// Notifier sends desktop notifications for finished pipeline jobs.
type Notifier struct {
	prefs   Preferences
	enabled map[Event]bool
	send    sender
	log     *zap.Logger
}

// New creates a Notifier with every event disabled.
func New(prefs Preferences, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	cloned := Preferences{Title: prefs.Title, Templates: make(map[Event]string, len(prefs.Templates))}
	for k, v := range prefs.Templates {
		cloned.Templates[k] = v
	}
	return &Notifier{prefs: cloned, enabled: make(map[Event]bool), send: desktopNotify, log: log}
}

// Enable toggles the notifier for the provided event.
func (n *Notifier) Enable(event Event, enabled bool) {
	if n == nil {
		return
	}
	n.enabled[event] = enabled
}

// EnableAll toggles every known event.
func (n *Notifier) EnableAll(enabled bool) {
	for event := range n.prefs.Templates {
		n.Enable(event, enabled)
	}
}

// Completed reports a finished job. op is the pipeline operation name and
// preview, when non-nil, is shown as the notification icon.
func (n *Notifier) Completed(op, detail string, preview image.Image) {
	event := Event(op)
	if !n.enabledFor(event) {
		return
	}
	icon := ""
	if preview != nil {
		if path, cleanup, err := createPreview(preview); err != nil {
			n.log.Warn("notification preview", zap.Error(err))
		} else {
			defer cleanup()
			icon = path
		}
	}
	n.dispatch(event, detail, icon)
}

func (n *Notifier) enabledFor(event Event) bool {
	if n == nil || n.enabled == nil {
		return false
	}
	return n.enabled[event]
}

func (n *Notifier) dispatch(event Event, detail, icon string) {
	template := strings.TrimSpace(n.prefs.Templates[event])
	if template == "" {
		return
	}
	if strings.TrimSpace(detail) == "" {
		detail = "image"
	}
	body := strings.TrimSpace(fmt.Sprintf(template, strings.TrimSpace(detail)))
	if err := n.send(n.prefs.Title, body, icon); err != nil {
		n.log.Warn("desktop notification failed", zap.String("event", string(event)), zap.Error(err))
	}
}

func createPreview(img image.Image) (string, func(), error) {
	f, err := os.CreateTemp("", "depthbrush-preview-*.png")
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, err
	}
	return path, func() { _ = os.Remove(path) }, nil
}
