package notify

import (
	"errors"
	"image"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

type sent struct {
	title, body, icon string
	iconExisted       bool
}

func recorder(out *[]sent, err error) sender {
	return func(title, body, icon string) error {
		_, statErr := os.Stat(icon)
		*out = append(*out, sent{title: title, body: body, icon: icon, iconExisted: icon != "" && statErr == nil})
		return err
	}
}

func TestDisabledByDefault(t *testing.T) {
	var got []sent
	n := New(DefaultPreferences(""), nil)
	n.send = recorder(&got, nil)

	n.Completed("diffuse", "cat.png", nil)
	require.Empty(t, got)
}

func TestCompletedFormatsBody(t *testing.T) {
	var got []sent
	n := New(DefaultPreferences("Depth"), nil)
	n.send = recorder(&got, nil)
	n.Enable(EventDiffusion, true)

	n.Completed("diffuse", " cat.png ", nil)
	n.Completed("focus", "cat.png", nil) // not enabled
	n.Completed("upload", "cat.png", nil)

	require.Len(t, got, 1)
	require.Equal(t, "Depth", got[0].title)
	require.Equal(t, "Depth diffusion finished for cat.png", got[0].body)
	require.Empty(t, got[0].icon)
}

func TestPreviewIconIsTemporary(t *testing.T) {
	var got []sent
	n := New(DefaultPreferences(""), nil)
	n.send = recorder(&got, nil)
	n.EnableAll(true)

	n.Completed("focus", "", image.NewGray(image.Rect(0, 0, 4, 4)))
	require.Len(t, got, 1)
	require.Equal(t, "Focus blur finished for image", got[0].body)
	require.True(t, got[0].iconExisted)

	_, err := os.Stat(got[0].icon)
	require.True(t, os.IsNotExist(err))
}

func TestSendFailureIsNotFatal(t *testing.T) {
	var got []sent
	n := New(DefaultPreferences(""), nil)
	n.send = recorder(&got, errors.New("no session bus"))
	n.EnableAll(true)

	require.NotPanics(t, func() { n.Completed("diffuse", "x", nil) })
	require.Len(t, got, 1)
}

func TestNilNotifier(t *testing.T) {
	var n *Notifier
	require.NotPanics(t, func() {
		n.Enable(EventFocus, true)
		n.Completed("focus", "x", nil)
	})
}
