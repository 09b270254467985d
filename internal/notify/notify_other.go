//go:build !linux

package notify

// desktopNotify is a no-op where no session bus exists.
func desktopNotify(title, body, iconPath string) error {
	return nil
}
