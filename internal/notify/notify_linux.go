//go:build linux

package notify

import (
	"github.com/godbus/dbus/v5"
)

// desktopNotify sends a notification over the Freedesktop.org Notifications D-Bus interface.
func desktopNotify(title, body, iconPath string) error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return err
	}
	defer conn.Close()

	obj := conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.Call("org.freedesktop.Notifications.Notify", 0,
		"depthbrush", uint32(0), iconPath, title, body, []string{}, map[string]dbus.Variant{}, int32(5000))
	return call.Err
}
