//go:build linux

package notify

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	busName   = "org.freedesktop.Notifications"
	busPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	busNotify = busName + ".Notify"
)

// Bus sends messages to the session's notification server over a private
// D-Bus connection.
type Bus struct {
	conn *dbus.Conn
	obj  dbus.BusObject
	app  string
}

// Dial connects to the session bus. app is shown as the sending
// application and, lowercased, names its desktop entry.
func Dial(app string) (*Bus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &Bus{conn: conn, obj: conn.Object(busName, busPath), app: app}, nil
}

func (b *Bus) Send(m Message) (uint32, error) {
	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(m.Urgency)),
		"desktop-entry": dbus.MakeVariant(strings.ToLower(b.app)),
	}
	var id uint32
	err := b.obj.Call(busNotify, 0,
		b.app, m.Replaces, m.Icon, m.Summary, m.Body,
		[]string{}, hints, expireMillis(m.Expire),
	).Store(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Close drops the connection. Shown messages stay until they expire.
func (b *Bus) Close() error {
	return b.conn.Close()
}
