package sysproxy

import (
	"fmt"

	"github.com/godbus/dbus"
)

// DBusNotifier emits the KIO reparse signal on the session bus.
type DBusNotifier struct{}

func (DBusNotifier) ReparseKIO() error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return conn.Emit("/KIO/Scheduler", "org.kde.KIO.Scheduler.reparseSlaveConfiguration", "")
}
