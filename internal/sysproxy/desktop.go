package sysproxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/command"
	"github.com/user/proxyswitch/internal/target"
)

const (
	gnomeSchema = "org.gnome.system.proxy"
	kdeFile     = "kioslaverc"
	kdeGroup    = "Proxy Settings"
)

// kwriteconfig binaries, newest Plasma first.
var kdeWriters = []string{"kwriteconfig6", "kwriteconfig5"}

// Notifier tells running KDE applications to reload kioslaverc.
type Notifier interface {
	ReparseKIO() error
}

// Desktop configures the desktop environment's proxy settings, GNOME through
// gsettings and KDE through kwriteconfig.
type Desktop struct {
	tool
	bypass   bypass.List
	notifier Notifier
}

func NewDesktop(runner command.Runner, timeout time.Duration, bp bypass.List, notifier Notifier, log *slog.Logger) *Desktop {
	if notifier == nil {
		notifier = DBusNotifier{}
	}
	return &Desktop{
		tool:     newTool(NameDesktop, runner, timeout, log),
		bypass:   bp,
		notifier: notifier,
	}
}

func (d *Desktop) Name() string { return NameDesktop }

func (d *Desktop) Apply(ctx context.Context, t target.ProxyTarget) (string, error) {
	gnomeErr := d.applyGnome(ctx, t)
	if gnomeErr == nil {
		return "gsettings: manual " + t.Kind().Label() + " proxy " + t.Addr(), nil
	}
	d.log.Debug("gsettings unavailable, trying KDE", "error", gnomeErr)

	writer, ok := d.kdeWriter()
	if !ok {
		return "", d.soft("apply", "no desktop proxy tool (gsettings: %v)", gnomeErr)
	}
	if err := d.applyKDE(ctx, writer, t); err != nil {
		return "", err
	}
	return writer + ": manual " + t.Kind().Label() + " proxy " + t.Addr() + d.notify(), nil
}

func (d *Desktop) Remove(ctx context.Context) (string, error) {
	_, gnomeErr := d.run(ctx, "remove", "gsettings", "set", gnomeSchema, "mode", "'none'")
	if gnomeErr == nil {
		return "gsettings: mode none", nil
	}

	writer, ok := d.kdeWriter()
	if !ok {
		return "", d.soft("remove", "no desktop proxy tool (gsettings: %v)", gnomeErr)
	}
	if err := d.kwrite(ctx, "remove", writer, "ProxyType", "0"); err != nil {
		return "", err
	}
	return writer + ": ProxyType 0" + d.notify(), nil
}

// Snapshot returns the current GNOME proxy mode.
func (d *Desktop) Snapshot(ctx context.Context) (string, error) {
	mode, err := d.run(ctx, "snapshot", "gsettings", "get", gnomeSchema, "mode")
	if err != nil {
		return "", err
	}
	return "mode=" + mode, nil
}

func (d *Desktop) applyGnome(ctx context.Context, t target.ProxyTarget) error {
	if !d.has("gsettings") {
		return fmt.Errorf("gsettings: %w", command.ErrNotFound)
	}
	host := gvariantString(t.Host())
	port := strconv.Itoa(t.Port())

	cmds := [][]string{{"gsettings", "set", gnomeSchema, "mode", "'manual'"}}
	section := func(name, host, port string) {
		schema := gnomeSchema + "." + name
		cmds = append(cmds,
			[]string{"gsettings", "set", schema, "host", host},
			[]string{"gsettings", "set", schema, "port", port},
		)
	}
	if t.Kind().IsSOCKS() {
		section("socks", host, port)
		section("http", host, port)
		section("https", host, port)
	} else {
		section("http", host, port)
		section("https", host, port)
		section("ftp", host, port)
		section("socks", "''", "0")
	}
	cmds = append(cmds, []string{"gsettings", "set", gnomeSchema, "ignore-hosts", d.bypass.GSettings()})
	return d.runAll(ctx, "apply", cmds)
}

func (d *Desktop) applyKDE(ctx context.Context, writer string, t target.ProxyTarget) error {
	endpoint := t.Host() + " " + strconv.Itoa(t.Port())
	values := [][2]string{{"ProxyType", "1"}}
	if t.Kind().IsSOCKS() {
		values = append(values,
			[2]string{"socksProxy", "socks://" + endpoint},
			[2]string{"httpProxy", ""},
			[2]string{"httpsProxy", ""},
		)
	} else {
		values = append(values,
			[2]string{"httpProxy", "http://" + endpoint},
			[2]string{"httpsProxy", "http://" + endpoint},
			[2]string{"socksProxy", ""},
		)
	}
	values = append(values, [2]string{"NoProxyFor", d.bypass.NoProxy()})
	for _, kv := range values {
		if err := d.kwrite(ctx, "apply", writer, kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Desktop) kwrite(ctx context.Context, op, writer, key, value string) error {
	_, err := d.run(ctx, op, writer, "--file", kdeFile, "--group", kdeGroup, "--key", key, value)
	var e *Error
	if errors.As(err, &e) && e.Kind == ToolUnavailable {
		// The binary was found a moment ago; losing it now is a failure.
		e.Kind = CommandFailed
	}
	return err
}

func (d *Desktop) kdeWriter() (string, bool) {
	for _, w := range kdeWriters {
		if d.has(w) {
			return w, true
		}
	}
	return "", false
}

// notify signals KDE; a failure is only logged.
func (d *Desktop) notify() string {
	if err := d.notifier.ReparseKIO(); err != nil {
		d.log.Warn("failed to notify KIO of proxy change", "error", err)
		return " (reload signal failed)"
	}
	return ""
}

func gvariantString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}
