package sysproxy

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/user/proxyswitch/internal/bypass"
	"github.com/user/proxyswitch/internal/target"
	"github.com/user/proxyswitch/internal/textblock"
)

// ShellMarker names the managed block in shell startup files.
const ShellMarker = "ProxySwitch Proxy Settings (Auto-generated)"

// DefaultShellProfiles returns the startup files patched under home.
func DefaultShellProfiles(home string) []string {
	return []string{
		filepath.Join(home, ".bashrc"),
		filepath.Join(home, ".zshrc"),
		filepath.Join(home, ".profile"),
	}
}

// ExportLines renders the shell statements that point a shell at t.
func ExportLines(t target.ProxyTarget, bp bypass.List) []string {
	url := t.URL()
	lines := make([]string, 0, len(ProxyVars)+2)
	for _, k := range ProxyVars {
		lines = append(lines, fmt.Sprintf("export %s=%s", k, shellQuote(url)))
	}
	if np := bp.NoProxy(); np != "" {
		lines = append(lines,
			"export NO_PROXY="+shellQuote(np),
			"export no_proxy="+shellQuote(np),
		)
	}
	return lines
}

// shellQuote wraps s in double quotes, escaping the characters the shell
// still expands inside them.
func shellQuote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\', '"', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// UnsetLine renders the shell statement that clears every proxy variable.
func UnsetLine() string {
	vars := append(append([]string(nil), ProxyVars...), legacyVars...)
	return "unset " + strings.Join(vars, " ")
}

func shellBlock(body []string) textblock.Block {
	return textblock.Block{
		Begin: "# BEGIN " + ShellMarker,
		End:   "# END " + ShellMarker,
		Body:  body,
		Continues: func(line string) bool {
			l := strings.TrimSpace(line)
			return strings.HasPrefix(l, "export ") || strings.HasPrefix(l, "#")
		},
	}
}

// ShellProfile keeps a block of export statements in the user's shell
// startup files so new shells pick up the proxy.
type ShellProfile struct {
	paths  []string
	bypass bypass.List
}

func NewShellProfile(paths []string, bp bypass.List) *ShellProfile {
	return &ShellProfile{paths: paths, bypass: bp}
}

func (s *ShellProfile) Name() string { return NameShellProfile }

func (s *ShellProfile) Apply(_ context.Context, t target.ProxyTarget) (string, error) {
	return s.each("apply", func(path string) (textblock.Outcome, error) {
		return textblock.Apply(path, shellBlock(ExportLines(t, s.bypass)))
	})
}

func (s *ShellProfile) Remove(_ context.Context) (string, error) {
	return s.each("remove", func(path string) (textblock.Outcome, error) {
		return textblock.Remove(path, shellBlock(nil))
	})
}

// Snapshot returns any block already present, keyed by file name.
func (s *ShellProfile) Snapshot(_ context.Context) (string, error) {
	var parts []string
	for _, path := range s.paths {
		lines, err := textblock.Read(path, shellBlock(nil))
		if err != nil || lines == nil {
			continue
		}
		parts = append(parts, filepath.Base(path)+": "+strings.Join(lines[1:], "; "))
	}
	if len(parts) == 0 {
		return "no managed block", nil
	}
	return strings.Join(parts, " | "), nil
}

// each edits every file and keeps going past failures. All files missing is
// a soft skip.
func (s *ShellProfile) each(op string, edit func(path string) (textblock.Outcome, error)) (string, error) {
	var notes []string
	var errs []error
	present := 0
	for _, path := range s.paths {
		outcome, err := edit(path)
		if err != nil {
			errs = append(errs, err)
			notes = append(notes, filepath.Base(path)+": failed")
			continue
		}
		if outcome != textblock.Skipped {
			present++
		}
		notes = append(notes, filepath.Base(path)+": "+outcome.String())
	}
	detail := strings.Join(notes, ", ")
	if len(errs) > 0 {
		return detail, &Error{Adapter: NameShellProfile, Op: op, Kind: IOError, Err: errors.Join(errs...)}
	}
	if present == 0 {
		return detail, &Error{Adapter: NameShellProfile, Op: op, Kind: ToolUnavailable, Err: errors.New("no shell profile found")}
	}
	return detail, nil
}
