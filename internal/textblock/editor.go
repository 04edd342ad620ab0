// Package textblock maintains a marker-delimited region inside a text file
// owned by someone else (a shell rc file, a proxychains config). Everything
// outside the region is left byte-for-byte intact.
package textblock

import (
	"fmt"
	"os"
	"strings"
)

// Block describes a managed region.
//
// The region starts at the line equal to Begin. It ends at the line equal to
// End when End is set and present; otherwise it runs through the last
// contiguous line accepted by Continues.
type Block struct {
	Begin     string
	End       string
	Body      []string
	Continues func(line string) bool
}

// Lines returns the rendered region.
func (b Block) Lines() []string {
	out := make([]string, 0, len(b.Body)+2)
	out = append(out, b.Begin)
	out = append(out, b.Body...)
	if b.End != "" {
		out = append(out, b.End)
	}
	return out
}

// Outcome says what an edit did to the file.
type Outcome int

const (
	Skipped   Outcome = iota // file does not exist
	Inserted                 // block appended
	Replaced                 // existing block rewritten
	Unchanged                // file already held exactly this block
	Removed                  // block deleted
	Absent                   // nothing to delete
)

func (o Outcome) String() string {
	switch o {
	case Skipped:
		return "skipped (file missing)"
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case Unchanged:
		return "unchanged"
	case Removed:
		return "removed"
	case Absent:
		return "absent"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func split(content string) (lines []string, trailingNL bool) {
	if content == "" {
		return nil, false
	}
	trailingNL = strings.HasSuffix(content, "\n")
	lines = strings.Split(content, "\n")
	if trailingNL {
		lines = lines[:len(lines)-1]
	}
	return lines, trailingNL
}

func join(lines []string, trailingNL bool) string {
	if len(lines) == 0 {
		return ""
	}
	s := strings.Join(lines, "\n")
	if trailingNL {
		s += "\n"
	}
	return s
}

// find locates the first region at or after from. end is exclusive.
func (b Block) find(lines []string, from int) (start, end int, ok bool) {
	for i := from; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != b.Begin {
			continue
		}
		j := i + 1
		for j < len(lines) {
			if b.End != "" && strings.TrimSpace(lines[j]) == b.End {
				j++
				break
			}
			if b.Continues == nil || !b.Continues(lines[j]) {
				break
			}
			j++
		}
		return i, j, true
	}
	return 0, 0, false
}

// cut removes every region from lines, reporting where the first one was.
func (b Block) cut(lines []string) (rest []string, first int, lastWasTail, found bool) {
	rest = make([]string, 0, len(lines))
	first = -1
	i := 0
	for {
		start, end, ok := b.find(lines, i)
		if !ok {
			rest = append(rest, lines[i:]...)
			return rest, first, lastWasTail, found
		}
		rest = append(rest, lines[i:start]...)
		if first < 0 {
			first = len(rest)
		}
		found = true
		lastWasTail = end == len(lines)
		i = end
	}
}

// Contains reports whether content holds the region.
func Contains(content string, b Block) bool {
	lines, _ := split(content)
	_, _, ok := b.find(lines, 0)
	return ok
}

// Extract returns the lines of the first region in content, or nil.
func Extract(content string, b Block) []string {
	lines, _ := split(content)
	start, end, ok := b.find(lines, 0)
	if !ok {
		return nil
	}
	out := make([]string, end-start)
	copy(out, lines[start:end])
	return out
}

// Splice returns content with the region set to b. An existing region is
// rewritten in place; otherwise the region is appended.
func Splice(content string, b Block) string {
	lines, trailingNL := split(content)
	rest, first, lastWasTail, found := b.cut(lines)
	if !found {
		if content != "" && !trailingNL {
			content += "\n"
		}
		return content + join(b.Lines(), true)
	}

	out := make([]string, 0, len(rest)+len(b.Body)+2)
	out = append(out, rest[:first]...)
	out = append(out, b.Lines()...)
	out = append(out, rest[first:]...)
	return join(out, trailingNL || lastWasTail)
}

// Excise returns content without the region and whether one was found. When
// nothing is found content is returned untouched.
func Excise(content string, b Block) (string, bool) {
	lines, trailingNL := split(content)
	rest, _, lastWasTail, found := b.cut(lines)
	if !found {
		return content, false
	}
	return join(rest, trailingNL || lastWasTail), true
}

// Apply writes b into the file at path. A missing file is skipped, never
// created.
func Apply(path string, b Block) (Outcome, error) {
	info, data, err := read(path)
	if err != nil || info == nil {
		return Skipped, err
	}
	content := string(data)
	out := Splice(content, b)
	if out == content {
		return Unchanged, nil
	}
	outcome := Inserted
	if Contains(content, b) {
		outcome = Replaced
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return outcome, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return outcome, nil
}

// Remove deletes the region from the file at path.
func Remove(path string, b Block) (Outcome, error) {
	info, data, err := read(path)
	if err != nil || info == nil {
		return Skipped, err
	}
	out, found := Excise(string(data), b)
	if !found {
		return Absent, nil
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return Removed, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return Removed, nil
}

// Read returns the first region in the file at path; a missing file yields nil.
func Read(path string, b Block) ([]string, error) {
	info, data, err := read(path)
	if err != nil || info == nil {
		return nil, err
	}
	return Extract(string(data), b), nil
}

func read(path string) (os.FileInfo, []byte, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, nil, fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return info, data, nil
}
