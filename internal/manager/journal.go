package manager

import (
	"fmt"
	"sync"
	"time"
)

// Journal collects timestamped progress lines and forwards each one to an
// optional sink as it is written.
type Journal struct {
	mu    sync.Mutex
	lines []string
	sink  func(string)
	now   func() time.Time
}

func NewJournal(sink func(string)) *Journal {
	return &Journal{sink: sink, now: time.Now}
}

// Printf appends "[15:04:05] message".
func (j *Journal) Printf(format string, args ...any) {
	j.mu.Lock()
	line := "[" + j.now().Format("15:04:05") + "] " + fmt.Sprintf(format, args...)
	j.lines = append(j.lines, line)
	sink := j.sink
	j.mu.Unlock()

	if sink != nil {
		sink(line)
	}
}

// Lines returns a copy of everything written so far.
func (j *Journal) Lines() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.lines...)
}
