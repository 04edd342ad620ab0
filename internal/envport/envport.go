// Package envport abstracts the process environment so proxy variables can be
// set and cleared without tests touching the real environment.
package envport

import (
	"os"
	"sort"
	"sync"
)

// Port is a get/set/unset view over an environment.
type Port interface {
	Lookup(key string) (string, bool)
	Set(key, value string) error
	Unset(key string) error
}

// OS is the real process environment.
type OS struct{}

func (OS) Lookup(key string) (string, bool) { return os.LookupEnv(key) }
func (OS) Set(key, value string) error      { return os.Setenv(key, value) }
func (OS) Unset(key string) error           { return os.Unsetenv(key) }

// Map is an in-memory environment.
type Map struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewMap returns a Map seeded with initial.
func NewMap(initial map[string]string) *Map {
	m := &Map{vars: make(map[string]string, len(initial))}
	for k, v := range initial {
		m.vars[k] = v
	}
	return m
}

func (m *Map) Lookup(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vars[key]
	return v, ok
}

func (m *Map) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vars == nil {
		m.vars = make(map[string]string)
	}
	m.vars[key] = value
	return nil
}

func (m *Map) Unset(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vars, key)
	return nil
}

// Keys returns the set variable names in sorted order.
func (m *Map) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.vars))
	for k := range m.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key or "" when unset.
func Get(p Port, key string) string {
	v, _ := p.Lookup(key)
	return v
}
