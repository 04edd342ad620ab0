//go:build !windows

package sysproxy

type noRegistry struct{}

// NewSystemRegistry returns a store whose every call fails with ErrNoRegistry.
func NewSystemRegistry() RegistryStore { return noRegistry{} }

func (noRegistry) Read() (RegistryValues, error) { return RegistryValues{}, ErrNoRegistry }
func (noRegistry) Write(RegistryValues) error    { return ErrNoRegistry }
func (noRegistry) SetEnable(bool) error          { return ErrNoRegistry }
func (noRegistry) Notify() error                 { return ErrNoRegistry }
