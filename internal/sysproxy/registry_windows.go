//go:build windows

package sysproxy

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const internetSettingsKey = `Software\Microsoft\Windows\CurrentVersion\Internet Settings`

// https://learn.microsoft.com/en-us/windows/win32/wininet/option-flags
const (
	internetOptionSettingsChanged = 39
	internetOptionRefresh         = 37
)

var (
	modwininet            = windows.NewLazySystemDLL("wininet.dll")
	procInternetSetOption = modwininet.NewProc("InternetSetOptionW")
)

type systemRegistry struct{}

// NewSystemRegistry returns the HKCU WinINet store.
func NewSystemRegistry() RegistryStore { return systemRegistry{} }

func (systemRegistry) Read() (RegistryValues, error) {
	key, err := registry.OpenKey(registry.CURRENT_USER, internetSettingsKey, registry.QUERY_VALUE)
	if err != nil {
		return RegistryValues{}, fmt.Errorf("failed to open registry key: %w", err)
	}
	defer key.Close()

	var v RegistryValues
	enable, _, err := key.GetIntegerValue("ProxyEnable")
	if err != nil && !errors.Is(err, registry.ErrNotExist) {
		return v, fmt.Errorf("failed to read ProxyEnable: %w", err)
	}
	v.Enable = enable != 0
	if v.Server, _, err = key.GetStringValue("ProxyServer"); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return v, fmt.Errorf("failed to read ProxyServer: %w", err)
	}
	if v.Override, _, err = key.GetStringValue("ProxyOverride"); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return v, fmt.Errorf("failed to read ProxyOverride: %w", err)
	}
	return v, nil
}

func (systemRegistry) Write(v RegistryValues) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, internetSettingsKey, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to open registry key: %w", err)
	}
	defer key.Close()

	if err := key.SetStringValue("ProxyServer", v.Server); err != nil {
		return fmt.Errorf("failed to set ProxyServer: %w", err)
	}
	if err := key.SetStringValue("ProxyOverride", v.Override); err != nil {
		return fmt.Errorf("failed to set ProxyOverride: %w", err)
	}
	// Enable last so clients never see the flag with a stale server.
	if err := key.SetDWordValue("ProxyEnable", boolDWord(v.Enable)); err != nil {
		return fmt.Errorf("failed to set ProxyEnable: %w", err)
	}
	return nil
}

func (systemRegistry) SetEnable(enable bool) error {
	key, err := registry.OpenKey(registry.CURRENT_USER, internetSettingsKey, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("failed to open registry key: %w", err)
	}
	defer key.Close()

	if err := key.SetDWordValue("ProxyEnable", boolDWord(enable)); err != nil {
		return fmt.Errorf("failed to set ProxyEnable: %w", err)
	}
	return nil
}

func (systemRegistry) Notify() error {
	if err := internetSetOption(internetOptionSettingsChanged); err != nil {
		return fmt.Errorf("INTERNET_OPTION_SETTINGS_CHANGED: %w", err)
	}
	if err := internetSetOption(internetOptionRefresh); err != nil {
		return fmt.Errorf("INTERNET_OPTION_REFRESH: %w", err)
	}
	return nil
}

// internetSetOption calls InternetSetOptionW with a NULL handle and buffer.
func internetSetOption(option uintptr) error {
	ret, _, callErr := procInternetSetOption.Call(0, option, 0, 0)
	if ret == 0 {
		return fmt.Errorf("InternetSetOptionW(%d) failed: %v", option, callErr)
	}
	return nil
}

func boolDWord(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
