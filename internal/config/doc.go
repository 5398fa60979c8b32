// Package config provides user configuration management for the comfoair
// tools.
//
// This package manages a YAML-based configuration file that stores
// user-defined metadata for ComfoAir controllers: nicknames, device URLs,
// last-seen information and application preferences. The configuration
// follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/comfoair/config.yaml or $HOME/.config/comfoair/config.yaml
//   - macOS: $HOME/.config/comfoair/config.yaml
//   - Windows: %LOCALAPPDATA%\comfoair\config.yaml
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	registry.Controllers["attic"] = &config.Controller{
//	    Nickname: "Attic ComfoAir 350",
//	    Device:   "socket://192.168.1.40:5555",
//	}
//
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across
// goroutines. File operations are protected by a mutex to ensure atomic
// writes.
package config
