package config

import "time"

// Registry represents the entire user configuration file.
// This stores user-defined metadata for controllers and application
// preferences.
type Registry struct {
	Version     int                    `yaml:"version"`
	Controllers map[string]*Controller `yaml:"controllers,omitempty"` // Keyed by a short user-chosen name
	Preferences *Preferences           `yaml:"preferences,omitempty"`
}

// Controller represents user-defined metadata for a single ComfoAir
// controller. This is keyed by a short name in the Registry.
type Controller struct {
	Nickname string    `yaml:"nickname,omitempty"` // User-friendly name
	Device   string    `yaml:"device"`             // Device URL: /dev/ttyUSB0, socket://host:port, ws://host/path
	Firmware string    `yaml:"firmware,omitempty"` // Last reported firmware version
	Model    string    `yaml:"model,omitempty"`    // Last reported device name (e.g., "CA350 luxe")
	LastSeen time.Time `yaml:"last_seen,omitempty"`
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	DefaultController string `yaml:"default_controller,omitempty"` // Registry key used when no --device is given
	AutoDiscover      bool   `yaml:"auto_discover"`                // Enable automatic mDNS discovery when no device is configured
	DiscoverTimeout   int    `yaml:"discover_timeout"`             // mDNS discovery timeout in seconds
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Controllers: make(map[string]*Controller),
		Preferences: &Preferences{
			AutoDiscover:    true,
			DiscoverTimeout: 10,
		},
	}
}

// GetController retrieves controller metadata by registry key.
// Returns nil if the controller doesn't exist in the registry.
func (r *Registry) GetController(name string) *Controller {
	return r.Controllers[name]
}

// ResolveDevice maps a name to a device URL. A name matching a registry
// entry resolves to that entry's device; anything else is treated as a
// literal device URL. An empty name falls back to the default controller.
func (r *Registry) ResolveDevice(name string) (string, bool) {
	if name == "" {
		if r.Preferences == nil || r.Preferences.DefaultController == "" {
			return "", false
		}
		name = r.Preferences.DefaultController
		c := r.Controllers[name]
		if c == nil {
			return "", false
		}
		return c.Device, true
	}
	if c := r.Controllers[name]; c != nil {
		return c.Device, true
	}
	return name, true
}

// Remember records a controller sighting: creates or updates the entry for
// name and stamps LastSeen.
func (r *Registry) Remember(name, device string) *Controller {
	c := r.Controllers[name]
	if c == nil {
		c = &Controller{}
		if r.Controllers == nil {
			r.Controllers = make(map[string]*Controller)
		}
		r.Controllers[name] = c
	}
	c.Device = device
	c.LastSeen = time.Now()
	return c
}
