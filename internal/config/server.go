package config

import "maps"

// ServerConfig holds settings for one research server.
type ServerConfig struct {
	// Cookie is sent with every research request.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers for research requests.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Criteria are checked on the page when no --criteria flag is given.
	Criteria []string `yaml:"criteria,omitempty"`

	// Variant overrides the rendering variant ("sentinel" or "replace").
	Variant string `yaml:"variant,omitempty"`
}

// File represents the structure of the .researchstream configuration file.
type File struct {
	// Server is the default research server URL.
	Server string `yaml:"server,omitempty"`

	// Servers maps a server host (host or host:port) to its settings.
	Servers map[string]ServerConfig `yaml:"servers,omitempty"`

	// Defaults apply to every server unless overridden in Servers.
	Defaults ServerConfig `yaml:"defaults,omitempty"`
}

// GetServerConfig returns the settings for host, merged over the defaults.
// Headers are merged key by key; other fields are replaced when set.
func (cf *File) GetServerConfig(host string) ServerConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	override, ok := cf.Servers[host]
	if !ok {
		return result
	}

	if override.Cookie != "" {
		result.Cookie = override.Cookie
	}
	if len(override.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(override.Headers))
		}
		maps.Copy(result.Headers, override.Headers)
	}
	if len(override.Criteria) > 0 {
		result.Criteria = override.Criteria
	}
	if override.Variant != "" {
		result.Variant = override.Variant
	}
	return result
}
