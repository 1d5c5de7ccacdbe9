package providers

import (
	"fmt"
	"net/netip"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

/* Loader builds a Registry from providers.yaml: the adapters are compiled
 * in, the yaml supplies each one's secret, rate limit and allow-list.
 * Providers present in the file but without a compiled adapter are a
 * configuration error; adapters without a yaml entry stay unregistered
 * (their webhooks are rejected as unsupported).
 */

// Config represents the structure of providers.yaml
type Config struct {
	Providers []SettingsConfig `yaml:"providers"`
}

// SettingsConfig represents a single provider entry in the YAML file
type SettingsConfig struct {
	Provider    string   `yaml:"provider"`
	Secret      string   `yaml:"secret"`
	RateLimit   int      `yaml:"rate_limit"`        // requests per window, 0 = global default
	RateWindowS int      `yaml:"rate_window_secs"`  // window size in seconds, 0 = global default
	AllowedIPs  []string `yaml:"allowed_ips"`       // optional CIDR allow-list
}

// Load reads providers.yaml and returns a registry wiring each configured
// provider to its compiled-in adapter.
func Load(filePath string) (*Registry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading providers file: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from raw providers.yaml bytes
func Parse(data []byte) (*Registry, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing providers YAML: %w", err)
	}

	adapters := make(map[string]Adapter)
	for _, a := range Defaults() {
		adapters[a.Name()] = a
	}

	registry := NewRegistry()
	for _, sc := range config.Providers {
		adapter, ok := adapters[sc.Provider]
		if !ok {
			return nil, fmt.Errorf("no adapter available for provider %q", sc.Provider)
		}

		settings, err := settingsFromConfig(sc)
		if err != nil {
			return nil, err
		}

		if err := registry.Register(adapter, settings); err != nil {
			return nil, fmt.Errorf("registering provider: %w", err)
		}
	}

	return registry, nil
}

func settingsFromConfig(sc SettingsConfig) (Settings, error) {
	settings := Settings{
		Provider:   sc.Provider,
		Secret:     sc.Secret,
		RateLimit:  sc.RateLimit,
		RateWindow: time.Duration(sc.RateWindowS) * time.Second,
	}

	for _, cidr := range sc.AllowedIPs {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			// Allow bare addresses as /32 (or /128) entries
			addr, addrErr := netip.ParseAddr(cidr)
			if addrErr != nil {
				return Settings{}, fmt.Errorf("parsing allowed_ips entry %q for provider %s: %w", cidr, sc.Provider, err)
			}
			prefix = netip.PrefixFrom(addr, addr.BitLen())
		}
		settings.AllowedIPs = append(settings.AllowedIPs, prefix)
	}

	return settings, nil
}
