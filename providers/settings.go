package providers

import (
	"fmt"
	"net"
	"net/netip"
	"time"
)

/* Settings is the static per-provider configuration supplied by the
 * surrounding platform: shared webhook secret, rate-limit override and an
 * optional IP allow-list. Loaded from providers.yaml at startup.
 */
type Settings struct {
	Provider   string
	Secret     string
	RateLimit  int           // requests per window; 0 = use the global default
	RateWindow time.Duration // 0 = use the global default
	AllowedIPs []netip.Prefix
}

// Validate checks if the settings are usable
func (s *Settings) Validate() error {
	if s.Provider == "" {
		return fmt.Errorf("provider cannot be empty")
	}
	if s.Secret == "" {
		return fmt.Errorf("secret cannot be empty for provider %s", s.Provider)
	}
	if s.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative for provider %s", s.Provider)
	}
	if s.RateWindow < 0 {
		return fmt.Errorf("rate_window cannot be negative for provider %s", s.Provider)
	}
	return nil
}

/* AllowsAddr reports whether remoteAddr (a host or host:port string) is
 * permitted by the allow-list. An empty allow-list permits everything.
 * Unparseable addresses are rejected when a list is configured.
 */
func (s *Settings) AllowsAddr(remoteAddr string) bool {
	if len(s.AllowedIPs) == 0 {
		return true
	}

	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}

	for _, prefix := range s.AllowedIPs {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
