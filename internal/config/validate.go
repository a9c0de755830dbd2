package config

import "fmt"

// Validate checks constraints that would otherwise surface as confusing
// runtime failures.
func (c Config) Validate() error {
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("postgres_dsn is required unless use_memory is set")
	}
	if c.API.Addr == "" {
		return fmt.Errorf("api.addr must not be empty")
	}
	if c.Quotes.BaseURL == "" {
		return fmt.Errorf("quotes.base_url must not be empty")
	}
	if c.Quotes.TTL <= 0 {
		return fmt.Errorf("quotes.ttl must be > 0, got %v", c.Quotes.TTL)
	}
	if c.Quotes.FetchTimeout <= 0 {
		return fmt.Errorf("quotes.fetch_timeout must be > 0, got %v", c.Quotes.FetchTimeout)
	}
	return nil
}
