package models

import (
	"fmt"
	"time"
)

// Backend describes the map-site API instance the console manages.
type Backend struct {
	Name     string        `json:"name"`
	Scheme   string        `json:"scheme"` // "http" or "https"
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	Insecure bool          `json:"insecure"` // skip TLS verification
	CACert   string        `json:"-"`        // PEM bundle
	Timeout  time.Duration `json:"timeout"`
}

// BaseURL returns the full base URL for this backend.
func (b *Backend) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", b.Scheme, b.Host, b.Port)
}

// ApplyDefaults fills scheme, port and timeout when unset.
func (b *Backend) ApplyDefaults() {
	if b.Scheme == "" {
		b.Scheme = "http"
	}
	if b.Port == 0 {
		if b.Scheme == "https" {
			b.Port = 443
		} else {
			b.Port = 80
		}
	}
	if b.Timeout <= 0 {
		b.Timeout = 15 * time.Second
	}
	if b.Name == "" {
		b.Name = b.Host
	}
}
