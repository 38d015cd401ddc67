package config

import (
	"fmt"
	"math"
	"net/netip"
	"os"

	"github.com/zsiec/udpreplay/internal/replay/packet"
)

const (
	minFrequency = 1e-12
	maxFrequency = 2000.0
)

func (c *Config) Validate() error {
	if err := c.Socket.Validate(); err != nil {
		return fmt.Errorf("socket config: %w", err)
	}

	if err := c.Data.Validate(); err != nil {
		return fmt.Errorf("data config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	return nil
}

func (s *SocketConfig) Validate() error {
	if _, err := netip.ParseAddr(s.IPAddress); err != nil {
		return fmt.Errorf("invalid ip_address %q: must be an IPv4 or IPv6 literal", s.IPAddress)
	}

	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("invalid port: %d", s.Port)
	}

	if math.IsNaN(s.Frequency) || s.Frequency <= minFrequency || s.Frequency > maxFrequency {
		return fmt.Errorf("invalid frequency %g Hz: must be in (%g, %g]", s.Frequency, minFrequency, maxFrequency)
	}

	if s.WriteBuffer < 0 {
		return fmt.Errorf("write_buffer cannot be negative")
	}

	return nil
}

func (d *DataConfig) Validate() error {
	if d.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	info, err := os.Stat(d.Path)
	if os.IsNotExist(err) {
		return fmt.Errorf("source file not found: %s", d.Path)
	}
	if err != nil {
		return fmt.Errorf("cannot access source file %s: %w", d.Path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("source path is not a regular file: %s", d.Path)
	}

	r, err := d.DelimiterRune()
	if err != nil {
		return err
	}
	switch r {
	case '\r', '\n', '"', 0xFFFD:
		return fmt.Errorf("unsupported delimiter %q", r)
	}

	if d.Header < 0 {
		return fmt.Errorf("header cannot be negative")
	}

	if _, err := packet.ParseWidth(d.Type); err != nil {
		return err
	}

	if d.Length < 0 {
		return fmt.Errorf("length cannot be negative")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", m.Port)
		}

		if m.Path == "" || m.Path[0] != '/' {
			return fmt.Errorf("metrics path must start with '/'")
		}
	}

	return nil
}
