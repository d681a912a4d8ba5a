// Package config loads relay configuration from a JSON file. All fields are
// pointers so a file can override exactly the settings it names; everything
// else falls back to defaults. Command-line flags override file values in
// the binaries.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// RelayConfig is the root configuration for a relay process.
type RelayConfig struct {
	// Transport
	ListenAddr *string `json:"listen_addr,omitempty"`
	ReplyAddr  *string `json:"reply_addr,omitempty"`

	// Channel and buffer sizing
	QueueLen     *int `json:"queue_len,omitempty"`
	PacketBufLen *int `json:"packet_buf_len,omitempty"`
	RcvBuf       *int `json:"rcv_buf,omitempty"`

	// Durations as strings like "100ms" or "1m"
	ReadDeadline *string `json:"read_deadline,omitempty"`
	LogInterval  *string `json:"log_interval,omitempty"`

	// Backend
	GridW *int   `json:"grid_w,omitempty"`
	GridH *int   `json:"grid_h,omitempty"`
	Seed  *int64 `json:"seed,omitempty"`

	// Measurement log; empty disables persistence
	DBPath *string `json:"db_path,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() *RelayConfig {
	return &RelayConfig{
		ListenAddr:   ptrString("0.0.0.0:9000"),
		ReplyAddr:    ptrString("127.0.0.1:9001"),
		QueueLen:     ptrInt(100),
		PacketBufLen: ptrInt(1000),
		RcvBuf:       ptrInt(0),
		ReadDeadline: ptrString("100ms"),
		LogInterval:  ptrString("1m"),
		GridW:        ptrInt(10),
		GridH:        ptrInt(10),
		Seed:         ptrInt64(123),
		DBPath:       ptrString(""),
	}
}

// Load reads a config file and merges it over the defaults. A missing path
// returns the defaults unchanged.
func Load(path string) (*RelayConfig, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	var overrides RelayConfig
	if err := json.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.Merge(&overrides)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return cfg, nil
}

// Merge overlays the non-nil fields of other onto c.
func (c *RelayConfig) Merge(other *RelayConfig) {
	if other.ListenAddr != nil {
		c.ListenAddr = other.ListenAddr
	}
	if other.ReplyAddr != nil {
		c.ReplyAddr = other.ReplyAddr
	}
	if other.QueueLen != nil {
		c.QueueLen = other.QueueLen
	}
	if other.PacketBufLen != nil {
		c.PacketBufLen = other.PacketBufLen
	}
	if other.RcvBuf != nil {
		c.RcvBuf = other.RcvBuf
	}
	if other.ReadDeadline != nil {
		c.ReadDeadline = other.ReadDeadline
	}
	if other.LogInterval != nil {
		c.LogInterval = other.LogInterval
	}
	if other.GridW != nil {
		c.GridW = other.GridW
	}
	if other.GridH != nil {
		c.GridH = other.GridH
	}
	if other.Seed != nil {
		c.Seed = other.Seed
	}
	if other.DBPath != nil {
		c.DBPath = other.DBPath
	}
}

// Validate checks ranges and duration syntax.
func (c *RelayConfig) Validate() error {
	if c.QueueLen != nil && *c.QueueLen <= 0 {
		return fmt.Errorf("queue_len must be positive, got %d", *c.QueueLen)
	}
	if c.PacketBufLen != nil && *c.PacketBufLen <= 0 {
		return fmt.Errorf("packet_buf_len must be positive, got %d", *c.PacketBufLen)
	}
	if c.GridW != nil && *c.GridW <= 0 {
		return fmt.Errorf("grid_w must be positive, got %d", *c.GridW)
	}
	if c.GridH != nil && *c.GridH <= 0 {
		return fmt.Errorf("grid_h must be positive, got %d", *c.GridH)
	}
	for name, v := range map[string]*string{
		"read_deadline": c.ReadDeadline,
		"log_interval":  c.LogInterval,
	} {
		if v == nil {
			continue
		}
		if _, err := time.ParseDuration(*v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// ReadDeadlineDuration returns the parsed read deadline. Validate must have
// accepted the config first.
func (c *RelayConfig) ReadDeadlineDuration() time.Duration {
	d, _ := time.ParseDuration(*c.ReadDeadline)
	return d
}

// LogIntervalDuration returns the parsed stats log interval.
func (c *RelayConfig) LogIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(*c.LogInterval)
	return d
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }
func ptrInt64(v int64) *int64    { return &v }
