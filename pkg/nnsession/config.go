package nnsession

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultAddress is the public OpenNN server.
const DefaultAddress = "ws://opennn.psichix.io"

// Config controls how a Session connects and how long requests may wait.
type Config struct {
	// Address is the server URL. Empty means DefaultAddress.
	Address string
	// ConnectTimeout bounds the dial. Zero disables the bound.
	ConnectTimeout time.Duration
	// RequestTimeout fails a request that has not been answered in time.
	// Zero means requests wait until answered or the connection closes.
	RequestTimeout time.Duration
	// MaxMessageSize caps one inbound frame.
	MaxMessageSize int64

	Dialer  Dialer
	Log     *zerolog.Logger
	Metrics *Metrics
}

// DefaultConfig returns the defaults used for zero fields.
func DefaultConfig() Config {
	return Config{
		Address:        DefaultAddress,
		ConnectTimeout: 10 * time.Second,
		MaxMessageSize: 32 * 1024 * 1024,
		Dialer:         DialWebSocket,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.Address) == "" {
		c.Address = def.Address
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.Dialer == nil {
		c.Dialer = def.Dialer
	}
	if c.Log == nil {
		nop := zerolog.Nop()
		c.Log = &nop
	}
	return c
}

// NormalizeAddress checks that raw is a usable server URL. A bare host gets
// the ws:// scheme.
func NormalizeAddress(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("server address is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "ws://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return "", errors.New("server address must use ws, wss, http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("invalid server address")
	}
	return parsed.String(), nil
}
