package fcmpush

import "time"

const (
	// DefaultHeartbeatInterval is how long the client waits after a
	// HeartbeatAck before sending the next HeartbeatPing.
	DefaultHeartbeatInterval = 600_000 * time.Millisecond

	// DefaultRecordSize is the aes128gcm/aesgcm "rs" parameter used when no
	// override is configured.
	DefaultRecordSize = 4096

	// DefaultHost and DefaultPort address Google's MCS endpoint.
	DefaultHost = "mtalk.google.com"
	DefaultPort = 5228
)

// Config holds the options the core accepts. The zero value is valid and
// resolves to the documented defaults.
type Config struct {
	// HeartbeatInterval overrides DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration

	// RecordSize overrides DefaultRecordSize for the ECE decryptor.
	RecordSize int

	// Host and Port override the MCS endpoint, mainly for tests.
	Host string
	Port int

	// VerboseLogging enables debug-level request/response logging on the
	// registration HTTP client.
	VerboseLogging bool
}

// withDefaults returns a copy of c with zero fields replaced by defaults.
func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.RecordSize <= 0 {
		c.RecordSize = DefaultRecordSize
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	return c
}
