// Package session implements the per-stream conversion pipeline: polling a
// DASH manifest, selecting representations, fetching and decrypting
// segments, and driving an HLS window writer. One Session exists per
// converted stream and is owned exclusively by the Manager that created it.
package session

import (
	"fmt"
	"time"

	"github.com/dashcast/dashcast/internal/decrypt"
)

// Config is the immutable configuration for one stream's lifetime.
type Config struct {
	// MPDURL is the manifest URL. Required.
	MPDURL string

	// Key/KID and KeyMap are mutually exclusive ways to supply CENC key
	// material. Key+KID is shorthand for a single-entry KeyMap.
	Key    string
	KID    string
	KeyMap map[string]string

	// Mp4DecryptPath overrides the configured default decrypt tool
	// location for this stream.
	Mp4DecryptPath string

	// RepresentationID, if set, is preferred when selecting a track (see
	// selectRepresentations in select.go for the exact matching rule).
	RepresentationID string

	// Label is a human-readable name shown in stream info responses.
	Label string

	PollInterval time.Duration
	WindowSize   int
	HistorySize  int

	// OutputDir overrides the manager-computed "<base>/<id>" output root.
	OutputDir string

	// Headers are sent with every manifest and segment fetch.
	Headers map[string]string
}

// Validate checks configuration invariants that must hold before a session
// is ever started: a missing or malformed field here is a synchronous
// "configuration error" per the spec's error-handling design, never a
// runtime session error.
func (c *Config) Validate() error {
	if c.MPDURL == "" {
		return fmt.Errorf("mpd_url is required")
	}
	if c.Key != "" && len(c.KeyMap) > 0 {
		return fmt.Errorf("key/kid and key_map are mutually exclusive")
	}
	if c.Key != "" && c.KID == "" {
		return fmt.Errorf("kid is required when key is set")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 4 * time.Second
	}
	if c.WindowSize <= 0 {
		c.WindowSize = 6
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 128
	}
	if c.HistorySize < c.WindowSize {
		return fmt.Errorf("history_size (%d) must be at least window_size (%d)", c.HistorySize, c.WindowSize)
	}
	return nil
}

// effectiveKeyMap returns the normalized KID->key map this config implies,
// merging the Key/KID shorthand into KeyMap.
func (c *Config) effectiveKeyMap() map[string]string {
	if c.Key == "" && len(c.KeyMap) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.KeyMap)+1)
	for k, v := range c.KeyMap {
		out[k] = v
	}
	if c.Key != "" {
		out[c.KID] = c.Key
	}
	return out
}

// buildDecryptor constructs the Decryptor this config implies: pass-through
// when no key material is configured, external CENC otherwise.
func (c *Config) buildDecryptor(defaultToolPath string) (decrypt.Decryptor, error) {
	keyMap := c.effectiveKeyMap()
	if len(keyMap) == 0 {
		return decrypt.NewPassthrough(), nil
	}
	toolPath := c.Mp4DecryptPath
	if toolPath == "" {
		toolPath = defaultToolPath
	}
	return decrypt.NewExternalCENC(keyMap, toolPath)
}
