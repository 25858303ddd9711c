// Copyright (C) 2025 SAGE-X Project
//
// This file is part of nostr-connect-go.
//
// nostr-connect-go is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// nostr-connect-go is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with nostr-connect-go.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

// Cipher names accepted in the config file.
const (
	CipherNIP04 = "nip04"
	CipherNIP44 = "nip44"
)

// DefaultRelay is used when the file lists none.
const DefaultRelay = "wss://relay.nsec.app"

// Config is the signer daemon configuration file.
type Config struct {
	// SecretKey may be left empty and supplied through the environment.
	SecretKey string `yaml:"secret_key,omitempty"`

	// Relays the signer listens on.
	Relays []string `yaml:"relays"`

	// Apps is the connected-app set (hex public keys).
	Apps []string `yaml:"apps"`

	// AutoApprove lists methods approved without a prompt, e.g. sign_event.
	AutoApprove []string `yaml:"auto_approve,omitempty"`

	// Cipher is nip04 (default) or nip44.
	Cipher string `yaml:"cipher,omitempty"`

	// Timeout bounds relay operations.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Relays:  []string{DefaultRelay},
		Cipher:  CipherNIP04,
		Timeout: 5 * time.Minute,
	}
}

// Load reads path. A missing file yields Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration through a temp file then rename.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return os.Rename(tmp, path)
}

// Validate checks keys, relays and the cipher name.
func (c *Config) Validate() error {
	if c.SecretKey != "" {
		if _, err := nostr.ParsePrivateKey(c.SecretKey); err != nil {
			return fmt.Errorf("secret_key: %w", err)
		}
	}
	if len(c.Relays) == 0 {
		return fmt.Errorf("at least one relay is required")
	}
	for _, app := range c.Apps {
		if !nostr.IsValidPublicKey(app) {
			return fmt.Errorf("apps: %w: %q", nostr.ErrInvalidPublicKey, app)
		}
	}
	switch c.Cipher {
	case "", CipherNIP04, CipherNIP44:
	default:
		return fmt.Errorf("unknown cipher %q", c.Cipher)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}

// AddApp appends pubkey to Apps unless present.
func (c *Config) AddApp(pubkey string) bool {
	for _, app := range c.Apps {
		if app == pubkey {
			return false
		}
	}
	c.Apps = append(c.Apps, pubkey)
	return true
}

// RemoveApp removes pubkey and reports whether it was present.
func (c *Config) RemoveApp(pubkey string) bool {
	for i, app := range c.Apps {
		if app == pubkey {
			c.Apps = append(c.Apps[:i:i], c.Apps[i+1:]...)
			return true
		}
	}
	return false
}

// AutoApproves reports whether method is approved without a prompt.
func (c *Config) AutoApproves(method string) bool {
	for _, m := range c.AutoApprove {
		if m == method {
			return true
		}
	}
	return false
}
