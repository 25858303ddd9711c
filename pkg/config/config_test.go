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
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

const testApp = "b889ff5b1513b641e2a139f661a661364979c5beee91842f8f0ef42ab558e9d4"

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ParsesFile(t *testing.T) {
	// Setup
	path := filepath.Join(t.TempDir(), "signer.yaml")
	content := `relays:
  - wss://relay.house
  - ws://localhost:7447
apps:
  - ` + testApp + `
auto_approve: [sign_event]
cipher: nip44
timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// Execute
	cfg, err := Load(path)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"wss://relay.house", "ws://localhost:7447"}, cfg.Relays)
	assert.Equal(t, []string{testApp}, cfg.Apps)
	assert.Equal(t, CipherNIP44, cfg.Cipher)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.AutoApproves("sign_event"))
	assert.False(t, cfg.AutoApproves("delegate"))
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"not yaml":      "relays: [",
		"bad app":       "apps: [nope]",
		"bad cipher":    "cipher: rot13",
		"no relays":     "relays: []",
		"bad secret":    "secret_key: zz",
		"negative time": "timeout: -1s",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "signer.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			_, err := Load(path)

			assert.Error(t, err)
		})
	}
}

func TestSave_RoundTrip(t *testing.T) {
	sk, err := nostr.GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "nested", "signer.yaml")
	cfg := Default()
	cfg.SecretKey = sk
	assert.True(t, cfg.AddApp(testApp))
	assert.False(t, cfg.AddApp(testApp))

	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfig_RemoveApp(t *testing.T) {
	cfg := Default()
	cfg.AddApp("a")
	cfg.AddApp(testApp)
	cfg.AddApp("c")
	apps := cfg.Apps

	assert.True(t, cfg.RemoveApp(testApp))
	assert.False(t, cfg.RemoveApp(testApp))
	assert.Equal(t, []string{"a", "c"}, cfg.Apps)
	assert.Equal(t, testApp, apps[1], "callers holding the old slice are unaffected")
}

func TestSave_RejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Cipher = "rot13"

	assert.Error(t, cfg.Save(filepath.Join(t.TempDir(), "signer.yaml")))
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	// Setup
	path := filepath.Join(t.TempDir(), "signer.yaml")
	require.NoError(t, Default().Save(path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(c *Config) { changes <- c })
	}()
	time.Sleep(100 * time.Millisecond)

	// Execute
	cfg := Default()
	cfg.AddApp(testApp)
	require.NoError(t, cfg.Save(path))

	// Assert
	select {
	case got := <-changes:
		assert.Equal(t, []string{testApp}, got.Apps)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	assert.NoError(t, <-done)
}
