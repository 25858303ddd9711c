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

package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	nostrconnect "github.com/sage-x-project/nostr-connect-go"
	"github.com/sage-x-project/nostr-connect-go/pkg/config"
	"github.com/sage-x-project/nostr-connect-go/pkg/connect"
	"github.com/sage-x-project/nostr-connect-go/pkg/nip04"
	"github.com/sage-x-project/nostr-connect-go/pkg/nip44"
	"github.com/sage-x-project/nostr-connect-go/pkg/relay"
)

// SecretKeyEnv is read when --secret-key is not given.
const SecretKeyEnv = "NOSTR_SECRET_KEY"

// rootOptions holds the persistent flags shared by subcommands.
type rootOptions struct {
	relays    []string
	secretKey string
	cipher    string
	timeout   time.Duration
	verbose   bool

	logger *slog.Logger
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "nostr-connect",
		Short:        "Nostr Connect remote signing",
		Version:      nostrconnect.GetVersionInfo().String(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	root.PersistentFlags().StringSliceVar(&opts.relays, "relay", nil, "relay websocket URL (repeatable)")
	root.PersistentFlags().StringVar(&opts.secretKey, "secret-key", "", "hex secret key (default $"+SecretKeyEnv+")")
	root.PersistentFlags().StringVar(&opts.cipher, "cipher", config.CipherNIP04, "payload cipher: nip04 or nip44")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", connect.DefaultTimeout, "request timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		keygenCmd(),
		uriCmd(opts),
		relayCmd(opts),
		signerCmd(opts),
		pairCmd(opts),
		requestCmd(opts),
	)
	return root
}

// key returns the secret key from the flag, then the environment.
func (o *rootOptions) key() (string, error) {
	if o.secretKey != "" {
		return o.secretKey, nil
	}
	if sk := os.Getenv(SecretKeyEnv); sk != "" {
		return sk, nil
	}
	return "", fmt.Errorf("secret key required (--secret-key or $%s)", SecretKeyEnv)
}

func (o *rootOptions) cipherImpl() (connect.Cipher, error) {
	return cipherByName(o.cipher)
}

func cipherByName(name string) (connect.Cipher, error) {
	switch name {
	case "", config.CipherNIP04:
		return nip04.Cipher{}, nil
	case config.CipherNIP44:
		return nip44.Cipher{}, nil
	default:
		return nil, fmt.Errorf("unknown cipher %q", name)
	}
}

// dial connects to urls: one relay directly, several through a pool.
func (o *rootOptions) dial(ctx context.Context, urls []string) (relay.Client, func(), error) {
	if len(urls) == 0 {
		return nil, nil, fmt.Errorf("at least one --relay is required")
	}
	if len(urls) == 1 {
		conn, err := relay.Dial(ctx, urls[0], relay.WithLogger(o.logger))
		if err != nil {
			return nil, nil, err
		}
		return conn, func() { _ = conn.Close() }, nil
	}

	pool, err := relay.DialPool(ctx, urls, relay.WithLogger(o.logger))
	if err != nil {
		return nil, nil, err
	}
	return pool, func() { _ = pool.Close() }, nil
}

func defaultConfigPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "signer.yaml"
	}
	return filepath.Join(dir, ".nostr-connect", "signer.yaml")
}
