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
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sage-x-project/nostr-connect-go/pkg/config"
	"github.com/sage-x-project/nostr-connect-go/pkg/connect"
)

func signerCmd(opts *rootOptions) *cobra.Command {
	var (
		configPath string
		prompt     bool
	)

	cmd := &cobra.Command{
		Use:   "signer",
		Short: "Run the remote signer daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			sk := cfg.SecretKey
			if k, err := opts.key(); err == nil {
				sk = k
			}
			if sk == "" {
				return fmt.Errorf("secret key required (--secret-key, $%s or secret_key in %s)", SecretKeyEnv, configPath)
			}
			relays := cfg.Relays
			if len(opts.relays) > 0 {
				relays = opts.relays
			}
			cipher, err := cipherByName(cfg.Cipher)
			if cmd.Flags().Changed("cipher") {
				cipher, err = opts.cipherImpl()
			}
			if err != nil {
				return err
			}

			client, closeRelay, err := opts.dial(ctx, relays)
			if err != nil {
				return err
			}
			defer closeRelay()

			s, err := connect.NewSigner(connect.SignerConfig{
				SecretKey: sk,
				Relay:     client,
				Cipher:    cipher,
				Apps:      cfg.Apps,
				Logger:    opts.logger,
			})
			if err != nil {
				return err
			}

			var cfgMu sync.Mutex
			s.OnRequest(approver(&cfgMu, &cfg, prompt, cmd.InOrStdin(), cmd.OutOrStdout()))
			s.OnAppChange(persistApps(&cfgMu, &cfg, configPath, opts.logger))

			if err := s.Listen(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signer %s listening on %s\n", s.PublicKey(), strings.Join(relays, ", "))

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return config.Watch(ctx, configPath, opts.logger, func(next *config.Config) {
					cfgMu.Lock()
					defer cfgMu.Unlock()
					cfg = next
					s.SetConnectedApps(next.Apps)
				})
			})
			g.Go(func() error {
				<-ctx.Done()
				return s.Close()
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "signer config file")
	cmd.Flags().BoolVar(&prompt, "prompt", true, "ask on the terminal before sensitive operations")
	return cmd
}

// persistApps records connect and disconnect requests in the config file so
// a later reload does not undo them.
func persistApps(mu *sync.Mutex, cfg **config.Config, path string, logger *slog.Logger) func(connect.AppChange) {
	return func(c connect.AppChange) {
		mu.Lock()
		defer mu.Unlock()

		var changed bool
		if c.Connected {
			changed = (*cfg).AddApp(c.App)
		} else {
			changed = (*cfg).RemoveApp(c.App)
		}
		if !changed {
			return
		}
		if err := (*cfg).Save(path); err != nil {
			logger.Warn("failed to save connected apps", "path", path, "error", err)
			return
		}
		logger.Info("connected apps saved", "app", c.App, "connected", c.Connected)
	}
}

// approver approves methods listed in auto_approve and, when prompting is
// enabled, asks on in for the rest. Prompts are serialized.
func approver(mu *sync.Mutex, cfg **config.Config, prompt bool, in io.Reader, out io.Writer) connect.Approver {
	reader := bufio.NewReader(in)
	var promptMu sync.Mutex

	return func(ctx context.Context, n connect.Notification) bool {
		mu.Lock()
		auto := (*cfg).AutoApproves(n.Method)
		mu.Unlock()
		if auto {
			return true
		}
		if !prompt {
			return false
		}

		promptMu.Lock()
		defer promptMu.Unlock()

		fmt.Fprintf(out, "%s requests %s", n.Sender, n.Method)
		for _, p := range n.Params {
			fmt.Fprintf(out, " %s", p)
		}
		fmt.Fprint(out, "\napprove? [y/N] ")

		answer := make(chan string, 1)
		go func() {
			line, _ := reader.ReadString('\n')
			answer <- strings.TrimSpace(strings.ToLower(line))
		}()
		select {
		case a := <-answer:
			return a == "y" || a == "yes"
		case <-ctx.Done():
			return false
		}
	}
}
