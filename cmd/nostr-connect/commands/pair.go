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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/nostr-connect-go/pkg/config"
	"github.com/sage-x-project/nostr-connect-go/pkg/connect"
)

func pairCmd(opts *rootOptions) *cobra.Command {
	var (
		configPath string
		reject     bool
	)

	cmd := &cobra.Command{
		Use:   "pair <nostrconnect-uri>",
		Short: "Approve (or reject) an application's pairing URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			uri, err := connect.ParseConnectURI(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			sk := cfg.SecretKey
			if k, err := opts.key(); err == nil {
				sk = k
			}
			cipher, err := opts.cipherImpl()
			if err != nil {
				return err
			}

			relays := opts.relays
			if len(relays) == 0 {
				relays = []string{uri.Relay}
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
				Logger:    opts.logger,
			})
			if err != nil {
				return err
			}

			name := uri.Metadata.Name
			if name == "" {
				name = uri.Target
			}
			if reject {
				if err := s.Reject(ctx, uri); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rejected %s\n", name)
				return nil
			}

			if err := s.Approve(ctx, uri); err != nil {
				return err
			}
			if cfg.AddApp(uri.Target) {
				if err := cfg.Save(configPath); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paired with %s (%s)\n", name, uri.Target)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "signer config file to record the app in")
	cmd.Flags().BoolVar(&reject, "reject", false, "revoke the application instead")
	return cmd
}
