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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/nostr-connect-go/pkg/connect"
	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

func uriCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uri",
		Short: "Encode or decode nostrconnect:// pairing URIs",
	}
	cmd.AddCommand(uriEncodeCmd(opts), uriDecodeCmd())
	return cmd
}

func uriEncodeCmd(opts *rootOptions) *cobra.Command {
	var (
		target string
		meta   connect.Metadata
	)

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print a pairing URI for this application",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" {
				sk, err := opts.key()
				if err != nil {
					return fmt.Errorf("--target or a secret key is required: %w", err)
				}
				if target, err = nostr.GetPublicKey(sk); err != nil {
					return err
				}
			}
			if len(opts.relays) == 0 {
				return fmt.Errorf("--relay is required")
			}

			u := connect.ConnectURI{Target: target, Relay: opts.relays[0], Metadata: meta}
			if err := u.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "application public key (default: derived from the secret key)")
	cmd.Flags().StringVar(&meta.Name, "name", "", "application name")
	cmd.Flags().StringVar(&meta.Description, "description", "", "application description")
	cmd.Flags().StringVar(&meta.URL, "url", "", "application URL")
	cmd.Flags().StringSliceVar(&meta.Icons, "icon", nil, "icon URL (repeatable)")
	return cmd
}

func uriDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <uri>",
		Short: "Decode and validate a pairing URI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := connect.ParseConnectURI(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(map[string]any{
				"target":   u.Target,
				"relay":    u.Relay,
				"metadata": u.Metadata,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
