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
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/nostr-connect-go/pkg/connect"
	"github.com/sage-x-project/nostr-connect-go/pkg/nip26"
	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

type requestOptions struct {
	*rootOptions
	target      string
	pairRequest bool
}

func requestCmd(opts *rootOptions) *cobra.Command {
	ro := &requestOptions{rootOptions: opts}

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Send a request to a remote signer",
	}
	cmd.PersistentFlags().StringVar(&ro.target, "target", "", "signer public key")
	cmd.PersistentFlags().BoolVar(&ro.pairRequest, "connect", false, "ask the signer to connect this key first")
	_ = cmd.MarkPersistentFlagRequired("target")

	cmd.AddCommand(
		requestPubkeyCmd(ro),
		requestSignCmd(ro),
		requestDelegateCmd(ro),
		requestDescribeCmd(ro),
	)
	return cmd
}

// session opens a Connect session against the target, runs fn and closes it.
func (o *requestOptions) session(ctx context.Context, fn func(context.Context, *connect.Connect) error) error {
	sk, err := o.key()
	if err != nil {
		return err
	}
	cipher, err := o.cipherImpl()
	if err != nil {
		return err
	}
	client, closeRelay, err := o.dial(ctx, o.relays)
	if err != nil {
		return err
	}
	defer closeRelay()

	c, err := connect.NewConnect(connect.Config{
		SecretKey: sk,
		Target:    o.target,
		Relay:     client,
		Cipher:    cipher,
		Timeout:   o.timeout,
		Logger:    o.logger,
	})
	if err != nil {
		return err
	}
	if err := c.Init(ctx); err != nil {
		return err
	}
	defer c.Close()

	if o.pairRequest {
		if err := c.RequestConnect(ctx); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
	}
	return fn(ctx, c)
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func requestPubkeyCmd(o *requestOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Ask for the signer public key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.session(cmd.Context(), func(ctx context.Context, c *connect.Connect) error {
				pk, err := c.GetPublicKey(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), pk)
				return nil
			})
		},
	}
}

func requestSignCmd(o *requestOptions) *cobra.Command {
	var (
		kind    int
		content string
		tags    []string
	)

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Ask the signer to sign an event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ev := nostr.Event{Kind: kind, Content: content}
			for _, t := range tags {
				var tag nostr.Tag
				if err := json.Unmarshal([]byte(t), &tag); err != nil {
					return fmt.Errorf("invalid --tag %q: %w", t, err)
				}
				ev.Tags = append(ev.Tags, tag)
			}
			return o.session(cmd.Context(), func(ctx context.Context, c *connect.Connect) error {
				signed, err := c.SignEvent(ctx, ev)
				if err != nil {
					return err
				}
				return printJSON(cmd, signed)
			})
		},
	}

	cmd.Flags().IntVar(&kind, "kind", nostr.KindTextNote, "event kind")
	cmd.Flags().StringVar(&content, "content", "", "event content")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, `tag as a JSON array, e.g. '["t","nostr"]' (repeatable)`)
	return cmd
}

func requestDelegateCmd(o *requestOptions) *cobra.Command {
	var (
		kind     int
		validFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "delegate <delegatee-pubkey>",
		Short: "Ask the signer for a NIP-26 delegation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts connect.DelegateOptions
			if kind >= 0 {
				opts.Kind = nip26.Kind(kind)
			}
			if validFor > 0 {
				opts.Until = time.Now().Add(validFor)
			}
			return o.session(cmd.Context(), func(ctx context.Context, c *connect.Connect) error {
				d, err := c.Delegate(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"delegation": d,
					"tag":        d.Tag(),
				})
			})
		},
	}

	cmd.Flags().IntVar(&kind, "kind", -1, "restrict to this event kind (-1 for any)")
	cmd.Flags().DurationVar(&validFor, "for", connect.FiveMinutes, "validity window from now (0 for the 30 day default)")
	return cmd
}

func requestDescribeCmd(o *requestOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe",
		Short: "List the methods the signer supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.session(cmd.Context(), func(ctx context.Context, c *connect.Connect) error {
				methods, err := c.Describe(ctx)
				if err != nil {
					return err
				}
				for _, m := range methods {
					fmt.Fprintln(cmd.OutOrStdout(), m)
				}
				return nil
			})
		},
	}
}
