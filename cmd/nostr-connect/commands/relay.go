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
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sage-x-project/nostr-connect-go/pkg/relay"
	"github.com/sage-x-project/nostr-connect-go/pkg/server"
)

func relayCmd(opts *rootOptions) *cobra.Command {
	var (
		listen    string
		maxStored int
		info      = server.DefaultRelayInfo()
	)

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run a local in-memory relay for development",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := relay.NewServer()
			srv.SetLogger(opts.logger)
			srv.SetMaxStored(maxStored)
			handler := server.NewInfoMiddleware(info).Wrap(srv)
			httpSrv := &http.Server{Addr: listen, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				opts.logger.Info("relay listening", "addr", listen)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:7447", "listen address")
	cmd.Flags().IntVar(&maxStored, "max-stored", relay.DefaultMaxStored, "maximum number of stored events")
	cmd.Flags().StringVar(&info.Name, "name", info.Name, "relay name in the information document")
	cmd.Flags().StringVar(&info.Description, "description", info.Description, "relay description in the information document")
	cmd.Flags().StringVar(&info.Contact, "contact", "", "operator contact in the information document")
	return cmd
}
