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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/sage-x-project/nostr-connect-go/pkg/connect"
	"github.com/sage-x-project/nostr-connect-go/pkg/nip26"
	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
	"github.com/sage-x-project/nostr-connect-go/pkg/relay"
)

func main() {
	fmt.Println("Nostr Connect Go - Remote Signing Example")
	fmt.Println("==========================================")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	// Both parties share an in-process relay
	mem := relay.NewMemory()

	// 1. Keys
	fmt.Println("\n1. Generating keys...")
	appSK, err := nostr.GeneratePrivateKey()
	if err != nil {
		log.Fatalf("Failed to generate app key: %v", err)
	}
	userSK, err := nostr.GeneratePrivateKey()
	if err != nil {
		log.Fatalf("Failed to generate user key: %v", err)
	}
	appPK, _ := nostr.GetPublicKey(appSK)
	userPK, _ := nostr.GetPublicKey(userSK)
	fmt.Printf("   App session key: %s\n", appPK)
	fmt.Printf("   User key:        %s\n", userPK)

	// 2. Application
	fmt.Println("\n2. Starting the application session...")
	app, err := connect.NewConnect(connect.Config{
		SecretKey: appSK,
		Relay:     mem,
		Timeout:   5 * time.Second,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create app session: %v", err)
	}
	paired := make(chan connect.Event, 1)
	app.OnEvent(func(e connect.Event) { paired <- e })
	if err := app.Init(ctx); err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	defer app.Close()

	uri := connect.ConnectURI{
		Target:   appPK,
		Relay:    "wss://relay.nsec.app",
		Metadata: connect.Metadata{Name: "Example App", URL: "https://example.com"},
	}
	fmt.Printf("   Pairing URI: %s\n", uri)

	// 3. Signer
	fmt.Println("\n3. Starting the remote signer...")
	remote, err := connect.NewSigner(connect.SignerConfig{
		SecretKey: userSK,
		Relay:     mem,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create signer: %v", err)
	}
	remote.OnRequest(func(ctx context.Context, n connect.Notification) bool {
		fmt.Printf("   [signer] approving %s from %s...\n", n.Method, n.Sender[:8])
		return true
	})
	if err := remote.Listen(ctx); err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}
	defer remote.Close()

	// 4. Pairing
	fmt.Println("\n4. Approving the pairing URI on the signer...")
	if err := remote.Approve(ctx, uri); err != nil {
		log.Fatalf("Failed to approve: %v", err)
	}
	select {
	case e := <-paired:
		fmt.Printf("   App received %s from %s\n", e.Type, e.Pubkey)
	case <-ctx.Done():
		log.Fatalf("Pairing timed out: %v", ctx.Err())
	}

	// 5. Requests
	fmt.Println("\n5. Sending requests...")
	pubkey, err := app.GetPublicKey(ctx)
	if err != nil {
		log.Fatalf("get_public_key failed: %v", err)
	}
	fmt.Printf("   get_public_key: %s\n", pubkey)

	signed, err := app.SignEvent(ctx, nostr.Event{Kind: nostr.KindTextNote, Content: "signed remotely"})
	if err != nil {
		log.Fatalf("sign_event failed: %v", err)
	}
	fmt.Printf("   sign_event:     id=%s sig=%s...\n", signed.ID, signed.Sig[:16])

	d, err := app.Delegate(ctx, appPK, connect.DelegateOptions{
		Kind:  nip26.Kind(nostr.KindTextNote),
		Until: time.Now().Add(connect.OneDay),
	})
	if err != nil {
		log.Fatalf("delegate failed: %v", err)
	}
	fmt.Printf("   delegate:       %s\n", d.Conditions)

	// 6. Teardown
	fmt.Println("\n6. Disconnecting...")
	if err := app.Disconnect(ctx); err != nil {
		log.Fatalf("disconnect failed: %v", err)
	}
	fmt.Printf("   App still connected: %v\n", remote.IsConnected(appPK))

	fmt.Println("\n==========================================")
	fmt.Println("Example completed successfully!")
}
