package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/nostr-connect-go/pkg/nostr"
)

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a secp256k1 key pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sk, err := nostr.GeneratePrivateKey()
			if err != nil {
				return err
			}
			pk, err := nostr.GetPublicKey(sk)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "secret: %s\npublic: %s\n", sk, pk)
			return nil
		},
	}
}
