package cli

import (
	"fmt"

	"ergoveritas/internal/service"

	"github.com/spf13/cobra"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an Ed25519 signing key pair",
		Long: `Generate a fresh Ed25519 key pair and print it as environment assignments
(PKCS#8 and SPKI DER, base64) ready to paste into the service environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			privB64, pubB64, err := service.GenerateEd25519KeyPair()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s_ED25519_PRIVATE_KEY_DER_B64=%q\n", envPrefix, privB64)
			fmt.Fprintf(out, "%s_ED25519_PUBLIC_KEY_DER_B64=%q\n", envPrefix, pubB64)
			return nil
		},
	}
}
