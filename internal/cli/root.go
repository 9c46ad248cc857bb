// Package cli provides the veritasctl operator command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// envPrefix matches the server's configuration prefix so both read the same variables.
const envPrefix = "ERGOVERITAS"

// NewRootCmd builds the veritasctl command tree.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "veritasctl",
		Short: "Operator tooling for the ErgoVeritas receipt service",
		Long: `veritasctl generates signing keys and admin password hashes, and verifies
receipts and batch roots offline without contacting the service.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	cmd.AddCommand(newKeygenCmd())
	cmd.AddCommand(newHashPasswordCmd())
	cmd.AddCommand(newVerifyCmd(v))
	cmd.AddCommand(newMerkleRootCmd())
	return cmd
}

// Execute runs the root command and reports failures on stderr.
func Execute(ctx context.Context) error {
	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
