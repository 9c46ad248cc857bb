package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"ergoveritas/internal/service"
	"ergoveritas/pkg/canonical"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	errNoPublicKey      = errors.New("no public key: pass --public-key or set ERGOVERITAS_ED25519_PUBLIC_KEY_DER_B64")
	errSignatureInvalid = errors.New("signature does not verify")
	errKeyMismatch      = errors.New("receipt kid does not match the public key")
)

// receiptDocument accepts a bare bundle or one wrapped in the API envelope.
type receiptDocument struct {
	Payload   *canonical.Payload `json:"payload"`
	Signature string             `json:"signature"`
	KID       string             `json:"kid"`
	Data      *receiptDocument   `json:"data"`
}

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	var publicKey string

	cmd := &cobra.Command{
		Use:   "verify [bundle.json]",
		Short: "Verify a receipt bundle offline",
		Long: `Check a receipt's Ed25519 signature against a public key without contacting
the service. The bundle is read from the given file, or stdin when omitted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if publicKey == "" {
				publicKey = v.GetString("ED25519_PUBLIC_KEY_DER_B64")
			}
			if publicKey == "" {
				return errNoPublicKey
			}

			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			doc, err := parseReceiptDocument(raw)
			if err != nil {
				return err
			}

			pub, der, err := service.ParsePublicKeyDERB64(publicKey)
			if err != nil {
				return err
			}
			kid := service.DeriveKeyID(der)
			if doc.KID != "" && doc.KID != kid {
				return fmt.Errorf("%w: receipt %s, key %s", errKeyMismatch, doc.KID, kid)
			}
			if !service.VerifyEd25519(pub, doc.Payload.Bytes(), doc.Signature) {
				return errSignatureInvalid
			}

			fmt.Fprintf(cmd.OutOrStdout(), "valid receipt_id=%s kid=%s created_at=%s\n",
				doc.Payload.ReceiptID, kid, doc.Payload.CreatedAt)
			return nil
		},
	}
	cmd.Flags().StringVar(&publicKey, "public-key", "", "base64 SPKI DER Ed25519 public key")
	return cmd
}

func parseReceiptDocument(raw []byte) (*receiptDocument, error) {
	var doc receiptDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing receipt bundle: %w", err)
	}
	if doc.Data != nil {
		doc = *doc.Data
	}
	if doc.Payload == nil || doc.Signature == "" {
		return nil, errors.New("receipt bundle must contain payload and signature")
	}
	return &doc, nil
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 1 && args[0] != "-" {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", args[0], err)
		}
		return b, nil
	}
	b, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return b, nil
}
