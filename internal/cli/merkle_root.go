package cli

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"ergoveritas/internal/core/domain"
	"ergoveritas/pkg/merkle"

	"github.com/spf13/cobra"
)

func newMerkleRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merkle-root [leaves.txt]",
		Short: "Recompute a batch Merkle root",
		Long: `Recompute a batch root from receipts listed one per line as
<hash_algorithm>:<hash_value>, in batch order. Blank lines are ignored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			leaves, err := parseLeaves(raw)
			if err != nil {
				return err
			}
			root, err := merkle.Root(leaves)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), root.String())
			return nil
		},
	}
}

func parseLeaves(raw []byte) ([]merkle.Digest, error) {
	var leaves []merkle.Digest
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		alg, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("line %d: expected <hash_algorithm>:<hash_value>", lineNo)
		}
		a, v, err := domain.ParseHash(alg, value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		leaves = append(leaves, merkle.Leaf(string(a), v))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading leaves: %w", err)
	}
	return leaves, nil
}
