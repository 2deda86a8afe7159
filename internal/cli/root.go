// Package cli implements questctl, the operator tool for provisioning zone
// tags and checking proofs offline.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format string // "json" | "text"
	Config string
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "questctl",
		Short: "Taste quest operator tool",
		Long:  "Inspect the zone registry, issue and verify device proofs, and mint guest tokens.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", os.Getenv("QUEST_CONFIG_PATH"), "zone registry YAML (default: built-in zones)")

	cmd.AddCommand(NewZonesCommand(opts))
	cmd.AddCommand(NewProofCommand(opts))
	cmd.AddCommand(NewGuestTokenCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// secretFrom prefers the flag value and falls back to the named variable.
func secretFrom(flagValue, envName string) ([]byte, error) {
	s := strings.TrimSpace(flagValue)
	if s == "" {
		s = strings.TrimSpace(os.Getenv(envName))
	}
	if s == "" {
		return nil, fmt.Errorf("no secret: pass --secret or set %s", envName)
	}
	return []byte(s), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
