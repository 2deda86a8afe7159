package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/tastequest-backend/internal/modules/quest/proof"
	"github.com/yungbote/tastequest-backend/internal/modules/quest/zones"
)

const deviceSecretEnv = "DEVICE_PROOF_SECRET"

func NewProofCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proof",
		Short: "Issue and verify zone tag device proofs",
	}
	cmd.AddCommand(newProofIssueCommand(rootOpts))
	cmd.AddCommand(newProofVerifyCommand(rootOpts))
	return cmd
}

func newProofIssueCommand(rootOpts *RootOptions) *cobra.Command {
	var zone, tag, secret string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a device proof for a zone tag",
		Long: `Sign a device proof as the given tag would. A --ttl of 0 produces a
proof without expiry, suitable for printed QR codes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := zones.Load(rootOpts.Config)
			if err != nil {
				return err
			}
			z, ok := reg.Lookup(zone)
			if !ok {
				return fmt.Errorf("unknown zone %q", zone)
			}
			key, err := secretFrom(secret, deviceSecretEnv)
			if err != nil {
				return err
			}
			signer, err := proof.NewDeviceSigner(key)
			if err != nil {
				return err
			}
			tok, err := signer.IssueDevice(z.Name, tag, ttl)
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"zone": z.Name, "tag": tag, "proof": tok})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&zone, "zone", "", "zone name (required)")
	cmd.Flags().StringVar(&tag, "tag", "", "tag id (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "proof lifetime, 0 for no expiry")
	cmd.Flags().StringVar(&secret, "secret", "", "venue secret (default $"+deviceSecretEnv+")")
	_ = cmd.MarkFlagRequired("zone")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func newProofVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:   "verify <proof>",
		Short: "Verify a device proof and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretFrom(secret, deviceSecretEnv)
			if err != nil {
				return err
			}
			signer, err := proof.NewDeviceSigner(key)
			if err != nil {
				return err
			}
			claims, verr := signer.VerifyDevice(args[0])

			result := map[string]any{"valid": verr == nil}
			if verr != nil {
				result["reason"] = proof.Reason(verr)
			} else {
				result["payload"] = claims
			}
			if rootOpts.Format == "json" {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else if verr == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "valid: zone=%s tag=%s\n", claims.Zone, claims.Tag)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "invalid: %s\n", proof.Reason(verr))
			}
			if verr != nil {
				return fmt.Errorf("proof rejected: %s", proof.Reason(verr))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "venue secret (default $"+deviceSecretEnv+")")
	return cmd
}
