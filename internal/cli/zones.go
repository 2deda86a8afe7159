package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yungbote/tastequest-backend/internal/modules/quest/zones"
)

func NewZonesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "List zones and reward thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := zones.Load(rootOpts.Config)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				return writeJSON(out, map[string]any{
					"zones":             reg.Zones(),
					"zone_count":        reg.Count(),
					"reward_thresholds": reg.Thresholds(),
					"warnings":          reg.Warnings(),
				})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tZONE\tTITLE")
			for _, z := range reg.Zones() {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", z.DisplayIndex, z.Name, z.Title)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			for _, th := range reg.Thresholds() {
				fmt.Fprintf(out, "reward %s at %d/%d stamps\n", th.RewardID, th.Count, reg.Count())
			}
			for _, w := range reg.Warnings() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
			}
			return nil
		},
	}
}
