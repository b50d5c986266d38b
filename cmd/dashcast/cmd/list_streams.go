package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listStreamsCmd = &cobra.Command{
	Use:   "list-streams",
	Short: "List all converted streams",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		var resp struct {
			Streams []streamInfoResponse `json:"streams"`
		}
		client := newAPIClient(serverAddr)
		if err := client.do("GET", "/streams", nil, &resp); err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STREAM ID\tLABEL\tSTATUS\tLIVE\tHLS URL")
		for _, s := range resp.Streams {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", s.ID, s.Label, s.Status, s.Live, s.HLSURL)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listStreamsCmd)
}
