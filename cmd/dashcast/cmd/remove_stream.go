package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var removeStreamCmd = &cobra.Command{
	Use:   "remove-stream <stream-id>",
	Short: "Remove a converted stream",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		client := newAPIClient(serverAddr)
		if err := client.do("DELETE", "/streams/"+args[0], nil, nil); err != nil {
			return err
		}
		fmt.Printf("removed stream %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeStreamCmd)
}
