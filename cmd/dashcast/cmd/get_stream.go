package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// streamInfoResponse mirrors internal/httpapi.StreamInfoResponse. The CLI
// keeps its own copy rather than importing internal/httpapi so that it
// only ever depends on the wire contract, exactly like any other client.
type streamInfoResponse struct {
	ID                string          `json:"stream_id"`
	Label             string          `json:"label,omitempty"`
	MPDURL            string          `json:"mpd_url"`
	Status            string          `json:"status"`
	Error             string          `json:"error,omitempty"`
	Live              bool            `json:"live"`
	HLSURL            string          `json:"hls_url"`
	Video             json.RawMessage `json:"video,omitempty"`
	Audio             json.RawMessage `json:"audio,omitempty"`
	VideoLastSequence *int            `json:"video_last_sequence,omitempty"`
	AudioLastSequence *int            `json:"audio_last_sequence,omitempty"`
}

var getStreamCmd = &cobra.Command{
	Use:   "get-stream <stream-id>",
	Short: "Get a stream's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var resp streamInfoResponse
		client := newAPIClient(serverAddr)
		if err := client.do("GET", "/streams/"+args[0], nil, &resp); err != nil {
			return err
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting response: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getStreamCmd)
}
