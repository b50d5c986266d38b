package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	addStreamKey              string
	addStreamKID              string
	addStreamKeyMap           []string
	addStreamMp4DecryptPath   string
	addStreamRepresentationID string
	addStreamLabel            string
	addStreamPollInterval     float64
	addStreamWindowSize       int
	addStreamHistorySize      int
	addStreamHeaders          []string
	addStreamOutputDir        string
)

var addStreamCmd = &cobra.Command{
	Use:   "add-stream <mpd-url>",
	Short: "Add a DASH stream for conversion to HLS",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		headers, err := parsePairs(addStreamHeaders)
		if err != nil {
			return fmt.Errorf("parsing --header: %w", err)
		}
		keyMap, err := parsePairs(addStreamKeyMap)
		if err != nil {
			return fmt.Errorf("parsing --key-map: %w", err)
		}

		req := map[string]any{
			"mpd_url": args[0],
		}
		if addStreamKey != "" {
			req["key"] = addStreamKey
		}
		if addStreamKID != "" {
			req["kid"] = addStreamKID
		}
		if len(keyMap) > 0 {
			req["key_map"] = keyMap
		}
		if addStreamMp4DecryptPath != "" {
			req["mp4decrypt_path"] = addStreamMp4DecryptPath
		}
		if addStreamRepresentationID != "" {
			req["representation_id"] = addStreamRepresentationID
		}
		if addStreamLabel != "" {
			req["label"] = addStreamLabel
		}
		if addStreamPollInterval > 0 {
			req["poll_interval"] = addStreamPollInterval
		}
		if addStreamWindowSize > 0 {
			req["window_size"] = addStreamWindowSize
		}
		if addStreamHistorySize > 0 {
			req["history_size"] = addStreamHistorySize
		}
		if len(headers) > 0 {
			req["headers"] = headers
		}
		if addStreamOutputDir != "" {
			req["output_dir"] = addStreamOutputDir
		}

		var resp struct {
			StreamID string `json:"stream_id"`
			HLSURL   string `json:"hls_url"`
			Status   string `json:"status"`
		}
		client := newAPIClient(serverAddr)
		if err := client.do("POST", "/streams", req, &resp); err != nil {
			return err
		}

		fmt.Printf("stream_id: %s\nhls_url: %s\nstatus: %s\n", resp.StreamID, resp.HLSURL, resp.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addStreamCmd)

	addStreamCmd.Flags().StringVar(&addStreamKey, "key", "", "single decryption key (hex), paired with --kid")
	addStreamCmd.Flags().StringVar(&addStreamKID, "kid", "", "key ID (hex) for the single key")
	addStreamCmd.Flags().StringArrayVar(&addStreamKeyMap, "key-map", nil, "KID:KEY pair, repeatable, for multi-key content")
	addStreamCmd.Flags().StringVar(&addStreamMp4DecryptPath, "mp4decrypt-path", "", "override the configured decrypt tool path")
	addStreamCmd.Flags().StringVar(&addStreamRepresentationID, "representation-id", "", "pin a specific representation ID instead of auto-selecting")
	addStreamCmd.Flags().StringVar(&addStreamLabel, "label", "", "human-readable label for this stream")
	addStreamCmd.Flags().Float64Var(&addStreamPollInterval, "poll-interval", 0, "manifest poll interval in seconds (default 4.0)")
	addStreamCmd.Flags().IntVar(&addStreamWindowSize, "window-size", 0, "live sliding window size in segments (default 6)")
	addStreamCmd.Flags().IntVar(&addStreamHistorySize, "history-size", 0, "processed-segment history bound (default 128)")
	addStreamCmd.Flags().StringArrayVar(&addStreamHeaders, "header", nil, "Name:Value HTTP header, repeatable")
	addStreamCmd.Flags().StringVar(&addStreamOutputDir, "output-dir", "", "override the server-computed output directory")
}
