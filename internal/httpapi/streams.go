package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dashcast/dashcast/internal/manager"
	"github.com/dashcast/dashcast/internal/session"
)

type streamHandler struct {
	mgr    *manager.Manager
	logger *slog.Logger
}

// Register wires every stream-control operation the outward API specifies.
func (h *streamHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:   "addStream",
		Method:        "POST",
		Path:          "/streams",
		Summary:       "Add a DASH stream for conversion",
		Tags:          []string{"Streams"},
		DefaultStatus: 201,
	}, h.Add)

	huma.Register(api, huma.Operation{
		OperationID:   "removeStream",
		Method:        "DELETE",
		Path:          "/streams/{id}",
		Summary:       "Remove a converted stream",
		Tags:          []string{"Streams"},
		DefaultStatus: 200,
	}, h.Remove)

	huma.Register(api, huma.Operation{
		OperationID: "listStreams",
		Method:      "GET",
		Path:        "/streams",
		Summary:     "List all converted streams",
		Tags:        []string{"Streams"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "getStream",
		Method:      "GET",
		Path:        "/streams/{id}",
		Summary:     "Get a stream's status",
		Tags:        []string{"Streams"},
	}, h.Get)
}

// AddStreamRequest is the JSON body for POST /streams.
type AddStreamRequest struct {
	MPDURL           string            `json:"mpd_url" doc:"Source MPD manifest URL"`
	Key              string            `json:"key,omitempty" doc:"Single decryption key (hex), paired with kid"`
	KID              string            `json:"kid,omitempty" doc:"Key ID (hex) for the single key"`
	KeyMap           map[string]string `json:"key_map,omitempty" doc:"KID->key map for multi-key content"`
	Mp4DecryptPath   string            `json:"mp4decrypt_path,omitempty" doc:"Override the configured decrypt tool path"`
	RepresentationID string            `json:"representation_id,omitempty"`
	Label            string            `json:"label,omitempty"`
	PollInterval     float64           `json:"poll_interval,omitempty" doc:"Manifest poll interval in seconds, default 4.0"`
	WindowSize       int               `json:"window_size,omitempty" doc:"Live sliding window size in segments, default 6"`
	HistorySize      int               `json:"history_size,omitempty" doc:"Processed-segment history bound, default 128"`
	Headers          map[string]string `json:"headers,omitempty"`
	OutputDir        string            `json:"output_dir,omitempty"`
}

type AddStreamInput struct {
	Body AddStreamRequest
}

type AddStreamResponse struct {
	StreamID string `json:"stream_id"`
	HLSURL   string `json:"hls_url"`
	Status   string `json:"status"`
}

type AddStreamOutput struct {
	Body AddStreamResponse
}

func (h *streamHandler) Add(ctx context.Context, input *AddStreamInput) (*AddStreamOutput, error) {
	body := input.Body

	pollInterval := time.Duration(body.PollInterval * float64(time.Second))

	cfg := session.Config{
		MPDURL:           body.MPDURL,
		Key:              body.Key,
		KID:              body.KID,
		KeyMap:           body.KeyMap,
		Mp4DecryptPath:   body.Mp4DecryptPath,
		RepresentationID: body.RepresentationID,
		Label:            body.Label,
		PollInterval:     pollInterval,
		WindowSize:       body.WindowSize,
		HistorySize:      body.HistorySize,
		Headers:          body.Headers,
		OutputDir:        body.OutputDir,
	}

	sess, err := h.mgr.AddStream(ctx, cfg)
	if err != nil {
		return nil, huma.Error400BadRequest(err.Error())
	}

	resp := &AddStreamOutput{}
	resp.Body.StreamID = sess.ID()
	resp.Body.HLSURL = fmt.Sprintf("/hls/%s/master.m3u8", sess.ID())
	resp.Body.Status = string(sess.Info().Status)
	return resp, nil
}

type RemoveStreamInput struct {
	ID string `path:"id"`
}

type RemoveStreamOutput struct{}

func (h *streamHandler) Remove(ctx context.Context, input *RemoveStreamInput) (*RemoveStreamOutput, error) {
	if !h.mgr.RemoveStream(input.ID) {
		return nil, huma.Error404NotFound(fmt.Sprintf("stream %s not found", input.ID))
	}
	return &RemoveStreamOutput{}, nil
}

type ListStreamsInput struct{}

type ListStreamsOutput struct {
	Body struct {
		Streams []StreamInfoResponse `json:"streams"`
	}
}

func (h *streamHandler) List(ctx context.Context, input *ListStreamsInput) (*ListStreamsOutput, error) {
	infos := h.mgr.List()
	resp := &ListStreamsOutput{}
	resp.Body.Streams = make([]StreamInfoResponse, 0, len(infos))
	for _, info := range infos {
		resp.Body.Streams = append(resp.Body.Streams, streamInfoFromSession(info))
	}
	return resp, nil
}

type GetStreamInput struct {
	ID string `path:"id"`
}

type GetStreamOutput struct {
	Body StreamInfoResponse
}

func (h *streamHandler) Get(ctx context.Context, input *GetStreamInput) (*GetStreamOutput, error) {
	sess, ok := h.mgr.Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound(fmt.Sprintf("stream %s not found", input.ID))
	}
	return &GetStreamOutput{Body: streamInfoFromSession(sess.Info())}, nil
}

// StreamInfoResponse is the wire representation of a session's snapshot.
type StreamInfoResponse struct {
	ID                string                      `json:"stream_id"`
	Label             string                      `json:"label,omitempty"`
	MPDURL            string                      `json:"mpd_url"`
	Status            string                      `json:"status"`
	Error             string                      `json:"error,omitempty"`
	Live              bool                        `json:"live"`
	HLSURL            string                      `json:"hls_url"`
	Video             *session.RepresentationInfo `json:"video,omitempty"`
	Audio             *session.RepresentationInfo `json:"audio,omitempty"`
	VideoLastSequence *int                        `json:"video_last_sequence,omitempty"`
	AudioLastSequence *int                        `json:"audio_last_sequence,omitempty"`
}

func streamInfoFromSession(info session.Info) StreamInfoResponse {
	return StreamInfoResponse{
		ID:                info.ID,
		Label:             info.Label,
		MPDURL:            info.MPDURL,
		Status:            string(info.Status),
		Error:             info.Error,
		Live:              info.Live,
		HLSURL:            fmt.Sprintf("/hls/%s/master.m3u8", info.ID),
		Video:             info.Video,
		Audio:             info.Audio,
		VideoLastSequence: info.VideoLastSequence,
		AudioLastSequence: info.AudioLastSequence,
	}
}
