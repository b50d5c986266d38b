package session

import "github.com/dashcast/dashcast/internal/mpd"

// RepresentationInfo is the subset of a selected representation's metadata
// exposed in a stream's Info snapshot.
type RepresentationInfo struct {
	ID        string `json:"id"`
	Bandwidth int64  `json:"bandwidth"`
	Codecs    string `json:"codecs"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Info is a point-in-time snapshot of a Session's observable state, safe to
// read without holding any lock the caller doesn't already know about.
type Info struct {
	ID                string              `json:"id"`
	Label             string              `json:"label,omitempty"`
	MPDURL            string              `json:"mpd_url"`
	Status            Status              `json:"status"`
	Error             string              `json:"error,omitempty"`
	Live              bool                `json:"live"`
	Video             *RepresentationInfo `json:"video,omitempty"`
	Audio             *RepresentationInfo `json:"audio,omitempty"`
	VideoLastSequence *int                `json:"video_last_sequence,omitempty"`
	AudioLastSequence *int                `json:"audio_last_sequence,omitempty"`
}

// Info returns a snapshot of the session's current state.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info := Info{
		ID:     s.id,
		Label:  s.cfg.Label,
		MPDURL: s.cfg.MPDURL,
		Status: s.status,
		Error:  s.errMsg,
		Live:   s.live,
	}

	if s.videoRep != nil {
		info.Video = repInfo(s.videoRep)
		if ts, ok := s.tracks[trackNameVideo]; ok && ts.hasLastSeq {
			seq := ts.lastSeq
			info.VideoLastSequence = &seq
		}
	}
	if s.audioRep != nil {
		info.Audio = repInfo(s.audioRep)
		if ts, ok := s.tracks[trackNameAudio]; ok && ts.hasLastSeq {
			seq := ts.lastSeq
			info.AudioLastSequence = &seq
		}
	}

	return info
}

func repInfo(r *mpd.Representation) *RepresentationInfo {
	return &RepresentationInfo{
		ID:        r.ID,
		Bandwidth: r.Bandwidth,
		Codecs:    r.Codecs,
		Width:     r.Width,
		Height:    r.Height,
	}
}
