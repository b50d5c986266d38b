package session

import (
	"fmt"

	"github.com/dashcast/dashcast/internal/mpd"
)

// selectRepresentations picks the video and/or audio representation to
// convert from a freshly parsed manifest.
//
// If repID is configured, the matching representation (by ID, regardless of
// track type) is selected first; audio-by-bandwidth selection then only
// runs if no audio representation was already selected via the ID match.
// Absent a configured ID, video is the highest-bandwidth video
// representation and audio is always the highest-bandwidth audio
// representation. It is an error for both to end up unselected.
func selectRepresentations(m *mpd.Manifest, repID string) (video, audio *mpd.Representation, err error) {
	if repID != "" {
		if rep, ok := m.ByID(repID); ok {
			switch rep.Type {
			case mpd.TrackVideo:
				video = &rep
			case mpd.TrackAudio:
				audio = &rep
			}
		}
	}

	if video == nil {
		if v := highestBandwidth(m.VideoRepresentations()); v != nil {
			video = v
		}
	}
	if audio == nil {
		if a := highestBandwidth(m.AudioRepresentations()); a != nil {
			audio = a
		}
	}

	if video == nil && audio == nil {
		return nil, nil, fmt.Errorf("no usable video or audio representation in manifest")
	}
	return video, audio, nil
}

func highestBandwidth(reps []mpd.Representation) *mpd.Representation {
	if len(reps) == 0 {
		return nil
	}
	best := reps[0]
	for _, r := range reps[1:] {
		if r.Bandwidth > best.Bandwidth {
			best = r
		}
	}
	return &best
}
