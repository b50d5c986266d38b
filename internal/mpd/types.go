// Package mpd parses MPEG-DASH manifests into a flat list of representations
// with fully resolved, absolute segment URLs. It has no I/O and no external
// state: given manifest bytes and the URL they were fetched from, it returns
// a Manifest or an error.
package mpd

import "time"

// Segment is a single addressable media segment within a representation.
type Segment struct {
	// Number is the segment's sequence number, unique within a representation's
	// current manifest view.
	Number int
	// URL is the fully resolved, absolute segment URL.
	URL string
	// Duration is the segment's playback duration.
	Duration time.Duration
	// ByteRange is an optional "start-end" byte range into URL (SegmentList /
	// SegmentBase with explicit ranges). Empty when the whole resource is the
	// segment.
	ByteRange string
}

// TrackType classifies a Representation as video or audio. Representations
// that classify as neither are dropped during parsing.
type TrackType int

const (
	TrackUnknown TrackType = iota
	TrackVideo
	TrackAudio
)

func (t TrackType) String() string {
	switch t {
	case TrackVideo:
		return "video"
	case TrackAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// Representation is a single encoded rendition of a media track, with every
// segment URL already resolved to an absolute URL.
type Representation struct {
	ID        string
	Type      TrackType
	Bandwidth int64
	Codecs    string
	MimeType  string
	Width     int
	Height    int

	// DefaultKID is the normalized (lowercase, no dashes) default Key ID for
	// CENC-encrypted content, or "" if the representation is not protected.
	DefaultKID string

	// InitURL is the absolute URL of the fMP4 initialization segment, or ""
	// if the representation has no separate init segment.
	InitURL string

	// Segments is the ordered list of media segments for this representation
	// as of this manifest parse.
	Segments []Segment
}

// Manifest is the result of parsing one MPD document. It is ephemeral: a new
// Manifest is produced on every poll.
type Manifest struct {
	// BaseURL is the manifest's own resolved base (its fetch URL's directory),
	// kept mostly for diagnostics.
	BaseURL string

	// Live indicates the presentation is an unbounded/ongoing live stream
	// (MPD @type="dynamic"). When false the manifest is VOD.
	Live bool

	// MinUpdatePeriod is the suggested manifest refetch interval
	// (@minimumUpdatePeriod), zero if unspecified.
	MinUpdatePeriod time.Duration

	// MediaPresentationDuration is the total presentation duration if known.
	MediaPresentationDuration time.Duration

	// Representations holds every classified (audio or video) representation
	// found across all periods, in document order.
	Representations []Representation
}

// VideoRepresentations returns the manifest's video representations in
// document order.
func (m *Manifest) VideoRepresentations() []Representation {
	return m.filterByType(TrackVideo)
}

// AudioRepresentations returns the manifest's audio representations in
// document order.
func (m *Manifest) AudioRepresentations() []Representation {
	return m.filterByType(TrackAudio)
}

func (m *Manifest) filterByType(t TrackType) []Representation {
	var out []Representation
	for _, r := range m.Representations {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// ByID returns the representation with the given ID, regardless of track
// type, and whether it was found.
func (m *Manifest) ByID(id string) (Representation, bool) {
	for _, r := range m.Representations {
		if r.ID == id {
			return r, true
		}
	}
	return Representation{}, false
}
