package mpd

import (
	"encoding/xml"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"
)

const (
	defaultFallbackSegmentCount = 200
	defaultStartNumber          = 1
)

// Parse interprets MPD XML bytes fetched from mpdURL into a Manifest. It
// performs no I/O: mpdURL is used only to anchor relative BaseURL
// resolution. Malformed XML and an unparsable mpdURL are the only error
// paths; representations that
// carry no usable segment addressing are skipped rather than failing the
// whole parse.
func Parse(data []byte, mpdURL string) (*Manifest, error) {
	var doc xmlMPD
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse MPD XML: %w", err)
	}

	root, err := dirURL(mpdURL)
	if err != nil {
		return nil, fmt.Errorf("parse MPD URL: %w", err)
	}

	live := doc.Type == "dynamic"
	manifestDuration := parseISODuration(doc.MediaPresentationDuration)

	manifest := &Manifest{
		BaseURL:                   root.String(),
		Live:                      live,
		MinUpdatePeriod:           parseISODuration(doc.MinimumUpdatePeriod),
		MediaPresentationDuration: manifestDuration,
	}

	mpdBase := resolveBase(root, doc.BaseURL)

	for _, period := range doc.Periods {
		periodBase := resolveBase(mpdBase, period.BaseURL)
		periodDuration := parseISODuration(period.Duration)
		if periodDuration == 0 {
			periodDuration = manifestDuration
		}

		for _, as := range period.AdaptationSets {
			if !isMediaAdaptationSet(as) {
				continue
			}
			asBase := resolveBase(periodBase, as.BaseURL)
			asKID := defaultKID(as.DefaultKID, as.ContentProtections)

			for _, rep := range as.Representations {
				trackType := classify(rep.MimeType, as.MimeType, as.ContentType)
				if trackType == TrackUnknown {
					continue
				}

				repBase := resolveBase(asBase, rep.BaseURL)
				kid := defaultKID(rep.DefaultKID, rep.ContentProtections)
				if kid == "" {
					kid = asKID
				}

				built := Representation{
					ID:         rep.ID,
					Type:       trackType,
					Bandwidth:  rep.Bandwidth,
					Codecs:     firstNonEmpty(rep.Codecs, as.Codecs),
					MimeType:   firstNonEmpty(rep.MimeType, as.MimeType),
					Width:      firstNonZero(rep.Width, as.Width),
					Height:     firstNonZero(rep.Height, as.Height),
					DefaultKID: kid,
				}

				tmpl := mergeTemplates(doc.SegmentTemplate, period.SegmentTemplate, as.SegmentTemplate, rep.SegmentTemplate)

				switch {
				case tmpl != nil:
					built.InitURL, built.Segments = buildFromTemplate(tmpl, rep.ID, built.Bandwidth, repBase, periodDuration, live)
				case rep.SegmentList != nil:
					built.InitURL, built.Segments = buildFromList(rep.SegmentList, repBase)
				case rep.SegmentBase != nil:
					built.InitURL, built.Segments = buildFromBase(rep.SegmentBase, repBase, periodDuration)
				default:
					// No usable addressing scheme; skip silently.
					continue
				}

				if built.InitURL == "" && len(built.Segments) == 0 {
					continue
				}

				manifest.Representations = append(manifest.Representations, built)
			}
		}
	}

	return manifest, nil
}

// isMediaAdaptationSet drops adaptation sets that are explicitly typed as
// something other than audio/video, or whose MIME type indicates a text
// subtitle format.
func isMediaAdaptationSet(as xmlAdaptationSet) bool {
	if as.ContentType != "" && as.ContentType != "audio" && as.ContentType != "video" {
		return false
	}
	mt := strings.ToLower(as.MimeType)
	for _, bad := range []string{"text", "ttml", "vtt", "srt"} {
		if strings.Contains(mt, bad) {
			return false
		}
	}
	return true
}

func classify(repMime, asMime, contentType string) TrackType {
	check := strings.ToLower(repMime + asMime + contentType)
	switch {
	case strings.Contains(check, "video"):
		return TrackVideo
	case strings.Contains(check, "audio"):
		return TrackAudio
	default:
		return TrackUnknown
	}
}

// defaultKID searches an element's own default_KID-like attribute, then its
// ContentProtection children, returning the first hit normalized to
// lowercase hex with dashes removed.
func defaultKID(ownAttr string, cps []xmlContentProtection) string {
	if ownAttr != "" {
		return normalizeKID(ownAttr)
	}
	for _, cp := range cps {
		if cp.DefaultKID != "" {
			return normalizeKID(cp.DefaultKID)
		}
	}
	return ""
}

func normalizeKID(kid string) string {
	kid = strings.ReplaceAll(kid, "-", "")
	return strings.ToLower(kid)
}

// mergeTemplates flattens SegmentTemplate attributes down the MPD/Period/
// AdaptationSet/Representation hierarchy, each level's values overriding the
// ones above it. Any level may be nil; returns nil only when all are nil.
func mergeTemplates(levels ...*xmlSegmentTemplate) *mergedTemplate {
	any := false
	for _, t := range levels {
		if t != nil {
			any = true
			break
		}
	}
	if !any {
		return nil
	}

	m := &mergedTemplate{
		timescale:   1,
		startNumber: defaultStartNumber,
	}

	// Outermost (MPD) first so innermost (Representation) wins.
	for _, t := range levels {
		if t == nil {
			continue
		}
		if t.Media != "" {
			m.media = t.Media
		}
		if t.Initialization != "" {
			m.initialization = t.Initialization
		}
		if t.Timescale != 0 {
			m.timescale = t.Timescale
		}
		if t.Duration != 0 {
			m.duration = t.Duration
		}
		if t.StartNumber != nil {
			m.startNumber = *t.StartNumber
		}
		if t.PresentationTimeOffset != 0 {
			m.presentationTimeOffset = t.PresentationTimeOffset
		}
		if t.Timeline != nil {
			m.timeline = t.Timeline
		}
	}

	if m.timescale <= 0 {
		m.timescale = 1
	}

	return m
}

func buildFromTemplate(tmpl *mergedTemplate, repID string, bandwidth int64, base *url.URL, periodDuration time.Duration, live bool) (string, []Segment) {
	var initURL string
	if tmpl.initialization != "" {
		initPath := expandTemplate(tmpl.initialization, templateVars{representationID: repID, bandwidth: bandwidth})
		initURL = resolveURL(base, initPath)
	}

	var segments []Segment

	switch {
	case tmpl.timeline != nil && len(tmpl.timeline.S) > 0:
		entries := expandTimeline(tmpl.timeline, tmpl.startNumber, live)
		for _, e := range entries {
			presentationTime := e.time - tmpl.presentationTimeOffset
			mediaPath := expandTemplate(tmpl.media, templateVars{
				representationID: repID,
				number:           int64(e.number),
				time:             presentationTime,
				bandwidth:        bandwidth,
			})
			segments = append(segments, Segment{
				Number:   e.number,
				URL:      resolveURL(base, mediaPath),
				Duration: time.Duration(float64(e.dur) / float64(tmpl.timescale) * float64(time.Second)),
			})
		}

	case tmpl.duration > 0:
		segDuration := float64(tmpl.duration) / float64(tmpl.timescale)
		count := defaultFallbackSegmentCount
		if periodDuration > 0 && segDuration > 0 {
			count = int(math.Ceil(periodDuration.Seconds() / segDuration))
		}
		segTime := int64(0)
		for i := 0; i < count; i++ {
			number := tmpl.startNumber + i
			mediaPath := expandTemplate(tmpl.media, templateVars{
				representationID: repID,
				number:           int64(number),
				time:             segTime,
				bandwidth:        bandwidth,
			})
			segments = append(segments, Segment{
				Number:   number,
				URL:      resolveURL(base, mediaPath),
				Duration: time.Duration(segDuration * float64(time.Second)),
			})
			segTime += int64(tmpl.duration)
		}
	}

	return initURL, segments
}

func buildFromList(list *xmlSegmentList, base *url.URL) (string, []Segment) {
	var initURL string
	if list.Initialization != nil && list.Initialization.SourceURL != "" {
		initURL = resolveURL(base, list.Initialization.SourceURL)
	}

	timescale := list.Timescale
	if timescale <= 0 {
		timescale = 1
	}

	startNumber := defaultStartNumber
	if list.StartNumber != nil {
		startNumber = *list.StartNumber
	}

	var segments []Segment
	for i, su := range list.SegmentURLs {
		dur := list.Duration
		if su.Duration > 0 {
			dur = su.Duration
		}
		duration := time.Duration(float64(dur) / float64(timescale) * float64(time.Second))
		seg := Segment{
			Number:   startNumber + i,
			URL:      resolveURL(base, su.Media),
			Duration: duration,
		}
		if su.Range != "" {
			seg.ByteRange = su.Range
		}
		segments = append(segments, seg)
	}

	return initURL, segments
}

func buildFromBase(sb *xmlSegmentBase, base *url.URL, totalDuration time.Duration) (string, []Segment) {
	var initURL string
	if sb.Initialization != nil && sb.Initialization.SourceURL != "" {
		initURL = resolveURL(base, sb.Initialization.SourceURL)
	}

	segments := []Segment{{
		Number:   defaultStartNumber,
		URL:      base.String(),
		Duration: totalDuration,
	}}

	return initURL, segments
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}
