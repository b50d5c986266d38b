package mpd

import "encoding/xml"

// xmlMPD mirrors the subset of the MPEG-DASH MPD schema this parser
// understands. Unknown elements and attributes are ignored by encoding/xml.
type xmlMPD struct {
	XMLName                   xml.Name            `xml:"MPD"`
	Type                      string              `xml:"type,attr"`
	MediaPresentationDuration string              `xml:"mediaPresentationDuration,attr"`
	MinimumUpdatePeriod       string              `xml:"minimumUpdatePeriod,attr"`
	BaseURL                   []string            `xml:"BaseURL"`
	SegmentTemplate           *xmlSegmentTemplate `xml:"SegmentTemplate"`
	Periods                   []xmlPeriod         `xml:"Period"`
}

type xmlPeriod struct {
	Duration        string              `xml:"duration,attr"`
	BaseURL         []string            `xml:"BaseURL"`
	SegmentTemplate *xmlSegmentTemplate `xml:"SegmentTemplate"`
	AdaptationSets  []xmlAdaptationSet  `xml:"AdaptationSet"`
}

type xmlAdaptationSet struct {
	MimeType           string              `xml:"mimeType,attr"`
	ContentType        string              `xml:"contentType,attr"`
	Lang               string              `xml:"lang,attr"`
	Codecs             string              `xml:"codecs,attr"`
	Width              int                 `xml:"width,attr"`
	Height             int                 `xml:"height,attr"`
	DefaultKID         string              `xml:"default_KID,attr"`
	BaseURL            []string            `xml:"BaseURL"`
	ContentProtections []xmlContentProtection `xml:"ContentProtection"`
	SegmentTemplate    *xmlSegmentTemplate `xml:"SegmentTemplate"`
	Representations    []xmlRepresentation `xml:"Representation"`
}

type xmlRepresentation struct {
	ID                 string              `xml:"id,attr"`
	Bandwidth          int64               `xml:"bandwidth,attr"`
	Codecs             string              `xml:"codecs,attr"`
	MimeType           string              `xml:"mimeType,attr"`
	Width              int                 `xml:"width,attr"`
	Height             int                 `xml:"height,attr"`
	DefaultKID         string              `xml:"default_KID,attr"`
	BaseURL            []string            `xml:"BaseURL"`
	ContentProtections []xmlContentProtection `xml:"ContentProtection"`
	SegmentTemplate    *xmlSegmentTemplate `xml:"SegmentTemplate"`
	SegmentList        *xmlSegmentList     `xml:"SegmentList"`
	SegmentBase        *xmlSegmentBase     `xml:"SegmentBase"`
}

// xmlContentProtection carries every spelling of default_KID the parser
// recognizes. encoding/xml matches attributes by local name regardless of
// namespace prefix, so both "cenc:default_KID" and the bare form land here.
type xmlContentProtection struct {
	SchemeIDURI string `xml:"schemeIdUri,attr"`
	DefaultKID  string `xml:"default_KID,attr"`
}

type xmlSegmentTemplate struct {
	Media                  string           `xml:"media,attr"`
	Initialization         string           `xml:"initialization,attr"`
	Timescale              int              `xml:"timescale,attr"`
	Duration               int              `xml:"duration,attr"`
	StartNumber            *int             `xml:"startNumber,attr"`
	PresentationTimeOffset int64            `xml:"presentationTimeOffset,attr"`
	Timeline               *xmlSegmentTimeline `xml:"SegmentTimeline"`
}

type xmlSegmentTimeline struct {
	S []xmlS `xml:"S"`
}

type xmlS struct {
	T *int64 `xml:"t,attr"`
	D int64  `xml:"d,attr"`
	R int    `xml:"r,attr"`
}

type xmlSegmentList struct {
	Duration       int64        `xml:"duration,attr"`
	Timescale      int          `xml:"timescale,attr"`
	StartNumber    *int         `xml:"startNumber,attr"`
	Initialization *xmlURLType  `xml:"Initialization"`
	SegmentURLs    []xmlURLType `xml:"SegmentURL"`
}

type xmlSegmentBase struct {
	Initialization *xmlURLType `xml:"Initialization"`
}

type xmlURLType struct {
	SourceURL string `xml:"sourceURL,attr"`
	Media     string `xml:"media,attr"`
	Range     string `xml:"range,attr"`
	Duration  int64  `xml:"duration,attr"`
}

// mergedTemplate is a SegmentTemplate flattened across the MPD/Period/
// AdaptationSet/Representation hierarchy, child values winning over parent.
type mergedTemplate struct {
	media                  string
	initialization         string
	timescale              int
	duration               int
	startNumber            int
	presentationTimeOffset int64
	timeline               *xmlSegmentTimeline
}
