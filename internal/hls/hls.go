// Package hls maintains a sliding window of per-track HLS media playlists
// and segment files on disk, plus the master playlist that ties them
// together. It owns exactly one output directory tree and performs no
// network I/O: callers supply already-decrypted bytes.
package hls

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"

	"github.com/dashcast/dashcast/internal/storage"
)

// TrackType mirrors mpd.TrackType without importing it, keeping this package
// free of a dependency on the manifest parser.
type TrackType int

const (
	TrackVideo TrackType = iota
	TrackAudio
)

func (t TrackType) String() string {
	if t == TrackAudio {
		return "audio"
	}
	return "video"
}

// Segment is one written media segment, recorded in a track's sliding
// window.
type Segment struct {
	Number   int
	Duration time.Duration
	Filename string
}

// Variant is the metadata describing a track for master-playlist rendering.
type Variant struct {
	Name      string
	Type      TrackType
	Bandwidth int64
	Codecs    string
	Width     int
	Height    int
	InitReady bool
	Finalized bool

	sandbox   *storage.Sandbox
	targetDur time.Duration
	firstSeq  int
	window    []Segment
}

// Writer is the multi-variant HLS window writer for a single stream's output
// directory. It is exclusively owned by that stream's session; it has no
// knowledge of stream IDs, manifests, or decryption.
type Writer struct {
	mu         sync.Mutex
	sandbox    *storage.Sandbox
	live       bool
	windowSize int
	tracks     map[string]*Variant
	order      []string // insertion order, for deterministic master playlist output
}

// New constructs a Writer rooted at sandbox's base directory. windowSize
// bounds the live sliding window and is not used when live is false
// (VOD). Every path a Writer ever touches is resolved through sandbox,
// so a segment or playlist write can never land outside the stream's own
// output tree.
func New(sandbox *storage.Sandbox, live bool, windowSize int) *Writer {
	if windowSize <= 0 {
		windowSize = 6
	}
	return &Writer{
		sandbox:    sandbox,
		live:       live,
		windowSize: windowSize,
		tracks:     make(map[string]*Variant),
	}
}

// isSingleTrack reports whether video is (so far) the writer's only track.
// Consulted only the first time a track's directory is resolved, since the
// answer must never change afterward (see trackSandbox).
func (w *Writer) isSingleTrack() bool {
	for name := range w.tracks {
		if name != "video" {
			return false
		}
	}
	return true
}

// trackSandbox returns the sandbox rooted at a named track's subdirectory.
// The sole video track is aliased to the writer's own sandbox, matching the
// single-track on-disk layout: "video" is never promoted to its own
// subdirectory unless an audio track also exists at the time video's
// directory is first resolved.
func (w *Writer) trackSandbox(name string) (*storage.Sandbox, error) {
	if name == "video" && w.isSingleTrack() {
		return w.sandbox, nil
	}
	return w.sandbox.SubSandbox(name)
}

// PrepareTracks registers the full set of track names a poll has selected,
// before any of them writes an init segment or resolves its directory. This
// lets trackSandbox's single-track decision see every sibling track that
// will exist this poll, rather than only the ones EnsureVariant happened to
// have been called for so far: without it, calling EnsureVariant("video")
// before EnsureVariant("audio") would see an empty tracks map and wrongly
// alias video to the writer's root even for an audio+video stream. Safe to
// call every poll; already-known tracks are left untouched.
func (w *Writer) PrepareTracks(names ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := w.tracks[name]; ok {
			continue
		}
		w.tracks[name] = &Variant{Name: name}
		w.order = append(w.order, name)
	}
}

// EnsureVariant idempotently registers (or updates) a track's metadata,
// returning no handle (only an error): callers address the track by name
// thereafter. A
// track's directory is resolved exactly once, on its first Ensure call, and
// never recomputed: re-deriving it on every call would let the video/root
// alias flip out from under already-written files once a second track
// (e.g. audio) is registered on a later poll.
func (w *Writer) EnsureVariant(name string, trackType TrackType, bandwidth int64, codecs string, width, height int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	v, ok := w.tracks[name]
	if !ok {
		v = &Variant{Name: name, Type: trackType}
		w.tracks[name] = v
		w.order = append(w.order, name)
	}
	v.Type = trackType
	v.Bandwidth = bandwidth
	v.Codecs = codecs
	v.Width = width
	v.Height = height

	if v.sandbox == nil {
		sb, err := w.trackSandbox(name)
		if err != nil {
			return fmt.Errorf("hls: resolve track directory for %q: %w", name, err)
		}
		v.sandbox = sb
	}
	return v.sandbox.MkdirAll(".")
}

// WriteInit writes a track's initialization segment and marks it ready,
// triggering a master playlist rewrite.
func (w *Writer) WriteInit(name string, data []byte) error {
	w.mu.Lock()
	v, ok := w.tracks[name]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("hls: unknown track %q", name)
	}
	sb := v.sandbox
	w.mu.Unlock()

	if err := writeAtomic(sb, "init.mp4", data); err != nil {
		return fmt.Errorf("write init for %s: %w", name, err)
	}

	w.mu.Lock()
	v.InitReady = true
	w.mu.Unlock()

	return w.writeMaster()
}

// AddSegment writes a segment file, appends it to the track's in-memory
// window, updates its target duration, and rewrites the track's media
// playlist. In live mode, segments aged out of the window have their files
// deleted from disk.
func (w *Writer) AddSegment(name string, seq int, duration time.Duration, data []byte) error {
	w.mu.Lock()
	v, ok := w.tracks[name]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("hls: unknown track %q", name)
	}
	sb := v.sandbox
	w.mu.Unlock()

	filename := fmt.Sprintf("segment_%d.m4s", seq)
	if err := writeAtomic(sb, filename, data); err != nil {
		return fmt.Errorf("write segment %d for %s: %w", seq, name, err)
	}

	w.mu.Lock()
	if duration > v.targetDur {
		v.targetDur = duration
	}
	v.window = append(v.window, Segment{Number: seq, Duration: duration, Filename: filename})

	var evicted []Segment
	if w.live {
		for len(v.window) > w.windowSize {
			evicted = append(evicted, v.window[0])
			v.window = v.window[1:]
		}
	}
	if len(v.window) > 0 {
		v.firstSeq = v.window[0].Number
	}
	w.mu.Unlock()

	for _, e := range evicted {
		_ = sb.Remove(e.Filename)
	}

	return w.writeMediaPlaylist(name)
}

// Finalize marks every track finalized so the next media-playlist rewrite
// emits #EXT-X-ENDLIST.
func (w *Writer) Finalize() error {
	w.mu.Lock()
	names := make([]string, 0, len(w.tracks))
	for name, v := range w.tracks {
		v.Finalized = true
		names = append(names, name)
	}
	w.mu.Unlock()

	sort.Strings(names)
	for _, name := range names {
		if err := w.writeMediaPlaylist(name); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeMediaPlaylist(name string) error {
	w.mu.Lock()
	v, ok := w.tracks[name]
	if !ok {
		w.mu.Unlock()
		return fmt.Errorf("hls: unknown track %q", name)
	}
	sb := v.sandbox
	window := make([]Segment, len(v.window))
	copy(window, v.window)
	targetDur := v.targetDur
	firstSeq := v.firstSeq
	live := w.live
	finalized := v.Finalized
	w.mu.Unlock()

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", int(math.Round(targetDur.Seconds()+0.5)))
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", firstSeq)
	if !live {
		b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")
	}
	b.WriteString("#EXT-X-MAP:URI=\"init.mp4\"\n")
	for _, seg := range window {
		fmt.Fprintf(&b, "#EXTINF:%.6f,\n%s\n", seg.Duration.Seconds(), seg.Filename)
	}
	if finalized && !live {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	return writeAtomic(sb, "index.m3u8", []byte(b.String()))
}

// writeMaster composes the master playlist over every track with a ready
// init segment. It is a no-op (returns nil) until at least one init has been
// written, matching the spec's "written only when at least one init has been
// written" rule.
func (w *Writer) writeMaster() error {
	w.mu.Lock()
	var videos, audios []*Variant
	anyReady := false
	for _, name := range w.order {
		v := w.tracks[name]
		if !v.InitReady {
			continue
		}
		anyReady = true
		switch v.Type {
		case TrackVideo:
			videos = append(videos, v)
		case TrackAudio:
			audios = append(audios, v)
		}
	}
	root := w.sandbox
	w.mu.Unlock()

	if !anyReady {
		return nil
	}

	var audioBandwidthSum int64
	for _, a := range audios {
		audioBandwidthSum += a.Bandwidth
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:7\n")

	hasAudioGroup := len(videos) > 0 && len(audios) > 0
	if hasAudioGroup {
		for _, a := range audios {
			fmt.Fprintf(&b, "#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=\"audio\",NAME=%q,URI=%q,DEFAULT=YES,AUTOSELECT=YES\n",
				a.Name, w.playlistURI(a.Name))
		}
		for _, v := range videos {
			codecs := v.Codecs
			if len(audios) > 0 && audios[0].Codecs != "" {
				codecs = strings.TrimSuffix(codecs, ",") + "," + audios[0].Codecs
			}
			fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d", v.Bandwidth+audioBandwidthSum)
			if v.Width > 0 && v.Height > 0 {
				fmt.Fprintf(&b, ",RESOLUTION=%dx%d", v.Width, v.Height)
			}
			fmt.Fprintf(&b, ",CODECS=%q,AUDIO=\"audio\"\n", codecs)
			fmt.Fprintf(&b, "%s\n", w.playlistURI(v.Name))
		}
	} else if len(videos) > 0 {
		for _, v := range videos {
			fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d", v.Bandwidth)
			if v.Width > 0 && v.Height > 0 {
				fmt.Fprintf(&b, ",RESOLUTION=%dx%d", v.Width, v.Height)
			}
			if v.Codecs != "" {
				fmt.Fprintf(&b, ",CODECS=%q", v.Codecs)
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "%s\n", w.playlistURI(v.Name))
		}
	} else {
		// Audio-only: plain variants, no MEDIA grouping.
		for _, a := range audios {
			fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%d", a.Bandwidth)
			if a.Codecs != "" {
				fmt.Fprintf(&b, ",CODECS=%q", a.Codecs)
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "%s\n", w.playlistURI(a.Name))
		}
	}

	return writeAtomic(root, "master.m3u8", []byte(b.String()))
}

// playlistURI returns the master-playlist-relative URI of a track's media
// playlist, accounting for the single-track video/root aliasing: when a
// track's sandbox IS the writer's own sandbox, its playlist is simply
// "index.m3u8" rather than "<name>/index.m3u8".
func (w *Writer) playlistURI(name string) string {
	w.mu.Lock()
	v := w.tracks[name]
	aliasedToRoot := v.sandbox == w.sandbox
	w.mu.Unlock()
	if aliasedToRoot {
		return "index.m3u8"
	}
	return name + "/index.m3u8"
}

// writeAtomic resolves relativePath within sb and writes data via a temp
// file + atomic, fsync'd rename so HTTP readers never observe a
// half-written playlist or segment.
func writeAtomic(sb *storage.Sandbox, relativePath string, data []byte) error {
	path, err := sb.ResolvePath(relativePath)
	if err != nil {
		return err
	}

	t, err := renameio.NewPendingFile(path)
	if err != nil {
		return err
	}
	defer t.Cleanup()

	if _, err := t.Write(data); err != nil {
		return err
	}
	return t.CloseAtomicallyReplace()
}
