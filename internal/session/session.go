package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dashcast/dashcast/internal/decrypt"
	"github.com/dashcast/dashcast/internal/fetcher"
	"github.com/dashcast/dashcast/internal/hls"
	"github.com/dashcast/dashcast/internal/mpd"
	"github.com/dashcast/dashcast/internal/storage"
)

// Status is a Session's lifecycle state. It is monotonic along the usual
// path (Initializing -> Starting -> Running -> Stopped|Completed), with
// transient excursions into Error allowed from Starting/Running; Error is
// overwritten by the next successful poll.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusStarting      Status = "starting"
	StatusRunning       Status = "running"
	StatusCompleted     Status = "completed"
	StatusStopped       Status = "stopped"
	StatusError         Status = "error"
)

const (
	trackNameVideo = "video"
	trackNameAudio = "audio"
)

// trackState is the per-track processing state a Session carries across
// polls: which segments have been written, the last contiguous sequence
// seen, and whether the init segment has been written yet.
type trackState struct {
	rep         mpd.Representation
	initWritten bool
	hasLastSeq  bool
	lastSeq     int
	hist        *history
}

// Session is the pipeline for one converted stream: it owns a background
// task that polls the manifest, selects representations, and drives
// decryption and HLS writing. It is created and exclusively owned by a
// Manager.
type Session struct {
	id        string
	cfg       Config
	fetcher   fetcher.Fetcher
	logger    *slog.Logger
	decryptor decrypt.Decryptor
	sandbox   *storage.Sandbox

	mu       sync.RWMutex
	status   Status
	errMsg   string
	live     bool
	writer   *hls.Writer
	videoRep *mpd.Representation
	audioRep *mpd.Representation
	tracks   map[string]*trackState

	cancel context.CancelFunc
	done   chan struct{}
}

// New validates cfg and constructs a Session. Construction failures
// (invalid config, unresolvable decrypt tool) are "configuration errors"
// per the spec: synchronous, and the session is never created.
func New(id string, cfg Config, f fetcher.Fetcher, logger *slog.Logger, defaultToolPath, outputDir string) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid stream config: %w", err)
	}
	dec, err := cfg.buildDecryptor(defaultToolPath)
	if err != nil {
		return nil, fmt.Errorf("build decryptor: %w", err)
	}
	sandbox, err := storage.NewSandbox(outputDir)
	if err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:        id,
		cfg:       cfg,
		fetcher:   f,
		logger:    logger.With(slog.String("stream_id", id)),
		decryptor: dec,
		sandbox:   sandbox,
		status:    StatusInitializing,
		tracks:    make(map[string]*trackState),
	}, nil
}

// ID returns the session's stream id.
func (s *Session) ID() string { return s.id }

// OutputDir returns the session's output directory root, used by the
// outward file server to resolve requested paths against.
func (s *Session) OutputDir() string { return s.sandbox.BaseDir() }

// Sandbox returns the session's output sandbox, confining every path the
// outward file server resolves within it.
func (s *Session) Sandbox() *storage.Sandbox { return s.sandbox }

// Start transitions the session to Starting and launches its pipeline task.
// Start must be called at most once per Session.
func (s *Session) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.setStatus(StatusStarting, "")

	go func() {
		defer close(s.done)
		s.runLoop(runCtx)
	}()
}

// Stop signals the pipeline to cancel, awaits its exit, and marks the
// session Stopped. Safe to call multiple times.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		<-s.done
	}
	s.mu.Lock()
	if s.status != StatusCompleted {
		s.status = StatusStopped
	}
	s.mu.Unlock()
}

func (s *Session) setStatus(status Status, errMsg string) {
	s.mu.Lock()
	s.status = status
	s.errMsg = errMsg
	s.mu.Unlock()
}

func (s *Session) recordError(err error) {
	s.logger.Warn("stream poll error", slog.String("error", err.Error()))
	s.setStatus(StatusError, err.Error())
}

// sleepOrDone waits for d, returning true if ctx was cancelled first so the
// caller can exit immediately instead of finishing the sleep.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-t.C:
		return false
	}
}

// runLoop implements the pipeline loop of the spec: fetch manifest, parse,
// select representations, ensure init segments, diff and process new
// segments per track, check for VOD completion, sleep, repeat.
func (s *Session) runLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		text, err := s.fetcher.Fetch(ctx, s.cfg.MPDURL, s.cfg.Headers)
		if err != nil {
			s.recordError(fmt.Errorf("fetch manifest: %w", err))
			if sleepOrDone(ctx, s.cfg.PollInterval) {
				return
			}
			continue
		}

		manifest, err := mpd.Parse(text, s.cfg.MPDURL)
		if err != nil {
			s.recordError(fmt.Errorf("parse manifest: %w", err))
			if sleepOrDone(ctx, s.cfg.PollInterval) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.live = manifest.Live
		if s.writer == nil {
			s.writer = hls.New(s.sandbox, manifest.Live, s.cfg.WindowSize)
		}
		writer := s.writer
		s.mu.Unlock()

		video, audio, err := selectRepresentations(manifest, s.cfg.RepresentationID)
		if err != nil {
			s.recordError(err)
			if sleepOrDone(ctx, s.cfg.PollInterval) {
				return
			}
			continue
		}

		s.mu.Lock()
		s.videoRep, s.audioRep = video, audio
		s.mu.Unlock()

		var trackNames []string
		if video != nil {
			trackNames = append(trackNames, trackNameVideo)
		}
		if audio != nil {
			trackNames = append(trackNames, trackNameAudio)
		}
		writer.PrepareTracks(trackNames...)

		anyProcessed := false
		if video != nil {
			if ok := s.processTrack(ctx, writer, trackNameVideo, hls.TrackVideo, *video); ok {
				anyProcessed = true
			}
		}
		if ctx.Err() != nil {
			return
		}
		if audio != nil {
			if ok := s.processTrack(ctx, writer, trackNameAudio, hls.TrackAudio, *audio); ok {
				anyProcessed = true
			}
		}

		if anyProcessed {
			s.mu.Lock()
			if s.status != StatusCompleted {
				s.status = StatusRunning
				s.errMsg = ""
			}
			s.mu.Unlock()
		}

		if !manifest.Live && s.allTracksComplete(video, audio) {
			if err := writer.Finalize(); err != nil {
				s.recordError(fmt.Errorf("finalize playlist: %w", err))
			} else {
				s.setStatus(StatusCompleted, "")
				return
			}
		}

		sleepFor := s.cfg.PollInterval
		if manifest.MinUpdatePeriod > 0 {
			sleepFor = manifest.MinUpdatePeriod
		}
		if sleepOrDone(ctx, sleepFor) {
			return
		}
	}
}

// processTrack ensures the track's variant and init segment exist, diffs
// and fetches/decrypts/writes new segments in ascending order, and updates
// the track's processed history. It reports whether at least one segment
// batch was successfully processed this poll (used to flag Running).
func (s *Session) processTrack(ctx context.Context, writer *hls.Writer, name string, kind hls.TrackType, rep mpd.Representation) bool {
	if err := writer.EnsureVariant(name, kind, rep.Bandwidth, rep.Codecs, rep.Width, rep.Height); err != nil {
		s.recordError(fmt.Errorf("%s: ensure variant: %w", name, err))
		return false
	}

	s.mu.Lock()
	ts, ok := s.tracks[name]
	if !ok {
		ts = &trackState{hist: newHistory(s.cfg.HistorySize)}
		s.tracks[name] = ts
	}
	ts.rep = rep
	initWritten := ts.initWritten
	s.mu.Unlock()

	if !initWritten && rep.InitURL != "" {
		data, err := s.fetchAndDecrypt(ctx, rep.InitURL, rep.DefaultKID)
		if err != nil {
			s.recordError(fmt.Errorf("%s: fetch init: %w", name, err))
			return false
		}
		if err := writer.WriteInit(name, data); err != nil {
			s.recordError(fmt.Errorf("%s: write init: %w", name, err))
			return false
		}
		s.mu.Lock()
		ts.initWritten = true
		s.mu.Unlock()
	}

	processed := false
	for _, seg := range rep.Segments {
		if ctx.Err() != nil {
			return processed
		}

		s.mu.RLock()
		isNew := !ts.hist.has(seg.Number) && (!ts.hasLastSeq || seg.Number > ts.lastSeq)
		s.mu.RUnlock()
		if !isNew {
			continue
		}

		data, err := s.fetchAndDecrypt(ctx, seg.URL, rep.DefaultKID)
		if err != nil {
			s.recordError(fmt.Errorf("%s: fetch segment %d: %w", name, seg.Number, err))
			break
		}
		if err := writer.AddSegment(name, seg.Number, seg.Duration, data); err != nil {
			s.recordError(fmt.Errorf("%s: write segment %d: %w", name, seg.Number, err))
			break
		}

		s.mu.Lock()
		ts.lastSeq = seg.Number
		ts.hasLastSeq = true
		ts.hist.record(seg.Number)
		s.mu.Unlock()
		processed = true
	}

	return processed
}

func (s *Session) fetchAndDecrypt(ctx context.Context, url, kid string) ([]byte, error) {
	raw, err := s.fetcher.Fetch(ctx, url, s.cfg.Headers)
	if err != nil {
		return nil, err
	}
	plain, err := s.decryptor.Decrypt(ctx, raw, kid)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}

// allTracksComplete reports whether every configured track has processed
// through its current manifest's highest segment number. A track that was
// never selected (nil) is vacuously complete.
func (s *Session) allTracksComplete(video, audio *mpd.Representation) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trackComplete(video, trackNameVideo) && s.trackComplete(audio, trackNameAudio)
}

func (s *Session) trackComplete(rep *mpd.Representation, name string) bool {
	if rep == nil {
		return true
	}
	ts, ok := s.tracks[name]
	if !ok {
		return len(rep.Segments) == 0
	}
	last := lastSegmentNumber(rep.Segments)
	if last < 0 {
		return true
	}
	return ts.hasLastSeq && ts.lastSeq >= last
}

func lastSegmentNumber(segs []mpd.Segment) int {
	max := -1
	for _, s := range segs {
		if s.Number > max {
			max = s.Number
		}
	}
	return max
}
