package mpd

// maxUnboundedRepeat bounds an r=-1 ("repeat to end of period") S element in
// live manifests, since the true end time depends on wall-clock progress the
// parser has no access to. VOD manifests treat r=-1 as a single occurrence
// (r=0) since the period end is already implied by the next S or the period
// duration.
const maxUnboundedRepeat = 30

// timelineSegment is one expanded entry from a SegmentTimeline, in the
// template's native timescale units.
type timelineSegment struct {
	number int
	time   int64
	dur    int64
}

// expandTimeline walks <S t d r> elements, maintaining a running
// presentation time that resets whenever an element carries an explicit t
// attribute and otherwise continues from the previous element's end. r
// defaults to 0 (one occurrence); r=-1 repeats per maxUnboundedRepeat when
// live, or once when not.
func expandTimeline(tl *xmlSegmentTimeline, startNumber int, live bool) []timelineSegment {
	if tl == nil {
		return nil
	}

	var out []timelineSegment
	number := startNumber
	var currentTime int64

	for _, s := range tl.S {
		if s.T != nil {
			currentTime = *s.T
		}

		repeat := s.R
		switch {
		case repeat < 0 && live:
			repeat = maxUnboundedRepeat - 1
		case repeat < 0:
			repeat = 0
		}

		for i := 0; i <= repeat; i++ {
			out = append(out, timelineSegment{
				number: number,
				time:   currentTime,
				dur:    s.D,
			})
			number++
			currentTime += s.D
		}
	}

	return out
}
