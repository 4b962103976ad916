package session

import "sync/atomic"

// speakStatus tracks which text indices are currently being spoken and
// whether the client has asked to interrupt. All fields are accessed from
// the inbound read loop (barge-in signal), the TTS stage, and the
// playback stage concurrently, hence atomics rather than a mutex — these
// are simple scalars checked on every frame, where lock contention would
// show up as audible latency.
type speakStatus struct {
	firstTextIndex int64
	lastTextIndex  int64
	clientAbort    atomic.Bool
}

func newSpeakStatus() *speakStatus {
	return &speakStatus{firstTextIndex: -1, lastTextIndex: -1}
}

// BeginReply resets the index range for a new reply, clearing any
// barge-in flag left over from the previous turn.
func (s *speakStatus) BeginReply() {
	atomic.StoreInt64(&s.firstTextIndex, -1)
	atomic.StoreInt64(&s.lastTextIndex, -1)
	s.clientAbort.Store(false)
}

// ObserveSegment records a segment's text index as part of the active
// reply's range.
func (s *speakStatus) ObserveSegment(textIndex int) {
	idx := int64(textIndex)
	for {
		first := atomic.LoadInt64(&s.firstTextIndex)
		if first != -1 && first <= idx {
			break
		}
		if atomic.CompareAndSwapInt64(&s.firstTextIndex, first, idx) {
			break
		}
	}
	for {
		last := atomic.LoadInt64(&s.lastTextIndex)
		if last >= idx {
			break
		}
		if atomic.CompareAndSwapInt64(&s.lastTextIndex, last, idx) {
			break
		}
	}
}

// Range returns the first and last text index observed for the active
// reply.
func (s *speakStatus) Range() (first, last int) {
	return int(atomic.LoadInt64(&s.firstTextIndex)), int(atomic.LoadInt64(&s.lastTextIndex))
}

// Abort signals barge-in: the client started speaking again while the
// assistant was still talking. TTS jobs and playback check this between
// steps and stop early without treating it as an error.
func (s *speakStatus) Abort() {
	s.clientAbort.Store(true)
}

// Aborted reports whether the active reply has been interrupted.
func (s *speakStatus) Aborted() bool {
	return s.clientAbort.Load()
}
