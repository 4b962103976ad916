package session

import (
	"strings"
	"unicode"
)

// sentenceTerminators are the Chinese full-width punctuation marks that
// close a segment worth handing to TTS on their own, rather than waiting
// for the whole reply to finish streaming.
const sentenceTerminators = "。？！；："

// Segment is one sanitized, text-indexed slice of a streamed reply, ready
// for synthesis.
type Segment struct {
	TextIndex int
	Text      string
}

// segmenter accumulates streamed content and yields complete segments as
// soon as a sentence terminator is seen, splitting on the rightmost
// terminator in the buffer so a chunk containing multiple short sentences
// is not needlessly split into more TTS jobs than necessary.
type segmenter struct {
	buffer    strings.Builder
	nextIndex int
}

func newSegmenter() *segmenter {
	return &segmenter{nextIndex: 1}
}

// Feed appends delta to the buffer and returns any complete segments now
// available. The remainder (after the rightmost terminator) stays
// buffered for the next call.
func (s *segmenter) Feed(delta string) []Segment {
	s.buffer.WriteString(delta)
	text := s.buffer.String()

	cut := lastTerminatorIndex(text)
	if cut < 0 {
		return nil
	}

	complete := text[:cut]
	remainder := text[cut:]

	s.buffer.Reset()
	s.buffer.WriteString(remainder)

	return s.emit(complete)
}

// Flush returns a final segment for whatever remains buffered once the
// stream ends, even if it has no terminating punctuation.
func (s *segmenter) Flush() []Segment {
	text := s.buffer.String()
	s.buffer.Reset()
	if strings.TrimSpace(sanitize(text)) == "" {
		return nil
	}
	return s.emit(text)
}

func (s *segmenter) emit(text string) []Segment {
	sanitized := sanitize(text)
	if strings.TrimSpace(sanitized) == "" {
		return nil
	}
	seg := Segment{TextIndex: s.nextIndex, Text: sanitized}
	s.nextIndex++
	return []Segment{seg}
}

// lastTerminatorIndex returns the byte offset just after the rightmost
// sentence terminator in text, or -1 if none is present.
func lastTerminatorIndex(text string) int {
	last := -1
	for i, r := range text {
		if strings.ContainsRune(sentenceTerminators, r) {
			last = i + len(string(r))
		}
	}
	return last
}

// sanitize strips emoji anywhere in a segment, plus leading and trailing
// sentence terminators and whitespace, before it goes to TTS: the closing
// punctuation carries no audible information worth synthesizing, and a
// TTS engine asked to speak an emoji glyph either mispronounces it or
// skips it silently, so it is dropped before it ever reaches the engine.
// Terminators inside the segment are kept.
func sanitize(text string) string {
	text = strings.Map(func(r rune) rune {
		if isEmoji(r) {
			return -1
		}
		return r
	}, text)
	return strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(sentenceTerminators, r)
	})
}

// isEmoji reports whether r falls in one of the Unicode blocks used for
// emoji, emoji modifiers, and the punctuation that only appears alongside
// them (variation selectors, zero-width joiner, regional indicators).
func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // misc symbols/pictographs through extended-A
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x1F1E6 && r <= 0x1F1FF: // regional indicators (flag letters)
		return true
	case r == 0xFE0F: // variation selector-16 (emoji presentation)
		return true
	case r == 0x200D: // zero width joiner (emoji sequences)
		return true
	default:
		return false
	}
}
