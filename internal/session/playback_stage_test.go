package session

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"

	"xiaozhi-go/media"
)

func TestPlaybackStageSendsFramesThenStop(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan PlaybackItem, 2)
	in <- PlaybackItem{
		TextIndex: 1,
		Text:      "你好",
		Frames:    []media.OpusFrame{{Data: []byte("a"), Duration: time.Millisecond}},
	}
	close(in)

	speak := newSpeakStatus()
	sender := &fakeSender{}
	stage := NewPlaybackStage(sender, speak, "test-session", in)

	stage.Run(ctx)

	frames := sender.jsonFrames()
	is.True(len(frames) >= 2) // at least a sentence_start and a stop frame

	last := frames[len(frames)-1].(TTSFrame)
	is.Equal(last.State, "stop")
}

func TestPlaybackStageSkipsAbortedSegment(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan PlaybackItem, 1)
	in <- PlaybackItem{
		TextIndex: 1,
		Text:      "你好",
		Frames:    []media.OpusFrame{{Data: []byte("a"), Duration: time.Millisecond}},
	}
	close(in)

	speak := newSpeakStatus()
	speak.Abort()
	sender := &fakeSender{}
	stage := NewPlaybackStage(sender, speak, "test-session", in)

	stage.Run(ctx)

	is.Equal(len(sender.binary), 0) // aborted segment never reaches the wire
}
