package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestTTSStageDeliversInSubmissionOrder(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := newFakeTTS()
	engine.delayFor = "第一句" // the first segment is the slow one
	engine.delayTime = 30 * time.Millisecond

	speak := newSpeakStatus()
	stage := NewTTSStage(ctx, "test-session", engine, speak, DefaultTTSTimeout)

	stage.Submit(ctx, Segment{TextIndex: 1, Text: "第一句"})
	stage.Submit(ctx, Segment{TextIndex: 2, Text: "第二句"})

	first := <-stage.Out
	second := <-stage.Out

	is.Equal(first.TextIndex, 1) // delivered in submission order, not completion order
	is.Equal(second.TextIndex, 2)
}

func TestTTSStageTimeoutYieldsFailedSegment(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := newFakeTTS()
	engine.delayFor = "慢句子"
	engine.delayTime = 50 * time.Millisecond

	speak := newSpeakStatus()
	stage := NewTTSStage(ctx, "test-session", engine, speak, 10*time.Millisecond)

	stage.Submit(ctx, Segment{TextIndex: 1, Text: "慢句子"})

	item := <-stage.Out
	is.True(item.Err != nil)
	is.True(errors.Is(item.Err, ErrTTSTimeout))
}

func TestTTSStageSkipsSynthesisWhenAlreadyAborted(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := newFakeTTS()
	speak := newSpeakStatus()
	speak.Abort()

	stage := NewTTSStage(ctx, "test-session", engine, speak, DefaultTTSTimeout)
	stage.Submit(ctx, Segment{TextIndex: 1, Text: "你好"})

	item := <-stage.Out
	is.True(item.Err != nil)
}
