package vad

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/matryer/is"

	"xiaozhi-go/media"
)

func pcmFrame(samples []int16) *media.AudioFrame {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return media.NewAudioFrame(data, media.AudioFormat16kHz16BitMono)
}

func silence(n int) *media.AudioFrame {
	return pcmFrame(make([]int16, n))
}

func loud(n int, amplitude int16) *media.AudioFrame {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = amplitude
		} else {
			samples[i] = -amplitude
		}
	}
	return pcmFrame(samples)
}

func TestEnergyDetectorEmitsSpeechStartThenEnd(t *testing.T) {
	is := is.New(t)
	d := NewEnergyDetector(2.0)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ev, err := d.Detect(ctx, silence(160))
		is.NoErr(err)
		is.True(ev == nil)
	}

	var startEvent *Event
	for i := 0; i < 5 && startEvent == nil; i++ {
		ev, err := d.Detect(ctx, loud(160, 20000))
		is.NoErr(err)
		if ev != nil {
			startEvent = ev
		}
	}
	is.True(startEvent != nil)
	is.Equal(startEvent.Type, EventSpeechStart)

	var endEvent *Event
	for i := 0; i < 60 && endEvent == nil; i++ {
		ev, err := d.Detect(ctx, silence(160))
		is.NoErr(err)
		if ev != nil {
			endEvent = ev
		}
	}
	is.True(endEvent != nil)
	is.Equal(endEvent.Type, EventSpeechEnd)
}
