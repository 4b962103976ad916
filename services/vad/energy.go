package vad

import (
	"context"
	"encoding/binary"
	"math"

	"xiaozhi-go/media"
)

// EnergyDetector is a simple reference Detector: speech is declared once
// frame energy crosses a multiple of the rolling average, silence once it
// falls back below. It exists so the module runs end-to-end without a
// bundled neural VAD model.
type EnergyDetector struct {
	*BaseDetector

	threshold   float64
	history     []float64
	historyCap  int
	speaking    bool
}

// NewEnergyDetector creates an energy-threshold detector. threshold is the
// multiple of the rolling average energy that counts as speech (2.0 is a
// reasonable default for 16-bit PCM).
func NewEnergyDetector(threshold float64) *EnergyDetector {
	if threshold <= 0 {
		threshold = 2.0
	}
	return &EnergyDetector{
		BaseDetector: NewBaseDetector("energy", "1.0.0"),
		threshold:    threshold,
		historyCap:   50,
	}
}

// Detect computes the frame's RMS energy, compares it against a rolling
// average, and emits a transition event on a speaking/silent edge.
func (d *EnergyDetector) Detect(ctx context.Context, frame *media.AudioFrame) (*Event, error) {
	energy := rmsEnergy(frame.Data)

	avg := d.averageEnergy()
	d.pushHistory(energy)

	isSpeech := avg > 0 && energy > avg*d.threshold

	switch {
	case isSpeech && !d.speaking:
		d.speaking = true
		return &Event{Type: EventSpeechStart, Confidence: confidenceFor(energy, avg)}, nil
	case !isSpeech && d.speaking:
		d.speaking = false
		return &Event{Type: EventSpeechEnd, Confidence: 1 - confidenceFor(energy, avg)}, nil
	default:
		return nil, nil
	}
}

func (d *EnergyDetector) averageEnergy() float64 {
	if len(d.history) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range d.history {
		sum += v
	}
	return sum / float64(len(d.history))
}

func (d *EnergyDetector) pushHistory(energy float64) {
	d.history = append(d.history, energy)
	if len(d.history) > d.historyCap {
		d.history = d.history[len(d.history)-d.historyCap:]
	}
}

func rmsEnergy(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i : i+2]))
		sumSquares += float64(sample) * float64(sample)
		count++
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sumSquares / float64(count))
}

func confidenceFor(energy, avg float64) float64 {
	if avg == 0 {
		return 0.5
	}
	ratio := energy / avg
	confidence := 1 / (1 + math.Exp(-(ratio-1)))
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
