package main

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	// wheelZoomScale is the zoom applied by one wheel notch, in zoom steps.
	wheelZoomScale = 0.5

	wheelLineHeight = 16
	wheelPageHeight = 800

	// wheelWarmup events are needed before the wheel kind is trusted.
	wheelWarmup = 4
	// notchRepeat identical magnitudes in a row mark a notched wheel.
	notchRepeat = 4

	smoothGain    = 250
	initialPeak   = 10
	peakDecay     = 0.95
	maxRateWindow = 100 * time.Millisecond
)

// DOM WheelEvent.deltaMode values.
const (
	wheelModePixel = 0
	wheelModeLine  = 1
	wheelModePage  = 2
)

// wheelPixels converts a wheel delta to pixels.
func wheelPixels(d float64, mode int) float64 {
	switch mode {
	case wheelModeLine:
		return d * wheelLineHeight
	case wheelModePage:
		return d * wheelPageHeight
	default:
		return d
	}
}

type wheelKind int

const (
	wheelUnknown wheelKind = iota
	wheelNotched
	wheelSmooth
)

// wheelZoom turns wheel events into zoom steps. A notched mouse wheel zooms
// by wheelZoomScale per notch whatever delta the browser reports for it.
// Touchpad deltas are scaled by their recent peak rate so a full swipe
// zooms about as far as a few notches.
type wheelZoom struct {
	clock clock.Clock

	events int
	kind   wheelKind

	lastAbs float64
	repeats int

	peak    float64
	last    time.Time
	pending float64
}

func (z *wheelZoom) warm() bool {
	return z.events > wheelWarmup
}

// Steps converts a WheelEvent delta to zoom steps. Positive zooms out.
func (z *wheelZoom) Steps(deltaY float64, mode int) float64 {
	warm := z.warm()
	if !warm {
		z.events++
	}
	d := wheelPixels(deltaY, mode)
	if d == 0 {
		return 0
	}
	z.classify(math.Abs(d))
	z.track(d)

	if !warm || z.kind == wheelNotched {
		return math.Copysign(wheelZoomScale, d)
	}
	return d * smoothGain / z.peak * wheelZoomScale
}

// classify updates the wheel kind. The peak rate restarts when the kind
// changes.
func (z *wheelZoom) classify(abs float64) {
	if abs == z.lastAbs {
		z.repeats++
	} else {
		z.repeats = 0
	}
	z.lastAbs = abs

	kind := wheelSmooth
	if z.repeats > notchRepeat {
		kind = wheelNotched
	}
	if kind != z.kind {
		z.peak = initialPeak
	}
	z.kind = kind
}

// track folds d into the decaying peak of the delta rate. Events sharing a
// timestamp are summed into one sample.
func (z *wheelZoom) track(d float64) {
	if z.clock == nil {
		z.clock = clock.New()
	}
	now := z.clock.Now()
	z.pending += d
	if dt := now.Sub(z.last); dt > 0 {
		if dt > maxRateWindow {
			dt = maxRateWindow
		}
		rate := math.Abs(z.pending / dt.Seconds())
		z.pending = 0
		z.last = now

		if z.peak < rate {
			// halfway, to suppress spikes
			z.peak = (z.peak + rate) / 2
		}
		z.peak *= peakDecay
	}
	if z.peak < 1 {
		z.peak = 1
	}
}
