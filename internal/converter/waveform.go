package converter

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Waveform canvas geometry.
const (
	waveformWidth  = 1280
	waveformHeight = 720
)

var (
	waveformBackground = color.NRGBA{R: 18, G: 18, B: 22, A: 255}
	waveformForeground = color.NRGBA{R: 64, G: 200, B: 180, A: 255}
	waveformCenterline = color.NRGBA{R: 48, G: 48, B: 56, A: 255}
)

// renderWaveform draws the sampled waveform onto a fresh canvas. reveal in
// (0,1] limits how much of the track is drawn, which is what animates the
// frame sequence for audio-to-video visualization.
func renderWaveform(samples []float64, reveal float64) (*image.NRGBA, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to render")
	}
	if reveal <= 0 || reveal > 1 {
		return nil, fmt.Errorf("reveal must be in (0,1], got %f", reveal)
	}

	canvas := imaging.New(waveformWidth, waveformHeight, waveformBackground)
	mid := waveformHeight / 2

	for x := 0; x < waveformWidth; x++ {
		canvas.SetNRGBA(x, mid, waveformCenterline)
	}

	visible := int(float64(waveformWidth) * reveal)
	for x := 0; x < visible; x++ {
		idx := x * len(samples) / waveformWidth
		if idx >= len(samples) {
			idx = len(samples) - 1
		}

		amp := samples[idx]
		if amp < 0 {
			amp = -amp
		}
		half := int(amp * float64(mid-8))
		if half < 1 {
			half = 1
		}

		for y := mid - half; y <= mid+half; y++ {
			canvas.SetNRGBA(x, y, waveformForeground)
		}
	}

	return canvas, nil
}

// frameCountFor computes how many frames an audio visualization renders:
// one per frame interval, capped so the worst case never renders more than
// 60 seconds of motion regardless of source length.
func frameCountFor(durationSeconds float64, fps int) int {
	const maxFrames = 1800

	if fps <= 0 {
		fps = 30
	}
	frames := int(durationSeconds * float64(fps))
	if frames > maxFrames {
		return maxFrames
	}
	if frames < 1 {
		return 1
	}
	return frames
}
