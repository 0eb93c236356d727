package audio

import "math"

const (
	vadFrameMs = 20
	// RMS of a 16-bit frame below which the frame counts as silence (about -46 dBFS).
	silenceRMS = 160.0
)

// TrimSilence drops silent stretches that last at least minSilenceMs, keeping
// vadFrameMs of padding on each side of retained speech. Input that is silent
// throughout is returned unchanged so the recognizer still sees it.
func TrimSilence(pcm []int16, sampleRate, minSilenceMs int) []int16 {
	frame := sampleRate * vadFrameMs / 1000
	if frame <= 0 || len(pcm) < frame || minSilenceMs <= 0 {
		return pcm
	}
	minFrames := (minSilenceMs + vadFrameMs - 1) / vadFrameMs

	nFrames := (len(pcm) + frame - 1) / frame
	voiced := make([]bool, nFrames)
	anyVoiced := false
	for f := 0; f < nFrames; f++ {
		start := f * frame
		end := min(start+frame, len(pcm))
		voiced[f] = frameRMS(pcm[start:end]) >= silenceRMS
		anyVoiced = anyVoiced || voiced[f]
	}
	if !anyVoiced {
		return pcm
	}

	keep := make([]bool, nFrames)
	for f := 0; f < nFrames; {
		if voiced[f] {
			keep[f] = true
			f++
			continue
		}
		run := f
		for run < nFrames && !voiced[run] {
			run++
		}
		if run-f < minFrames {
			for i := f; i < run; i++ {
				keep[i] = true
			}
		} else {
			// pad the edges of the dropped stretch
			if f > 0 {
				keep[f] = true
			}
			if run < nFrames {
				keep[run-1] = true
			}
		}
		f = run
	}

	out := make([]int16, 0, len(pcm))
	for f := 0; f < nFrames; f++ {
		if keep[f] {
			start := f * frame
			out = append(out, pcm[start:min(start+frame, len(pcm))]...)
		}
	}
	return out
}

func frameRMS(frame []int16) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(frame)))
}
