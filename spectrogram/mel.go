package spectrogram

import (
	"math"
)

const (
	melBreakFrequencyHertz = 700.0
	melHighFrequencyQ      = 1127.0
)

func melToHz(value float64) float64 {
	return melBreakFrequencyHertz * (math.Exp(value/melHighFrequencyQ) - 1.0)
}

func hzToMel(value float64) float64 {
	return melHighFrequencyQ * math.Log(1.0+(value/melBreakFrequencyHertz))
}

// melFilter Triangular filter over linear bins [first; first+len(weights))
type melFilter struct {
	first   int
	weights []float64
}

// melFilterbank Builds NumMels triangular filters evenly spaced on mel scale between MelFmin and MelFmax
func melFilterbank(conf Config) []melFilter {
	bins := conf.FrameLen/2 + 1
	binHz := float64(conf.SampleRate) / float64(conf.FrameLen)
	fmax := math.Min(conf.MelFmax, float64(conf.SampleRate)/2)
	melMin, melMax := hzToMel(conf.MelFmin), hzToMel(fmax)
	// NumMels+2 edges: every filter spans from previous edge to next one
	edges := make([]float64, conf.NumMels+2)
	for i := range edges {
		edges[i] = melToHz(melMin + (melMax-melMin)*float64(i)/float64(conf.NumMels+1))
	}
	filters := make([]melFilter, conf.NumMels)
	for m := range filters {
		lo, center, hi := edges[m], edges[m+1], edges[m+2]
		first := int(math.Floor(lo / binHz))
		last := int(math.Ceil(hi / binHz))
		if last >= bins {
			last = bins - 1
		}
		if first > last {
			first = last
		}
		weights := make([]float64, last-first+1)
		nonZero := false
		for k := first; k <= last; k++ {
			f := float64(k) * binHz
			var w float64
			switch {
			case f >= lo && f <= center && center > lo:
				w = (f - lo) / (center - lo)
			case f > center && f <= hi && hi > center:
				w = (hi - f) / (hi - center)
			}
			weights[k-first] = w
			if w > 0 {
				nonZero = true
			}
		}
		// Narrow low-frequency filters could fall between bins: take the nearest bin then
		if !nonZero {
			nearest := int(math.Round(center / binHz))
			if nearest >= bins {
				nearest = bins - 1
			}
			first, weights = nearest, []float64{1}
		}
		filters[m] = melFilter{first: first, weights: weights}
	}
	return filters
}
