package audio

import "math"

// Resample converts samples between rates with linear interpolation.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(dstRate) / float64(srcRate)
	sampleCount := len(samples)
	newSampleCount := int(float64(sampleCount) * ratio)

	resampled := make([]float32, newSampleCount)

	for i := 0; i < newSampleCount; i++ {
		srcIndex := float64(i) / ratio
		i0 := int(math.Floor(srcIndex))
		i1 := min(sampleCount-1, i0+1)
		frac := float32(srcIndex - float64(i0))

		resampled[i] = samples[i0]*(1-frac) + samples[i1]*frac
	}

	return resampled
}

// ResampleChunk converts a chunk to dstRate.
func ResampleChunk(c Chunk, dstRate int) Chunk {
	if c.SampleRate == dstRate {
		return c
	}
	return NewChunk(Resample(c.Samples, c.SampleRate, dstRate), dstRate)
}
