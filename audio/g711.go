package audio

// G.711 µ-law, the PCMU payload of the peer media track.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

func muLawEncodeSample(sample int16) byte {
	s := int32(sample)
	var sign int32
	if s < 0 {
		sign = 0x80
		s = -s
	}
	if s > muLawClip {
		s = muLawClip
	}
	s += muLawBias

	exponent := int32(7)
	for mask := int32(0x4000); s&mask == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := (s >> (exponent + 3)) & 0x0F

	return ^byte(sign | exponent<<4 | mantissa)
}

func muLawDecodeSample(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exponent := int32(u>>4) & 0x07
	mantissa := int32(u) & 0x0F

	s := ((mantissa << 3) + muLawBias) << exponent
	s -= muLawBias
	if sign != 0 {
		s = -s
	}
	return int16(s)
}

// EncodeMuLaw compresses PCM16 samples to one byte per sample.
func EncodeMuLaw(pcm []int16) []byte {
	out := make([]byte, len(pcm))
	for i, s := range pcm {
		out[i] = muLawEncodeSample(s)
	}
	return out
}

// DecodeMuLaw expands µ-law bytes to PCM16.
func DecodeMuLaw(data []byte) []int16 {
	out := make([]int16, len(data))
	for i, u := range data {
		out[i] = muLawDecodeSample(u)
	}
	return out
}
