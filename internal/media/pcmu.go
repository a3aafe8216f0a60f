package media

import "encoding/binary"

// G.711 mu-law transcoding for the PCMU audio path. The realtime peer
// session runs narrowband 8 kHz mono; each RTP payload byte maps to one
// 16-bit linear sample.

const (
	muLawBias = 0x84
	muLawClip = 32635
)

func muLawEncodeSample(sample int16) byte {
	v := int32(sample)
	var sign byte
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > muLawClip {
		v = muLawClip
	}
	v += muLawBias

	exp := int32(7)
	for mask := int32(0x4000); exp > 0 && v&mask == 0; mask >>= 1 {
		exp--
	}
	mantissa := byte((v >> uint(exp+3)) & 0x0F)

	return ^(sign | byte(exp)<<4 | mantissa)
}

func muLawDecodeSample(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mantissa := u & 0x0F

	v := ((int32(mantissa) << 3) + muLawBias) << exp
	v -= muLawBias
	if sign != 0 {
		v = -v
	}
	return int16(v)
}

// MuLawEncode compresses little-endian PCM16 into mu-law, one byte per
// sample. Odd trailing bytes are dropped.
func MuLawEncode(pcm []byte) []byte {
	out := make([]byte, len(pcm)/2)
	for i := range out {
		s := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		out[i] = muLawEncodeSample(s)
	}
	return out
}

// MuLawDecode expands mu-law into little-endian PCM16.
func MuLawDecode(ulaw []byte) []byte {
	out := make([]byte, len(ulaw)*2)
	for i, u := range ulaw {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(muLawDecodeSample(u)))
	}
	return out
}
