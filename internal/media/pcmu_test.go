package media

import (
	"encoding/binary"
	"testing"
)

func TestMuLawSilence(t *testing.T) {
	if got := muLawEncodeSample(0); got != 0xFF {
		t.Errorf("encode(0) = %#x, want 0xff", got)
	}
	if got := muLawDecodeSample(0xFF); got != 0 {
		t.Errorf("decode(0xff) = %d, want 0", got)
	}
}

func TestMuLawExtremes(t *testing.T) {
	if got := muLawEncodeSample(32635); got != 0x80 {
		t.Errorf("encode(max) = %#x, want 0x80", got)
	}
	if got := muLawDecodeSample(0x80); got != 32124 {
		t.Errorf("decode(0x80) = %d, want 32124", got)
	}
	if got := muLawDecodeSample(0x00); got != -32124 {
		t.Errorf("decode(0x00) = %d, want -32124", got)
	}
	// clipping keeps full-scale input in range
	if got := muLawEncodeSample(-32768); got != 0x00 {
		t.Errorf("encode(min) = %#x, want 0x00", got)
	}
}

func TestMuLawRoundTripError(t *testing.T) {
	for _, s := range []int16{1, -1, 40, -40, 100, 500, -500, 1000, 4000, -4000, 8000, 16000, -16000, 30000} {
		rt := muLawDecodeSample(muLawEncodeSample(s))
		diff := int32(rt) - int32(s)
		if diff < 0 {
			diff = -diff
		}
		// quantization step in the top segment is 1024
		if diff > 1024 {
			t.Errorf("round trip %d -> %d, error %d", s, rt, diff)
		}
	}
}

func TestMuLawFrameSizes(t *testing.T) {
	pcm := make([]byte, 320) // one 20ms frame at 8kHz
	for i := 0; i < 160; i++ {
		binary.LittleEndian.PutUint16(pcm[2*i:], uint16(int16(i*100-8000)))
	}

	ulaw := MuLawEncode(pcm)
	if len(ulaw) != 160 {
		t.Fatalf("encoded frame = %d bytes, want 160", len(ulaw))
	}

	back := MuLawDecode(ulaw)
	if len(back) != 320 {
		t.Fatalf("decoded frame = %d bytes, want 320", len(back))
	}
}

func TestMuLawDecodeMonotonic(t *testing.T) {
	// decoded magnitudes must not decrease as code magnitude grows
	prev := int16(0)
	for code := 0xFF; code >= 0x80; code-- { // positive half
		v := muLawDecodeSample(byte(code))
		if v < prev {
			t.Fatalf("decode(%#x) = %d < decode(%#x) = %d", code, v, code+1, prev)
		}
		prev = v
	}
}
