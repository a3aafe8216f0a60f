package media

import (
	"bytes"
	"testing"
)

func jpegFrame(payload ...byte) []byte {
	frame := []byte{0xFF, 0xD8}
	frame = append(frame, payload...)
	frame = append(frame, 0xFF, 0xD9)
	return frame
}

func TestScanSingleFrame(t *testing.T) {
	s := NewMJPEGScanner()

	frame := jpegFrame(0x01, 0x02, 0x03)
	frames := s.Scan(frame)

	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], frame) {
		t.Errorf("expected frame %v, got %v", frame, frames[0])
	}
}

func TestScanFrameAcrossChunks(t *testing.T) {
	s := NewMJPEGScanner()

	frame := jpegFrame(0x01, 0x02, 0x03, 0x04, 0x05)

	// first half: no complete frame yet
	if got := s.Scan(frame[:4]); got != nil {
		t.Fatalf("expected nil on partial frame, got %d frames", len(got))
	}
	// second half completes it
	frames := s.Scan(frame[4:])
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], frame) {
		t.Errorf("expected %v, got %v", frame, frames[0])
	}
}

func TestScanEndMarkerSplitAcrossChunks(t *testing.T) {
	s := NewMJPEGScanner()

	frame := jpegFrame(0xAA)
	// split in the middle of the end marker
	if got := s.Scan(frame[:len(frame)-1]); got != nil {
		t.Fatalf("expected nil mid-marker, got %d frames", len(got))
	}
	frames := s.Scan(frame[len(frame)-1:])
	if len(frames) != 1 || !bytes.Equal(frames[0], frame) {
		t.Fatalf("split end marker not reassembled: %v", frames)
	}
}

func TestScanMultipleFramesInOneChunk(t *testing.T) {
	s := NewMJPEGScanner()

	f1 := jpegFrame(0x01)
	f2 := jpegFrame(0x02, 0x03)

	var stream []byte
	stream = append(stream, f1...)
	stream = append(stream, f2...)

	frames := s.Scan(stream)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], f1) {
		t.Errorf("frame 0: expected %v, got %v", f1, frames[0])
	}
	if !bytes.Equal(frames[1], f2) {
		t.Errorf("frame 1: expected %v, got %v", f2, frames[1])
	}
}

func TestScanDiscardsLeadingGarbage(t *testing.T) {
	s := NewMJPEGScanner()

	frame := jpegFrame(0x42)
	stream := append([]byte{0x00, 0x11, 0x22}, frame...)

	frames := s.Scan(stream)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if !bytes.Equal(frames[0], frame) {
		t.Errorf("expected %v, got %v", frame, frames[0])
	}
}

func TestScanEmptyChunk(t *testing.T) {
	s := NewMJPEGScanner()

	if got := s.Scan(nil); got != nil {
		t.Errorf("expected nil for empty chunk, got %v", got)
	}
	if got := s.Scan([]byte{}); got != nil {
		t.Errorf("expected nil for zero-length chunk, got %v", got)
	}
}

func TestScanEmittedFramesAreStable(t *testing.T) {
	s := NewMJPEGScanner()

	f1 := jpegFrame(0x01)
	frames := s.Scan(f1)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	saved := append([]byte(nil), frames[0]...)

	// later scans must not mutate previously returned frames
	s.Scan(jpegFrame(0xFE, 0xFD, 0xFC))
	if !bytes.Equal(frames[0], saved) {
		t.Error("emitted frame mutated by later scan")
	}
}
