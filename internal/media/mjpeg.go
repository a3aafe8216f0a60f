package media

import "bytes"

// JPEG stream markers.
var (
	jpegSOI = []byte{0xFF, 0xD8} // start of image
	jpegEOI = []byte{0xFF, 0xD9} // end of image
)

// maxPendingBytes caps the reassembly buffer so a corrupt stream cannot
// grow it without bound.
const maxPendingBytes = 8 << 20

// MJPEGScanner extracts complete JPEG images from a concatenated MJPEG
// byte stream. It maintains instance state for frames that span chunk
// boundaries, so each stream needs its own scanner.
type MJPEGScanner struct {
	pending []byte
}

// NewMJPEGScanner creates a scanner with its own reassembly buffer.
func NewMJPEGScanner() *MJPEGScanner {
	return &MJPEGScanner{}
}

// Scan consumes the next chunk of the stream and returns any complete
// frames it finished. Bytes before the first start marker are discarded.
func (s *MJPEGScanner) Scan(chunk []byte) [][]byte {
	s.pending = append(s.pending, chunk...)

	var frames [][]byte
	for {
		start := bytes.Index(s.pending, jpegSOI)
		if start < 0 {
			// keep one byte in case the chunk ended mid-marker
			if n := len(s.pending); n > 1 {
				s.pending = s.pending[n-1:]
			}
			break
		}
		if start > 0 {
			s.pending = s.pending[start:]
		}

		end := bytes.Index(s.pending[2:], jpegEOI)
		if end < 0 {
			break
		}
		frameLen := 2 + end + 2

		frame := make([]byte, frameLen)
		copy(frame, s.pending[:frameLen])
		frames = append(frames, frame)
		s.pending = s.pending[frameLen:]
	}

	if len(s.pending) > maxPendingBytes {
		s.pending = nil
	}
	return frames
}
