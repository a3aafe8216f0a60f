package media

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows exactly one context per process, so it is shared across
// pipeline acquire/release cycles.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
)

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		opts := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			// ~100ms of 16-bit mono, low latency without glitching
			BufferSize: sampleRate / 5,
		}
		ctx, ready, err := oto.NewContext(opts)
		if err != nil {
			otoErr = fmt.Errorf("init playback context: %w", err)
			return
		}
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoErr
}

// speaker plays mono PCM16 through the default output device. Write
// appends decoded samples; the oto player pulls them via Read.
type speaker struct {
	ctx    *oto.Context
	player *oto.Player

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	playing bool
	closed  bool
}

func openSpeaker(sampleRate int) (*speaker, error) {
	ctx, err := sharedOtoContext(sampleRate)
	if err != nil {
		return nil, err
	}
	s := &speaker{
		ctx: ctx,
		buf: make([]byte, 0, sampleRate*4),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

func (s *speaker) Write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.buf = append(s.buf, data...)

	// start playback on first write
	if !s.playing {
		s.playing = true
		s.player = s.ctx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
}

// Read implements io.Reader for the oto player. It feeds silence once the
// speaker is closed so the device drains gracefully.
func (s *speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Flush drops buffered audio so a replaced remote track starts clean.
func (s *speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	s.mu.Unlock()
}

func (s *speaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cond.Broadcast()
	player := s.player
	s.player = nil
	s.mu.Unlock()

	if player != nil {
		player.Close()
	}
}
