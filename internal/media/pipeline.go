package media

import (
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/mahanpro/NeuroLens2/internal/domain"
)

const (
	defaultSampleRate = 8000
	frameMillis       = 20
)

type audioIn interface {
	Read(p []byte) (int, error)
	Close()
}

type audioOut interface {
	Write(data []byte)
	Flush()
	Close()
}

type frameSource interface {
	Frame() []byte
	Close()
}

// Config selects the capture devices.
type Config struct {
	SampleRate int
	CameraPath string
}

// Pipeline owns the local capture devices and remote playback. It holds
// nothing between Acquire and Release; Release leaves zero devices open.
type Pipeline struct {
	sampleRate int
	frameBytes int
	cameraPath string

	openMic     func(sampleRate int) (audioIn, error)
	openSpeaker func(sampleRate int) (audioOut, error)
	openCamera  func(path string) (frameSource, error)

	mu       sync.Mutex
	acquired bool
	mic      audioIn
	speaker  audioOut
	camera   frameSource

	renderGen atomic.Int64
	released  atomic.Bool
}

// New creates a pipeline for the given devices.
func New(cfg Config) *Pipeline {
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = defaultSampleRate
	}
	return &Pipeline{
		sampleRate: sampleRate,
		frameBytes: sampleRate * 2 * frameMillis / 1000,
		cameraPath: cfg.CameraPath,
		openMic: func(rate int) (audioIn, error) {
			return openMicrophone(rate)
		},
		openSpeaker: func(rate int) (audioOut, error) {
			return openSpeaker(rate)
		},
		openCamera: func(path string) (frameSource, error) {
			return openCamera(path)
		},
	}
}

// Acquire opens the microphone, playback device, and, when wantVideo is
// set, the camera. Any device failure releases everything already opened
// so no track outlives a failed acquisition.
func (p *Pipeline) Acquire(wantVideo bool) error {
	const op = "media.acquire"

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.acquired {
		return domain.Errorf(domain.KindMediaAccess, op, "pipeline already acquired")
	}

	mic, err := p.openMic(p.sampleRate)
	if err != nil {
		return domain.E(domain.KindMediaAccess, op, "microphone", err)
	}

	speaker, err := p.openSpeaker(p.sampleRate)
	if err != nil {
		mic.Close()
		return domain.E(domain.KindMediaAccess, op, "playback", err)
	}

	var cam frameSource
	if wantVideo {
		cam, err = p.openCamera(p.cameraPath)
		if err != nil {
			speaker.Close()
			mic.Close()
			return domain.E(domain.KindMediaAccess, op, "camera", err)
		}
	}

	p.mic = mic
	p.speaker = speaker
	p.camera = cam
	p.acquired = true
	p.released.Store(false)

	log.Printf("[media] acquired devices (video=%v)", wantVideo)
	return nil
}

// Microphone returns the local audio source. Valid between Acquire and
// Release.
func (p *Pipeline) Microphone() domain.AudioSource {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &micSource{mic: p.mic, frameBytes: p.frameBytes}
}

// HasVideo reports whether a camera is currently acquired.
func (p *Pipeline) HasVideo() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.camera != nil
}

// RenderRemote routes one remote track to the playback device. A later
// call replaces the previous track; pending audio from the old track is
// dropped. It never blocks the caller.
func (p *Pipeline) RenderRemote(track domain.TrackReader) {
	p.mu.Lock()
	speaker := p.speaker
	p.mu.Unlock()
	if speaker == nil || p.released.Load() {
		return
	}

	gen := p.renderGen.Add(1)
	speaker.Flush()
	go p.renderLoop(track, speaker, gen)
}

func (p *Pipeline) renderLoop(track domain.TrackReader, speaker audioOut, gen int64) {
	for {
		payload, err := track.ReadPayload()
		if err != nil {
			return
		}
		if p.released.Load() || p.renderGen.Load() != gen {
			return
		}
		speaker.Write(MuLawDecode(payload))
	}
}

// CaptureFrame returns the most recent camera frame, bounded for
// transmission.
func (p *Pipeline) CaptureFrame() (domain.EncodedImage, error) {
	const op = "media.capture"

	p.mu.Lock()
	cam := p.camera
	p.mu.Unlock()

	if cam == nil {
		return domain.EncodedImage{}, domain.Errorf(domain.KindCapture, op, "no video track acquired")
	}
	raw := cam.Frame()
	if raw == nil {
		return domain.EncodedImage{}, domain.Errorf(domain.KindCapture, op, "no frame available yet")
	}

	frame, err := boundFrame(raw)
	if err != nil {
		return domain.EncodedImage{}, domain.E(domain.KindCapture, op, "bound frame", err)
	}
	return frame, nil
}

// Release stops every device. It is idempotent and safe from teardown
// paths.
func (p *Pipeline) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.acquired {
		return
	}
	p.acquired = false
	p.released.Store(true)
	p.renderGen.Add(1)

	if p.mic != nil {
		p.mic.Close()
		p.mic = nil
	}
	if p.camera != nil {
		p.camera.Close()
		p.camera = nil
	}
	if p.speaker != nil {
		p.speaker.Close()
		p.speaker = nil
	}

	log.Printf("[media] released devices")
}

// micSource reads full capture frames and compresses them for the track.
type micSource struct {
	mic        audioIn
	frameBytes int
}

func (s *micSource) ReadFrame() ([]byte, error) {
	if s.mic == nil {
		return nil, io.EOF
	}
	pcm := make([]byte, s.frameBytes)
	if _, err := io.ReadFull(s.mic, pcm); err != nil {
		return nil, err
	}
	return MuLawEncode(pcm), nil
}
