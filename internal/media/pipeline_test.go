package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"
	"time"

	"github.com/mahanpro/NeuroLens2/internal/domain"
)

type fakeMic struct {
	data   []byte
	closed bool
}

func (m *fakeMic) Read(p []byte) (int, error) {
	if len(m.data) == 0 {
		return 0, io.EOF
	}
	n := copy(p, m.data)
	m.data = m.data[n:]
	return n, nil
}

func (m *fakeMic) Close() { m.closed = true }

type fakeSpeaker struct {
	writes  chan []byte
	flushes int
	closed  bool
}

func newFakeSpeaker() *fakeSpeaker {
	return &fakeSpeaker{writes: make(chan []byte, 16)}
}

func (s *fakeSpeaker) Write(data []byte) { s.writes <- data }
func (s *fakeSpeaker) Flush()            { s.flushes++ }
func (s *fakeSpeaker) Close()            { s.closed = true }

type fakeCamera struct {
	frame  []byte
	closed bool
}

func (c *fakeCamera) Frame() []byte { return c.frame }
func (c *fakeCamera) Close()        { c.closed = true }

type fakeTrack struct {
	payloads chan []byte
}

func (t *fakeTrack) ReadPayload() ([]byte, error) {
	p, ok := <-t.payloads
	if !ok {
		return nil, io.EOF
	}
	return p, nil
}

func testPipeline(mic *fakeMic, spk *fakeSpeaker, cam *fakeCamera, camErr error) *Pipeline {
	p := New(Config{CameraPath: "/dev/video9"})
	p.openMic = func(int) (audioIn, error) { return mic, nil }
	p.openSpeaker = func(int) (audioOut, error) { return spk, nil }
	p.openCamera = func(string) (frameSource, error) {
		if camErr != nil {
			return nil, camErr
		}
		return cam, nil
	}
	return p
}

func TestAcquireCameraDeniedReleasesEverything(t *testing.T) {
	mic := &fakeMic{}
	spk := newFakeSpeaker()
	p := testPipeline(mic, spk, nil, errors.New("permission denied"))

	err := p.Acquire(true)
	if !domain.IsKind(err, domain.KindMediaAccess) {
		t.Fatalf("kind = %q, want media_access: %v", domain.KindOf(err), err)
	}
	if !mic.closed || !spk.closed {
		t.Errorf("devices left open after failed acquire: mic=%v speaker=%v", mic.closed, spk.closed)
	}
	if p.HasVideo() {
		t.Error("video reported active after failure")
	}
}

func TestAcquireMicDenied(t *testing.T) {
	p := New(Config{})
	p.openMic = func(int) (audioIn, error) { return nil, errors.New("no capture device") }

	err := p.Acquire(false)
	if !domain.IsKind(err, domain.KindMediaAccess) {
		t.Fatalf("kind = %q, want media_access: %v", domain.KindOf(err), err)
	}
}

func TestAcquireWithoutVideoSkipsCamera(t *testing.T) {
	mic := &fakeMic{}
	spk := newFakeSpeaker()
	p := testPipeline(mic, spk, nil, errors.New("camera should not be opened"))

	if err := p.Acquire(false); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if p.HasVideo() {
		t.Error("HasVideo = true without camera")
	}
	p.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	mic := &fakeMic{}
	spk := newFakeSpeaker()
	cam := &fakeCamera{}
	p := testPipeline(mic, spk, cam, nil)

	if err := p.Acquire(true); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release()
	p.Release()

	if !mic.closed || !spk.closed || !cam.closed {
		t.Errorf("devices not closed: mic=%v speaker=%v camera=%v", mic.closed, spk.closed, cam.closed)
	}
	if p.HasVideo() {
		t.Error("video still active after release")
	}
}

func TestCaptureFrameErrors(t *testing.T) {
	mic := &fakeMic{}
	spk := newFakeSpeaker()
	p := testPipeline(mic, spk, nil, nil)
	p.openCamera = func(string) (frameSource, error) { return &fakeCamera{}, nil }

	// no video acquired
	if err := p.Acquire(false); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := p.CaptureFrame(); !domain.IsKind(err, domain.KindCapture) {
		t.Errorf("kind = %q, want capture: %v", domain.KindOf(err), err)
	}
	p.Release()

	// video acquired but no frame arrived yet
	if err := p.Acquire(true); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := p.CaptureFrame(); !domain.IsKind(err, domain.KindCapture) {
		t.Errorf("kind = %q, want capture: %v", domain.KindOf(err), err)
	}
	p.Release()
}

func TestCaptureFrameReturnsBoundedImage(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode test frame: %v", err)
	}

	mic := &fakeMic{}
	spk := newFakeSpeaker()
	cam := &fakeCamera{frame: buf.Bytes()}
	p := testPipeline(mic, spk, cam, nil)

	if err := p.Acquire(true); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer p.Release()

	frame, err := p.CaptureFrame()
	if err != nil {
		t.Fatalf("CaptureFrame: %v", err)
	}
	if frame.MIMEType != "image/jpeg" {
		t.Errorf("mime = %q", frame.MIMEType)
	}
	if frame.Width != 4 || frame.Height != 2 {
		t.Errorf("dims = %dx%d, want 4x2", frame.Width, frame.Height)
	}
	if len(frame.Data) == 0 {
		t.Error("empty frame data")
	}
}

func TestRenderRemotePlaysAndReplaces(t *testing.T) {
	mic := &fakeMic{}
	spk := newFakeSpeaker()
	p := testPipeline(mic, spk, nil, nil)

	if err := p.Acquire(false); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer p.Release()

	track1 := &fakeTrack{payloads: make(chan []byte, 4)}
	p.RenderRemote(track1)

	track1.payloads <- []byte{0xFF, 0xFF}
	select {
	case got := <-spk.writes:
		want := MuLawDecode([]byte{0xFF, 0xFF})
		if !bytes.Equal(got, want) {
			t.Errorf("playback = %v, want %v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no playback from first track")
	}

	// replace the track; stale payloads from track1 must not play
	track2 := &fakeTrack{payloads: make(chan []byte, 4)}
	p.RenderRemote(track2)

	track1.payloads <- []byte{0x80}
	track2.payloads <- []byte{0x00, 0x00, 0x00}

	select {
	case got := <-spk.writes:
		if len(got) != 6 {
			t.Errorf("expected 3-sample write from track2, got %d bytes", len(got))
		}
	case <-time.After(time.Second):
		t.Fatal("no playback from replacement track")
	}

	select {
	case got := <-spk.writes:
		t.Errorf("stale track write leaked through: %v", got)
	case <-time.After(50 * time.Millisecond):
	}

	if spk.flushes == 0 {
		t.Error("replacement did not flush pending audio")
	}

	close(track1.payloads)
	close(track2.payloads)
}

func TestMicSourceEncodesFrames(t *testing.T) {
	pcm := make([]byte, 320)
	for i := range pcm {
		pcm[i] = byte(i)
	}
	src := &micSource{mic: &fakeMic{data: append([]byte(nil), pcm...)}, frameBytes: 320}

	frame, err := src.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(frame, MuLawEncode(pcm)) {
		t.Error("frame does not match encoded capture data")
	}

	if _, err := src.ReadFrame(); err == nil {
		t.Error("expected error once capture source is drained")
	}
}
