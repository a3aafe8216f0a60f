package domain

import "context"

// CredentialBroker obtains a short-lived credential for one session attempt.
type CredentialBroker interface {
	FetchCredential(ctx context.Context) (Credential, error)
}

// Negotiator performs the one-shot description exchange that opens the
// realtime peer session.
type Negotiator interface {
	Negotiate(ctx context.Context, cred Credential, offerSDP string) (answerSDP string, err error)
}

// VisionClient turns one captured frame into a scene description.
type VisionClient interface {
	Describe(ctx context.Context, frame EncodedImage, prompt string) (string, error)
}

// AudioSource yields successive encoded audio frames for the local track,
// one frame per packet interval. It returns io.EOF once the source is
// released.
type AudioSource interface {
	ReadFrame() ([]byte, error)
}

// TrackReader reads successive media payloads from one remote track.
type TrackReader interface {
	ReadPayload() ([]byte, error)
}

// MediaPipeline owns the local capture devices and remote playback.
type MediaPipeline interface {
	Acquire(wantVideo bool) error
	Microphone() AudioSource
	HasVideo() bool
	RenderRemote(track TrackReader)
	CaptureFrame() (EncodedImage, error)
	Release()
}

// Peer manages the WebRTC peer connection and its event data channel.
type Peer interface {
	AttachAudio(src AudioSource) error
	EventTransport(h TransportHandlers) Transport
	SetOnRemoteAudio(fn func(TrackReader))
	SetOnStateChange(fn func(TransportState))
	CreateOffer() (string, error)
	SetRemoteDescription(answerSDP string) error
	Close()
}

// Transport is one ordered, bidirectional message stream carrying event
// channel frames.
type Transport interface {
	Send(data []byte) error
	IsOpen() bool
	Close() error
}

// TransportHandlers receive transport callbacks. Nil handlers are skipped.
type TransportHandlers struct {
	OnMessage func(data []byte)
	OnOpen    func()
	OnClose   func()
	OnError   func(err error)
}

// EventChannel sends client events to the server.
type EventChannel interface {
	Send(cmd OutboundCommand) error
	Close() error
}

// EventHandler receives decoded server events, in arrival order.
type EventHandler interface {
	OnSessionCreated(id string)
	OnResponseCreated()
	OnTranscriptDelta(delta string)
	OnTextDelta(delta string)
	OnResponseDone(final ResponseFinal)
	OnServerError(code, message string)
}

// ChannelObserver receives event channel lifecycle transitions.
type ChannelObserver interface {
	OnChannelOpen()
	OnChannelClosed()
	OnChannelError(err error)
}

// TransportState is the coarse peer transport state reported to the
// session layer.
type TransportState int

const (
	TransportConnecting TransportState = iota
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}
