package webrtc

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/pion/interceptor"
	pion "github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/mahanpro/NeuroLens2/internal/domain"
)

const (
	eventChannelLabel = "oai-events"
	frameDuration     = 20 * time.Millisecond
	gatherTimeout     = 5 * time.Second
)

// Peer wraps a Pion PeerConnection and the event data channel riding on
// it. The channel is created before the offer so it lands in the
// negotiated bundle.
type Peer struct {
	pc   *pion.PeerConnection
	dc   *pion.DataChannel
	done chan struct{}
}

// NewPeer creates a PeerConnection with minimal codec registration and
// the event data channel.
func NewPeer() (*Peer, error) {
	m := &pion.MediaEngine{}

	pcmuCodec := pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:  pion.MimeTypePCMU,
			ClockRate: 8000,
			Channels:  1,
		},
		PayloadType: 0,
	}
	if err := m.RegisterCodec(pcmuCodec, pion.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register PCMU: %w", err)
	}

	i := &interceptor.Registry{}
	if err := pion.ConfigureNack(m, i); err != nil {
		return nil, fmt.Errorf("configure nack: %w", err)
	}

	api := pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
	)

	pc, err := api.NewPeerConnection(pion.Configuration{
		BundlePolicy: pion.BundlePolicyMaxBundle,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	dc, err := pc.CreateDataChannel(eventChannelLabel, nil)
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		log.Printf("[webrtc] ICE connection state: %s", state.String())
	})

	return &Peer{
		pc:   pc,
		dc:   dc,
		done: make(chan struct{}),
	}, nil
}

// AttachAudio adds the local audio track and starts pumping frames from
// src. The pump stops when src is released or the peer closes.
func (p *Peer) AttachAudio(src domain.AudioSource) error {
	track, err := pion.NewTrackLocalStaticSample(pion.RTPCodecCapability{
		MimeType:  pion.MimeTypePCMU,
		ClockRate: 8000,
		Channels:  1,
	}, "audio", "neurolens")
	if err != nil {
		return fmt.Errorf("create local track: %w", err)
	}
	if _, err := p.pc.AddTrack(track); err != nil {
		return fmt.Errorf("add local track: %w", err)
	}

	go p.pumpAudio(track, src)
	return nil
}

func (p *Peer) pumpAudio(track *pion.TrackLocalStaticSample, src domain.AudioSource) {
	for {
		select {
		case <-p.done:
			return
		default:
		}

		frame, err := src.ReadFrame()
		if err != nil {
			if err != io.EOF {
				log.Printf("[webrtc] audio source ended: %v", err)
			}
			return
		}
		if err := track.WriteSample(media.Sample{Data: frame, Duration: frameDuration}); err != nil {
			log.Printf("[webrtc] write sample: %v", err)
			return
		}
	}
}

// EventTransport registers the transport handlers on the data channel and
// returns it as the channel transport.
func (p *Peer) EventTransport(h domain.TransportHandlers) domain.Transport {
	p.dc.OnOpen(func() {
		log.Printf("[webrtc] data channel %s opened", p.dc.Label())
		if h.OnOpen != nil {
			h.OnOpen()
		}
	})
	p.dc.OnMessage(func(msg pion.DataChannelMessage) {
		if h.OnMessage != nil {
			h.OnMessage(msg.Data)
		}
	})
	p.dc.OnClose(func() {
		log.Printf("[webrtc] data channel %s closed", p.dc.Label())
		if h.OnClose != nil {
			h.OnClose()
		}
	})
	p.dc.OnError(func(err error) {
		log.Printf("[webrtc] data channel error: %v", err)
		if h.OnError != nil {
			h.OnError(err)
		}
	})

	return &dataChannelTransport{dc: p.dc}
}

// SetOnRemoteAudio registers the handler for the remote audio track.
// Non-audio tracks are drained so RTCP keeps flowing.
func (p *Peer) SetOnRemoteAudio(fn func(domain.TrackReader)) {
	p.pc.OnTrack(func(track *pion.TrackRemote, receiver *pion.RTPReceiver) {
		codec := track.Codec()
		log.Printf("[webrtc] got track: kind=%s codec=%s pt=%d", track.Kind(), codec.MimeType, codec.PayloadType)

		if track.Kind() == pion.RTPCodecTypeAudio {
			fn(&remoteTrack{track: track})
			return
		}
		go func() {
			buf := make([]byte, 1500)
			for {
				if _, _, err := track.Read(buf); err != nil {
					return
				}
			}
		}()
	})
}

// SetOnStateChange maps peer connection state transitions onto the
// session-level transport states.
func (p *Peer) SetOnStateChange(fn func(domain.TransportState)) {
	p.pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		log.Printf("[webrtc] peer connection state: %s", state.String())
		fn(mapState(state))
	})
}

func mapState(state pion.PeerConnectionState) domain.TransportState {
	switch state {
	case pion.PeerConnectionStateConnected:
		return domain.TransportConnected
	case pion.PeerConnectionStateDisconnected:
		return domain.TransportDisconnected
	case pion.PeerConnectionStateFailed:
		return domain.TransportFailed
	case pion.PeerConnectionStateClosed:
		return domain.TransportClosed
	default:
		return domain.TransportConnecting
	}
}

// CreateOffer creates the offer, sets it locally, and waits for ICE
// gathering so the one-shot exchange carries complete candidates.
func (p *Peer) CreateOffer() (string, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}

	gatherComplete := pion.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gatherComplete:
	case <-time.After(gatherTimeout):
		log.Printf("[webrtc] ICE gathering timed out, offering partial candidates")
	}

	local := p.pc.LocalDescription()
	if local == nil {
		return "", fmt.Errorf("local description missing after gathering")
	}

	log.Printf("[webrtc] local SDP offer ready (%d bytes)", len(local.SDP))
	return local.SDP, nil
}

// SetRemoteDescription applies the negotiated answer.
func (p *Peer) SetRemoteDescription(answerSDP string) error {
	answer := pion.SessionDescription{
		Type: pion.SDPTypeAnswer,
		SDP:  answerSDP,
	}
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	log.Printf("[webrtc] remote SDP answer set")
	return nil
}

// Close shuts down the DataChannel and PeerConnection.
func (p *Peer) Close() {
	select {
	case <-p.done:
		return
	default:
		close(p.done)
	}
	if p.dc != nil {
		p.dc.Close()
	}
	if p.pc != nil {
		p.pc.Close()
	}
}

// remoteTrack adapts a Pion remote track to the payload reader consumed
// by the media pipeline.
type remoteTrack struct {
	track *pion.TrackRemote
}

func (r *remoteTrack) ReadPayload() ([]byte, error) {
	pkt, _, err := r.track.ReadRTP()
	if err != nil {
		return nil, err
	}
	return pkt.Payload, nil
}

// dataChannelTransport exposes the data channel as the event channel
// transport.
type dataChannelTransport struct {
	dc *pion.DataChannel
}

func (t *dataChannelTransport) Send(data []byte) error {
	if t.dc.ReadyState() != pion.DataChannelStateOpen {
		return fmt.Errorf("data channel %s not open", t.dc.Label())
	}
	return t.dc.SendText(string(data))
}

func (t *dataChannelTransport) IsOpen() bool {
	return t.dc.ReadyState() == pion.DataChannelStateOpen
}

func (t *dataChannelTransport) Close() error {
	return t.dc.Close()
}
