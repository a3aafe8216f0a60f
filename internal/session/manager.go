// Package session owns the conversation lifecycle: the state machine, the
// composition of credential broker, media pipeline, negotiation, and event
// channel, and the accumulators fed by streamed events.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mahanpro/NeuroLens2/internal/channel"
	"github.com/mahanpro/NeuroLens2/internal/domain"
	"github.com/mahanpro/NeuroLens2/internal/scene"
)

// Config controls one manager.
type Config struct {
	Model        string
	Voice        string
	Instructions string
	UseWebSocket bool
	RealtimeURL  string
	WantVideo    bool
	ScenePrompt  string
}

// Callbacks deliver session updates to the surrounding application. They
// are invoked from the dispatch loop and must not block.
type Callbacks struct {
	OnStateChange      func(old, new State)
	OnTranscript       func(text string, final bool)
	OnResponseText     func(text string, final bool)
	OnSceneDescription func(desc string)
	OnError            func(err error)
}

// PeerFactory builds one peer transport per connect attempt.
type PeerFactory func() (domain.Peer, error)

// wsDialer opens the event channel transport for text-only sessions.
type wsDialer func(ctx context.Context, cred domain.Credential, h domain.TransportHandlers) (domain.Transport, error)

// noteKind discriminates the notifications feeding the dispatch loop.
type noteKind int

const (
	noteSessionCreated noteKind = iota
	noteResponseCreated
	noteTranscriptDelta
	noteTextDelta
	noteResponseDone
	noteServerError
	noteChannelOpen
	noteChannelClosed
	noteChannelError
	noteTransport
)

// note is one asynchronous notification. All channel and transport
// callbacks converge here so a single goroutine mutates session state.
type note struct {
	kind  noteKind
	text  string
	code  string
	final domain.ResponseFinal
	state domain.TransportState
	err   error
}

// Manager owns the session state machine. It is the only component the
// surrounding application talks to.
type Manager struct {
	cfg       Config
	broker    domain.CredentialBroker
	media     domain.MediaPipeline
	signaler  domain.Negotiator
	vision    domain.VisionClient
	newPeer   PeerFactory
	dialWS    wsDialer
	callbacks Callbacks

	transcript *Accumulator
	response   *Accumulator

	mu        sync.Mutex
	state     State
	attemptID string
	sessionID string
	startedAt time.Time
	peer      domain.Peer
	channel   *channel.Channel
	describer *scene.Describer
	ctx       context.Context
	cancel    context.CancelFunc
	notes     chan note

	describeMu sync.Mutex
}

// NewManager wires the session components together.
func NewManager(
	cfg Config,
	broker domain.CredentialBroker,
	media domain.MediaPipeline,
	signaler domain.Negotiator,
	vision domain.VisionClient,
	peers PeerFactory,
	callbacks Callbacks,
) *Manager {
	m := &Manager{
		cfg:        cfg,
		broker:     broker,
		media:      media,
		signaler:   signaler,
		vision:     vision,
		newPeer:    peers,
		callbacks:  callbacks,
		transcript: &Accumulator{},
		response:   &Accumulator{},
	}
	m.dialWS = func(ctx context.Context, cred domain.Credential, h domain.TransportHandlers) (domain.Transport, error) {
		t := channel.NewWebSocketTransport(cfg.RealtimeURL, cfg.Model, cred, h)
		if err := t.Dial(ctx); err != nil {
			return nil, err
		}
		return t, nil
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the identifier assigned by the remote endpoint, empty
// until session.created arrives.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// StartedAt returns when the current session reached Connected.
func (m *Manager) StartedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startedAt
}

// Transcript returns the accumulated audio transcript for the current
// turn.
func (m *Manager) Transcript() string {
	return m.transcript.String()
}

// ResponseText returns the accumulated response text for the current
// turn.
func (m *Manager) ResponseText() string {
	return m.response.String()
}

// Connect establishes a session. Valid from Idle, Disconnected, and
// Failed; a no-op when already Connected; rejected while another connect
// is in flight. On any failure every partially acquired resource is
// released and a single descriptive error is returned.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		log.Printf("[session] connect ignored: already connected")
		return nil
	case StateConnecting:
		m.mu.Unlock()
		return domain.Errorf(domain.KindPrecondition, "session.connect", "connect already in progress")
	}
	old := m.state
	m.state = StateConnecting
	m.attemptID = uuid.NewString()
	m.sessionID = ""
	m.startedAt = time.Time{}
	runCtx, cancel := context.WithCancel(context.Background())
	m.ctx, m.cancel = runCtx, cancel
	notes := make(chan note, 128)
	m.notes = notes
	attempt := m.attemptID
	m.mu.Unlock()

	m.transcript.Reset()
	m.response.Reset()
	log.Printf("[session] connect attempt %s", attempt)
	m.notifyState(old, StateConnecting)

	go m.run(runCtx, notes)

	// abort in-flight steps when disconnect wins the race
	attemptCtx, cancelAttempt := context.WithCancel(ctx)
	defer cancelAttempt()
	go func() {
		select {
		case <-runCtx.Done():
			cancelAttempt()
		case <-attemptCtx.Done():
		}
	}()

	if err := m.establish(attemptCtx); err != nil {
		return m.failConnect(err)
	}
	return nil
}

func (m *Manager) establish(ctx context.Context) error {
	const op = "session.connect"

	cred, err := m.broker.FetchCredential(ctx)
	if err != nil {
		return err
	}

	if m.cfg.UseWebSocket {
		return m.establishWebSocket(ctx, cred)
	}

	var (
		peer domain.Peer
		ch   *channel.Channel
	)
	fail := func(cause error) error {
		m.media.Release()
		if ch != nil {
			ch.Close()
		}
		if peer != nil {
			peer.Close()
		}
		return cause
	}

	if err := m.media.Acquire(m.cfg.WantVideo); err != nil {
		return err
	}

	p, err := m.newPeer()
	if err != nil {
		return fail(domain.E(domain.KindTransport, op, "create peer", err))
	}
	peer = p

	ch = channel.New(m, m)
	ch.SetTransport(peer.EventTransport(ch.TransportHandlers()))

	peer.SetOnRemoteAudio(func(track domain.TrackReader) {
		m.media.RenderRemote(track)
	})
	peer.SetOnStateChange(func(s domain.TransportState) {
		m.enqueue(note{kind: noteTransport, state: s})
	})

	if err := peer.AttachAudio(m.media.Microphone()); err != nil {
		return fail(domain.E(domain.KindTransport, op, "attach audio", err))
	}

	offer, err := peer.CreateOffer()
	if err != nil {
		return fail(domain.E(domain.KindTransport, op, "create offer", err))
	}

	answer, err := m.signaler.Negotiate(ctx, cred, offer)
	if err != nil {
		return fail(err)
	}

	if err := peer.SetRemoteDescription(answer); err != nil {
		return fail(domain.E(domain.KindNegotiation, op, "apply remote description", err))
	}

	if err := m.commit(peer, ch); err != nil {
		return fail(err)
	}
	return nil
}

func (m *Manager) establishWebSocket(ctx context.Context, cred domain.Credential) error {
	const op = "session.connect"

	ch := channel.New(m, m)
	tr, err := m.dialWS(ctx, cred, ch.TransportHandlers())
	if err != nil {
		return domain.E(domain.KindTransport, op, "dial websocket", err)
	}
	ch.SetTransport(tr)

	if err := m.commit(nil, ch); err != nil {
		ch.Close()
		return err
	}
	return nil
}

// commit publishes the established resources, unless disconnect already
// tore the attempt down.
func (m *Manager) commit(peer domain.Peer, ch *channel.Channel) error {
	m.mu.Lock()
	if m.state != StateConnecting {
		state := m.state
		m.mu.Unlock()
		return domain.Errorf(domain.KindPrecondition, "session.connect", "aborted: session is %s", state)
	}
	m.peer = peer
	m.channel = ch
	m.describer = scene.New(m.media, m.vision, ch, m.cfg.ScenePrompt)
	m.state = StateConnected
	m.startedAt = time.Now()
	attempt := m.attemptID
	m.mu.Unlock()

	m.notifyState(StateConnecting, StateConnected)
	log.Printf("[session] connected (attempt %s)", attempt)
	return nil
}

// failConnect aggregates a connect failure: terminal state, stopped
// dispatch loop, one descriptive error for the caller.
func (m *Manager) failConnect(cause error) error {
	m.mu.Lock()
	aborted := m.state != StateConnecting
	var cancel context.CancelFunc
	if !aborted {
		m.state = StateFailed
		cancel = m.cancel
		m.ctx, m.cancel, m.notes = nil, nil, nil
	}
	m.mu.Unlock()

	if aborted {
		log.Printf("[session] connect aborted: %v", cause)
		return fmt.Errorf("connect aborted: %w", cause)
	}

	if cancel != nil {
		cancel()
	}
	m.notifyState(StateConnecting, StateFailed)
	log.Printf("[session] connect failed: %v", cause)
	return fmt.Errorf("connect failed: %w", cause)
}

// Disconnect releases the session in teardown order: media tracks first,
// then the event channel, then the peer transport. Idempotent and valid
// from any state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	old := m.state
	m.state = StateDisconnected
	peer, ch := m.peer, m.channel
	m.peer, m.channel, m.describer = nil, nil, nil
	m.sessionID = ""
	m.startedAt = time.Time{}
	cancel := m.cancel
	m.ctx, m.cancel, m.notes = nil, nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.media.Release()
	if ch != nil {
		ch.Close()
	}
	if peer != nil {
		peer.Close()
	}
	m.transcript.Reset()
	m.response.Reset()

	if old != StateDisconnected {
		m.notifyState(old, StateDisconnected)
	}
}

// SendText injects one user text turn and requests a response.
func (m *Manager) SendText(text string) error {
	m.mu.Lock()
	state := m.state
	ch := m.channel
	m.mu.Unlock()

	if state != StateConnected || ch == nil {
		return domain.Errorf(domain.KindPrecondition, "session.send_text", "session is %s, not connected", state)
	}
	if err := ch.Send(domain.NewUserTextItem(text)); err != nil {
		return err
	}
	return ch.Send(domain.NewResponseRequest())
}

// DescribeScene captures the current camera frame, obtains a description,
// and injects it into the conversation. Requires a connected session with
// active video; concurrent calls are serialized.
func (m *Manager) DescribeScene(ctx context.Context) (string, error) {
	m.mu.Lock()
	state := m.state
	d := m.describer
	runCtx := m.ctx
	m.mu.Unlock()

	if state != StateConnected || d == nil || runCtx == nil {
		return "", domain.Errorf(domain.KindPrecondition, "session.describe_scene", "session is %s, not connected", state)
	}

	m.describeMu.Lock()
	defer m.describeMu.Unlock()

	// disconnect aborts an in-flight description
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-runCtx.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	desc, err := d.Describe(ctx, "")
	if err != nil {
		return "", err
	}
	if cb := m.callbacks.OnSceneDescription; cb != nil {
		cb(desc)
	}
	return desc, nil
}

// enqueue feeds one notification to the dispatch loop. Notifications
// raised after teardown are dropped.
func (m *Manager) enqueue(n note) {
	m.mu.Lock()
	notes, ctx := m.notes, m.ctx
	m.mu.Unlock()

	if notes == nil || ctx == nil {
		return
	}
	select {
	case notes <- n:
	case <-ctx.Done():
	}
}

// run is the single dispatcher: it alone mutates accumulators and reacts
// to lifecycle notifications, in arrival order.
func (m *Manager) run(ctx context.Context, notes chan note) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notes:
			m.handleNote(n)
		}
	}
}

func (m *Manager) handleNote(n note) {
	// notifications left in the buffer when teardown wins the select race
	// must not touch the accumulators
	m.mu.Lock()
	live := m.state == StateConnecting || m.state == StateConnected
	m.mu.Unlock()
	if !live {
		return
	}

	switch n.kind {
	case noteSessionCreated:
		m.mu.Lock()
		m.sessionID = n.text
		ch := m.channel
		m.mu.Unlock()
		log.Printf("[session] created: %s", n.text)
		if ch != nil && (m.cfg.Instructions != "" || m.cfg.Voice != "") {
			if err := ch.Send(domain.NewSessionUpdate(m.cfg.Instructions, m.cfg.Voice)); err != nil {
				log.Printf("[session] session.update failed: %v", err)
			}
		}

	case noteResponseCreated:
		m.transcript.Reset()
		m.response.Reset()

	case noteTranscriptDelta:
		m.transcript.Append(n.text)
		if cb := m.callbacks.OnTranscript; cb != nil {
			cb(m.transcript.String(), false)
		}

	case noteTextDelta:
		m.response.Append(n.text)
		if cb := m.callbacks.OnResponseText; cb != nil {
			cb(m.response.String(), false)
		}

	case noteResponseDone:
		if n.final.HasTranscript {
			m.transcript.SetFinal(n.final.Transcript)
		}
		if n.final.HasText {
			m.response.SetFinal(n.final.Text)
		}
		if cb := m.callbacks.OnTranscript; cb != nil {
			cb(m.transcript.String(), true)
		}
		if cb := m.callbacks.OnResponseText; cb != nil {
			cb(m.response.String(), true)
		}

	case noteServerError:
		log.Printf("[session] server error: code=%s message=%s", n.code, n.text)
		if cb := m.callbacks.OnError; cb != nil {
			cb(domain.Errorf(domain.KindTransport, "session.event", "server error %s: %s", n.code, n.text))
		}

	case noteChannelOpen:
		log.Printf("[session] event channel open")

	case noteChannelClosed:
		m.transportFailed(fmt.Errorf("event channel closed"))

	case noteChannelError:
		m.transportFailed(n.err)

	case noteTransport:
		switch n.state {
		case domain.TransportFailed, domain.TransportClosed:
			m.transportFailed(fmt.Errorf("peer transport %s", n.state))
		default:
			// connecting/connected/disconnected transitions are
			// informational; disconnected often recovers on its own
		}
	}
}

// transportFailed handles an out-of-band transport failure: teardown plus
// an asynchronous Failed notification. No-op outside Connecting and
// Connected, so deliberate disconnects never re-enter here.
func (m *Manager) transportFailed(cause error) {
	m.mu.Lock()
	if m.state != StateConnecting && m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	old := m.state
	m.state = StateFailed
	peer, ch := m.peer, m.channel
	m.peer, m.channel, m.describer = nil, nil, nil
	m.sessionID = ""
	cancel := m.cancel
	m.ctx, m.cancel, m.notes = nil, nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.media.Release()
	if ch != nil {
		ch.Close()
	}
	if peer != nil {
		peer.Close()
	}

	m.notifyState(old, StateFailed)
	log.Printf("[session] transport failed: %v", cause)
	if cb := m.callbacks.OnError; cb != nil {
		cb(domain.E(domain.KindTransport, "session", "transport failed", cause))
	}
}

func (m *Manager) notifyState(old, new State) {
	log.Printf("[session] %s -> %s", old, new)
	if cb := m.callbacks.OnStateChange; cb != nil {
		cb(old, new)
	}
}

// OnSessionCreated implements domain.EventHandler.
func (m *Manager) OnSessionCreated(id string) {
	m.enqueue(note{kind: noteSessionCreated, text: id})
}

// OnResponseCreated implements domain.EventHandler.
func (m *Manager) OnResponseCreated() {
	m.enqueue(note{kind: noteResponseCreated})
}

// OnTranscriptDelta implements domain.EventHandler.
func (m *Manager) OnTranscriptDelta(delta string) {
	m.enqueue(note{kind: noteTranscriptDelta, text: delta})
}

// OnTextDelta implements domain.EventHandler.
func (m *Manager) OnTextDelta(delta string) {
	m.enqueue(note{kind: noteTextDelta, text: delta})
}

// OnResponseDone implements domain.EventHandler.
func (m *Manager) OnResponseDone(final domain.ResponseFinal) {
	m.enqueue(note{kind: noteResponseDone, final: final})
}

// OnServerError implements domain.EventHandler.
func (m *Manager) OnServerError(code, message string) {
	m.enqueue(note{kind: noteServerError, code: code, text: message})
}

// OnChannelOpen implements domain.ChannelObserver.
func (m *Manager) OnChannelOpen() {
	m.enqueue(note{kind: noteChannelOpen})
}

// OnChannelClosed implements domain.ChannelObserver.
func (m *Manager) OnChannelClosed() {
	m.enqueue(note{kind: noteChannelClosed})
}

// OnChannelError implements domain.ChannelObserver.
func (m *Manager) OnChannelError(err error) {
	m.enqueue(note{kind: noteChannelError, err: err})
}
