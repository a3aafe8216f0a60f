package domain

import "github.com/google/uuid"

// Server event type tags dispatched by the event channel.
const (
	EventSessionCreated  = "session.created"
	EventResponseCreated = "response.created"
	EventTranscriptDelta = "response.audio_transcript.delta"
	EventTextDelta       = "response.text.delta"
	EventResponseDone    = "response.done"
	EventError           = "error"
)

// Client event type tags sent over the event channel.
const (
	CmdSessionUpdate          = "session.update"
	CmdConversationItemCreate = "conversation.item.create"
	CmdResponseCreate         = "response.create"
)

// InboundEvent is the envelope for one server event. Only the fields
// relevant to the carried Type are populated; the rest stay zero.
type InboundEvent struct {
	Type     string           `json:"type"`
	EventID  string           `json:"event_id,omitempty"`
	Delta    string           `json:"delta,omitempty"`
	Session  *SessionInfo     `json:"session,omitempty"`
	Response *ResponsePayload `json:"response,omitempty"`
	Error    *ErrorBody       `json:"error,omitempty"`
}

// SessionInfo identifies the server-side session.
type SessionInfo struct {
	ID    string `json:"id"`
	Model string `json:"model,omitempty"`
}

// ResponsePayload is the completed-response body carried by response.done.
type ResponsePayload struct {
	ID     string       `json:"id,omitempty"`
	Status string       `json:"status,omitempty"`
	Output []OutputItem `json:"output,omitempty"`
}

// OutputItem is one item of a completed response.
type OutputItem struct {
	ID      string        `json:"id,omitempty"`
	Type    string        `json:"type,omitempty"`
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// ContentPart is one content fragment of a conversation item. Inbound
// audio parts carry Transcript, text parts carry Text. Outbound user
// text uses Type "input_text" with Text set.
type ContentPart struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// ErrorBody is the body of a server "error" event.
type ErrorBody struct {
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ResponseFinal holds the authoritative final values found on a completed
// response. The Has flags distinguish "absent" from "empty": an absent
// final leaves the accumulated value in place.
type ResponseFinal struct {
	Transcript    string
	HasTranscript bool
	Text          string
	HasText       bool
}

// FinalValues walks a completed response and extracts the final audio
// transcript and text, tolerating items and parts of unknown shape.
func FinalValues(resp *ResponsePayload) ResponseFinal {
	var f ResponseFinal
	if resp == nil {
		return f
	}
	for _, item := range resp.Output {
		for _, part := range item.Content {
			if part.Transcript != "" {
				f.Transcript = part.Transcript
				f.HasTranscript = true
			}
			if part.Text != "" {
				f.Text = part.Text
				f.HasText = true
			}
		}
	}
	return f
}

// OutboundCommand is the envelope for one client event.
type OutboundCommand struct {
	Type     string            `json:"type"`
	EventID  string            `json:"event_id,omitempty"`
	Session  *SessionUpdate    `json:"session,omitempty"`
	Item     *ConversationItem `json:"item,omitempty"`
	Response *ResponseRequest  `json:"response,omitempty"`
}

// SessionUpdate carries the mutable session settings.
type SessionUpdate struct {
	Instructions string `json:"instructions,omitempty"`
	Voice        string `json:"voice,omitempty"`
}

// ConversationItem is one item appended to the conversation.
type ConversationItem struct {
	Type    string        `json:"type"`
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ResponseRequest asks the server to generate a response.
type ResponseRequest struct {
	Modalities []string `json:"modalities,omitempty"`
}

// NewUserTextItem builds a conversation.item.create carrying one user
// text message.
func NewUserTextItem(text string) OutboundCommand {
	return OutboundCommand{
		Type:    CmdConversationItemCreate,
		EventID: uuid.NewString(),
		Item: &ConversationItem{
			Type: "message",
			Role: "user",
			Content: []ContentPart{
				{Type: "input_text", Text: text},
			},
		},
	}
}

// NewResponseRequest builds a response.create asking for both spoken
// audio and text.
func NewResponseRequest() OutboundCommand {
	return OutboundCommand{
		Type:    CmdResponseCreate,
		EventID: uuid.NewString(),
		Response: &ResponseRequest{
			Modalities: []string{"audio", "text"},
		},
	}
}

// NewSessionUpdate builds a session.update. Empty fields are omitted so
// the server keeps its current values.
func NewSessionUpdate(instructions, voice string) OutboundCommand {
	return OutboundCommand{
		Type:    CmdSessionUpdate,
		EventID: uuid.NewString(),
		Session: &SessionUpdate{
			Instructions: instructions,
			Voice:        voice,
		},
	}
}
