// Package scene turns what the camera currently sees into a synthesized
// conversational turn: capture one frame, describe it, inject the
// description, and ask the model to respond.
package scene

import (
	"context"
	"log"
	"time"

	"github.com/mahanpro/NeuroLens2/internal/domain"
)

// captureRetryDelay bounds the single retry taken when the camera has
// not produced a frame yet.
const captureRetryDelay = 300 * time.Millisecond

// Describer composes the media pipeline, the vision service, and the
// event channel for one connected session.
type Describer struct {
	media  domain.MediaPipeline
	vision domain.VisionClient
	ch     domain.EventChannel
	prompt string
}

// New creates a describer bound to one session's channel.
func New(media domain.MediaPipeline, vision domain.VisionClient, ch domain.EventChannel, prompt string) *Describer {
	return &Describer{media: media, vision: vision, ch: ch, prompt: prompt}
}

// Describe captures the current frame, obtains its description, and
// injects it as a user turn followed by a generation request. Nothing is
// sent unless a description was obtained. A non-empty prompt overrides
// the configured one for this call.
func (d *Describer) Describe(ctx context.Context, prompt string) (string, error) {
	const op = "scene.describe"

	if !d.media.HasVideo() {
		return "", domain.Errorf(domain.KindPrecondition, op, "no active video track")
	}
	if prompt == "" {
		prompt = d.prompt
	}

	frame, err := d.media.CaptureFrame()
	if err != nil {
		// the first frame may not have landed yet; retry once
		select {
		case <-ctx.Done():
			return "", domain.E(domain.KindCapture, op, "capture canceled", ctx.Err())
		case <-time.After(captureRetryDelay):
		}
		frame, err = d.media.CaptureFrame()
		if err != nil {
			return "", err
		}
	}

	log.Printf("[scene] captured %dx%d frame (%d bytes)", frame.Width, frame.Height, len(frame.Data))

	desc, err := d.vision.Describe(ctx, frame, prompt)
	if err != nil {
		return "", err
	}

	if err := d.ch.Send(domain.NewUserTextItem(desc)); err != nil {
		return "", err
	}
	if err := d.ch.Send(domain.NewResponseRequest()); err != nil {
		return "", err
	}

	log.Printf("[scene] injected description: %s", desc)
	return desc, nil
}
