package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"

	"github.com/mahanpro/NeuroLens2/internal/api"
	"github.com/mahanpro/NeuroLens2/internal/config"
	"github.com/mahanpro/NeuroLens2/internal/domain"
	"github.com/mahanpro/NeuroLens2/internal/media"
	"github.com/mahanpro/NeuroLens2/internal/session"
	"github.com/mahanpro/NeuroLens2/internal/signal"
	"github.com/mahanpro/NeuroLens2/internal/webrtc"
)

const helpText = `neurolens - realtime voice assistant with scene description

Usage:
  neurolens [options]

Opens a realtime voice session with the assistant. Speak into the
microphone; replies play through the speaker. While connected, commands
are read from stdin:

  d, describe  describe the current camera view aloud
  t <text>     send a text message to the assistant
  q, quit      disconnect and exit

Environment Variables:
  NEUROLENS_SERVER        Credential broker base URL (required)
  NEUROLENS_MODEL         Realtime model identifier
  NEUROLENS_VOICE         Assistant voice
  NEUROLENS_INSTRUCTIONS  System instructions for the session
  NEUROLENS_TRANSPORT     "webrtc" (voice, default) or "websocket" (text only)
  NEUROLENS_VIDEO         Enable camera capture (default true)
  NEUROLENS_CAMERA        MJPEG camera device or stream path
  NEUROLENS_REALTIME_URL  Override the realtime endpoint

Options:
  -h, --help  Show this help message
`

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		fmt.Print(helpText)
		os.Exit(0)
	}

	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %s, shutting down", sig)
		cancel()
	}()

	// Step 1: Server client (credential broker + scene description)
	server := api.NewClient(cfg.ServerURL, cfg.HTTPTimeout)

	// Step 2: Negotiation client for the realtime endpoint
	signaler := signal.NewClient(cfg.RealtimeURL, cfg.Model, cfg.HTTPTimeout)

	// Step 3: Local capture and playback devices
	pipeline := media.New(media.Config{CameraPath: cfg.CameraPath})

	// Step 4: Session manager tying it all together
	mgr := session.NewManager(
		session.Config{
			Model:        cfg.Model,
			Voice:        cfg.Voice,
			Instructions: cfg.Instructions,
			UseWebSocket: cfg.Transport == config.TransportWebSocket,
			RealtimeURL:  cfg.RealtimeURL,
			WantVideo:    cfg.WantVideo,
			ScenePrompt:  cfg.ScenePrompt,
		},
		server,
		pipeline,
		signaler,
		server,
		func() (domain.Peer, error) { return webrtc.NewPeer() },
		session.Callbacks{
			OnStateChange: func(old, new session.State) {
				log.Printf("[main] session %s -> %s", old, new)
			},
			OnTranscript: func(text string, final bool) {
				if final && text != "" {
					fmt.Printf("assistant (voice)> %s\n", text)
				}
			},
			OnResponseText: func(text string, final bool) {
				if final && text != "" {
					fmt.Printf("assistant> %s\n", text)
				}
			},
			OnSceneDescription: func(desc string) {
				fmt.Printf("scene> %s\n", desc)
			},
			OnError: func(err error) {
				log.Printf("[main] session error: %v", err)
			},
		},
	)

	// Step 5: Connect
	log.Printf("[main] connecting (model=%s transport=%s video=%t)", cfg.Model, cfg.Transport, cfg.WantVideo)
	if err := mgr.Connect(ctx); err != nil {
		log.Fatalf("[main] connect: %v", err)
	}
	fmt.Println("connected. commands: 'd' describe scene, 't <text>' send text, 'q' quit.")

	// Step 6: Command loop until signal or quit
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			cmd := strings.TrimSpace(line)
			switch {
			case cmd == "":
			case cmd == "q" || cmd == "quit":
				break loop
			case cmd == "d" || cmd == "describe":
				if _, err := mgr.DescribeScene(ctx); err != nil {
					log.Printf("[main] describe scene: %v", err)
				}
			case strings.HasPrefix(cmd, "t "):
				text := strings.TrimSpace(strings.TrimPrefix(cmd, "t "))
				fmt.Printf("you> %s\n", text)
				if err := mgr.SendText(text); err != nil {
					log.Printf("[main] send text: %v", err)
				}
			default:
				fmt.Printf("unknown command %q (try 'd', 't <text>', or 'q')\n", cmd)
			}
		}
	}

	log.Printf("[main] shutting down")
	mgr.Disconnect()
	log.Printf("[main] done")
}
