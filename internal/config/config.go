package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Transport selects how the event channel reaches the server.
const (
	TransportWebRTC    = "webrtc"
	TransportWebSocket = "websocket"
)

// Config holds the application configuration.
type Config struct {
	ServerURL    string // credential broker and vision service base URL
	RealtimeURL  string // realtime endpoint, empty means the broker default
	Model        string
	Voice        string
	Instructions string
	Transport    string
	WantVideo    bool
	CameraPath   string
	ScenePrompt  string
	HTTPTimeout  time.Duration
}

// Load reads configuration from a .env file (if present) and environment variables.
// Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	server := os.Getenv("NEUROLENS_SERVER")
	if server == "" {
		return nil, fmt.Errorf("NEUROLENS_SERVER environment variable is required")
	}

	transport := os.Getenv("NEUROLENS_TRANSPORT")
	if transport == "" {
		transport = TransportWebRTC
	}
	if transport != TransportWebRTC && transport != TransportWebSocket {
		return nil, fmt.Errorf("NEUROLENS_TRANSPORT must be %q or %q, got %q", TransportWebRTC, TransportWebSocket, transport)
	}

	wantVideo := true
	if v := os.Getenv("NEUROLENS_VIDEO"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("NEUROLENS_VIDEO must be a boolean, got %q", v)
		}
		wantVideo = parsed
	}

	cfg := &Config{
		ServerURL:    server,
		RealtimeURL:  os.Getenv("NEUROLENS_REALTIME_URL"),
		Model:        envOr("NEUROLENS_MODEL", "gpt-4o-realtime-preview"),
		Voice:        envOr("NEUROLENS_VOICE", "verse"),
		Instructions: os.Getenv("NEUROLENS_INSTRUCTIONS"),
		Transport:    transport,
		WantVideo:    wantVideo,
		CameraPath:   envOr("NEUROLENS_CAMERA", "/dev/video0"),
		ScenePrompt:  envOr("NEUROLENS_SCENE_PROMPT", "Describe the scene in one short sentence."),
		HTTPTimeout:  30 * time.Second,
	}

	if cfg.Transport == TransportWebSocket {
		// text-only sessions, no local media path
		cfg.WantVideo = false
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
