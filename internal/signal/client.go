package signal

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mahanpro/NeuroLens2/internal/domain"
)

const defaultRealtimeURL = "https://api.openai.com/v1/realtime"

// Client performs the one-shot offer/answer exchange against the realtime
// endpoint. The exchange is not retried; the caller decides whether a new
// connect attempt is warranted.
type Client struct {
	endpoint string
	model    string
	http     *http.Client
}

// NewClient creates a negotiation client for the given model. An empty
// endpoint selects the provider default.
func NewClient(endpoint, model string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = defaultRealtimeURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		http:     &http.Client{Timeout: timeout},
	}
}

// Negotiate posts the local description under the credential and returns
// the remote description. On a rejected handshake the provider's status
// and body are passed through unmodified in the error.
func (c *Client) Negotiate(ctx context.Context, cred domain.Credential, offerSDP string) (string, error) {
	const op = "signal.negotiate"

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", domain.E(domain.KindNegotiation, op, "parse endpoint", err)
	}
	q := u.Query()
	q.Set("model", c.model)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), strings.NewReader(offerSDP))
	if err != nil {
		return "", domain.E(domain.KindNegotiation, op, "create http request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+cred.Value)
	httpReq.Header.Set("Content-Type", "application/sdp")

	log.Printf("[signal] negotiating with %s", u.Host)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", domain.E(domain.KindTransport, op, "http request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.E(domain.KindTransport, op, "read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", domain.Errorf(domain.KindNegotiation, op, "http %d: %s", resp.StatusCode, string(respBody))
	}

	answer := string(respBody)
	if !strings.HasPrefix(answer, "v=") {
		return "", domain.Errorf(domain.KindNegotiation, op, "response is not a session description: %.64s", answer)
	}

	log.Printf("[signal] received answer (%d bytes)", len(answer))
	return answer, nil
}
