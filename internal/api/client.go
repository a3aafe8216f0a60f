package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mahanpro/NeuroLens2/internal/domain"
)

const (
	sessionPath  = "/session"
	describePath = "/describe"
)

type credentialResponse struct {
	Credential string `json:"credential"`
	SessionID  string `json:"session_id"`
	ExpiresIn  int64  `json:"expires_in"`
}

type describeRequest struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type"`
	Prompt   string `json:"prompt,omitempty"`
}

type describeResponse struct {
	Description string `json:"description"`
	Error       string `json:"error"`
	Details     string `json:"details"`
}

// Client talks to the NeuroLens backend: it brokers session credentials
// and runs vision requests against captured frames.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchCredential obtains a short-lived credential for one session attempt.
func (c *Client) FetchCredential(ctx context.Context) (domain.Credential, error) {
	const op = "api.fetch_credential"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+sessionPath, nil)
	if err != nil {
		return domain.Credential{}, domain.E(domain.KindCredential, op, "create http request", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.Credential{}, domain.E(domain.KindTransport, op, "http request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Credential{}, domain.E(domain.KindTransport, op, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.Credential{}, domain.Errorf(domain.KindCredential, op, "http %d: %s", resp.StatusCode, string(respBody))
	}

	var credResp credentialResponse
	if err := json.Unmarshal(respBody, &credResp); err != nil {
		return domain.Credential{}, domain.E(domain.KindCredential, op, "unmarshal response", err)
	}
	if credResp.Credential == "" {
		return domain.Credential{}, domain.Errorf(domain.KindCredential, op, "response carried no credential")
	}

	return domain.Credential{
		Value:      credResp.Credential,
		SessionID:  credResp.SessionID,
		ExpiresIn:  time.Duration(credResp.ExpiresIn) * time.Second,
		ExpiresSec: credResp.ExpiresIn,
	}, nil
}

// Describe sends one captured frame to the vision endpoint and returns the
// scene description.
func (c *Client) Describe(ctx context.Context, frame domain.EncodedImage, prompt string) (string, error) {
	const op = "api.describe"

	if len(frame.Data) == 0 {
		return "", domain.Errorf(domain.KindDescriptionService, op, "empty frame")
	}

	body, err := json.Marshal(describeRequest{
		Image:    base64.StdEncoding.EncodeToString(frame.Data),
		MIMEType: frame.MIMEType,
		Prompt:   prompt,
	})
	if err != nil {
		return "", domain.E(domain.KindDescriptionService, op, "marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+describePath, bytes.NewReader(body))
	if err != nil {
		return "", domain.E(domain.KindDescriptionService, op, "create http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", domain.E(domain.KindDescriptionService, op, "http request", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", domain.E(domain.KindDescriptionService, op, "read response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", domain.Errorf(domain.KindDescriptionService, op, "http %d: %s", resp.StatusCode, string(respBody))
	}

	var descResp describeResponse
	if err := json.Unmarshal(respBody, &descResp); err != nil {
		return "", domain.E(domain.KindDescriptionService, op, "unmarshal response", err)
	}
	if descResp.Error != "" {
		return "", domain.Errorf(domain.KindDescriptionService, op, "service error: %s", errorDetail(descResp))
	}
	if descResp.Description == "" {
		return "", domain.Errorf(domain.KindDescriptionService, op, "response carried no description")
	}

	return descResp.Description, nil
}

func errorDetail(r describeResponse) string {
	if r.Details != "" {
		return fmt.Sprintf("%s (%s)", r.Error, r.Details)
	}
	return r.Error
}
