// Package execution talks to the external agent execution server. The
// execution server owns agent builds, invocation, and the lifecycle writes
// on jobs; this client only hands work off and reports failures back.
package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// UpstreamError reports a non-2xx response from the execution server. The
// upstream status and body pass through to API clients unchanged.
type UpstreamError struct {
	Status  int
	Details string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("execution server returned %d: %s", e.Status, e.Details)
}

// Client is an HTTP client for the execution server. Calls carry no retries
// or client-side timeouts; the caller's context bounds each request.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// AgentUpload is the multipart payload for agent create and update handoffs.
type AgentUpload struct {
	AgentID  string
	JobID    string
	UserID   string
	Filename string
	Content  io.Reader
}

// CreateAgent forwards a new agent's code bundle to the execution server.
func (c *Client) CreateAgent(ctx context.Context, upload AgentUpload) error {
	return c.postAgentUpload(ctx, "/api/agents/create", upload)
}

// UpdateAgent forwards an updated code bundle for an existing agent.
func (c *Client) UpdateAgent(ctx context.Context, upload AgentUpload) error {
	return c.postAgentUpload(ctx, "/api/agents/update", upload)
}

func (c *Client) postAgentUpload(ctx context.Context, path string, upload AgentUpload) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", upload.Filename)
	if err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, upload.Content); err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	for field, value := range map[string]string{
		"agent_id": upload.AgentID,
		"job_id":   upload.JobID,
		"user_id":  upload.UserID,
	} {
		if err := writer.WriteField(field, value); err != nil {
			return fmt.Errorf("build multipart body: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.do(req)
}

// InvokeRequest is the JSON payload for an agent invocation handoff.
type InvokeRequest struct {
	SessionID string `json:"sessionId"`
	JobID     string `json:"jobId"`
	UserID    string `json:"userId"`
	Prompt    string `json:"prompt"`
}

// Invoke asks the execution server to run the agent against a prompt.
func (c *Client) Invoke(ctx context.Context, agentID string, in InvokeRequest) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/agents/%s/invoke", c.baseURL, agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// FileURL returns the download URL for an agent file served by the
// execution server.
func (c *Client) FileURL(agentID, fileID string) string {
	return fmt.Sprintf("%s/api/agents/%s/files/%s", c.baseURL, agentID, fileID)
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execution server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	details, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &UpstreamError{Status: resp.StatusCode, Details: string(details)}
}
