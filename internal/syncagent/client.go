package syncagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"masquerade/internal/game"
)

// APIError is a rejection from the authoritative server, as opposed to a
// transport failure. Rejections are final; transport failures are retried
// or queued.
type APIError struct {
	Status int
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Code)
}

// Client is the thin HTTP client for the game API, used by the sync agent
// both live and during queue replay.
type Client struct {
	BaseURL string
	RoomID  string
	HTTP    *http.Client

	PlayerID string
	Token    string
}

func NewClient(baseURL, roomID string) *Client {
	return &Client{
		BaseURL: baseURL,
		RoomID:  roomID,
		HTTP:    &http.Client{},
	}
}

type joinRequest struct {
	Name    string `json:"name"`
	AsAdmin bool   `json:"as_admin,omitempty"`
	Token   string `json:"token,omitempty"`
}

type JoinResponse struct {
	PlayerID string         `json:"player_id"`
	Token    string         `json:"token"`
	Rejoined bool           `json:"rejoined,omitempty"`
	State    game.StateView `json:"state"`
}

// Join establishes (or restores) the client's identity and remembers the
// issued token for subsequent calls.
func (c *Client) Join(ctx context.Context, name string, asAdmin bool) (*JoinResponse, error) {
	var out JoinResponse
	err := c.post(ctx, "join", joinRequest{Name: name, AsAdmin: asAdmin, Token: c.Token}, &out)
	if err != nil {
		return nil, err
	}
	c.PlayerID = out.PlayerID
	c.Token = out.Token
	return &out, nil
}

func (c *Client) Submit(ctx context.Context, round int, content string) error {
	body := map[string]any{"round": round, "content": content}
	return c.post(ctx, "submit", body, nil)
}

func (c *Client) Vote(ctx context.Context, targetID string, predicted game.Role) error {
	body := map[string]any{"target_id": targetID, "predicted_role": predicted}
	return c.post(ctx, "vote", body, nil)
}

func (c *Client) Leave(ctx context.Context) error {
	return c.post(ctx, "leave", struct{}{}, nil)
}

func (c *Client) State(ctx context.Context) (game.StateView, error) {
	var out game.StateView
	err := c.get(ctx, "state", &out)
	return out, err
}

// OpenStream opens the SSE push channel. The caller owns the response body.
func (c *Client) OpenStream(ctx context.Context, lastEventID string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("events"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.auth(req)
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

func (c *Client) url(op string) string {
	return fmt.Sprintf("%s/api/rooms/%s/%s", c.BaseURL, c.RoomID, op)
}

func (c *Client) auth(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("X-Player-Token", c.Token)
	}
}

func (c *Client) post(ctx context.Context, op string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(op), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, op string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(op), nil)
	if err != nil {
		return err
	}
	c.auth(req)
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error == "" {
		body.Error = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Code: body.Error}
}
