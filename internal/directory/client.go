// Package directory talks to the room-registry HTTP service: room creation
// and existence checks. It keeps no state; the registry is authoritative.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// SentinelNotFound is the exact message body the registry uses to report a
// missing room. Recognized by value, not by status code, because the
// original service returned it with 200.
const SentinelNotFound = "Room not found"

// ErrBlankInput rejects empty input before any request is made.
var ErrBlankInput = errors.New("input must not be blank")

// Error is a directory-service failure: unreachable service or an error
// response. A missing room is not an Error.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("directory %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client is a thin request/response accessor for the room registry.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zerolog.Logger
}

// New builds a client for the registry at baseURL, e.g. "http://localhost:8000".
func New(baseURL string, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     logger,
	}
}

type createRequest struct {
	Name string `json:"name"`
}

type createResponse struct {
	RoomID string `json:"room_id"`
}

type roomResponse struct {
	RoomID  string `json:"room_id"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Create registers a new room and returns the server-assigned id. The id
// format is opaque to the client.
func (c *Client) Create(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", ErrBlankInput
	}

	body, err := json.Marshal(createRequest{Name: name})
	if err != nil {
		return "", &Error{Op: "create", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rooms", bytes.NewReader(body))
	if err != nil {
		return "", &Error{Op: "create", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Op: "create", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{Op: "create", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var created createResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", &Error{Op: "create", Err: err}
	}
	if created.RoomID == "" {
		return "", &Error{Op: "create", Err: errors.New("response missing room_id")}
	}

	c.log.Debug().Str("room_id", created.RoomID).Str("name", name).Msg("room created")
	return created.RoomID, nil
}

// Exists reports whether the registry knows the room. A missing room is
// (false, nil); only transport failures and unexpected responses error.
func (c *Client) Exists(ctx context.Context, id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, ErrBlankInput
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rooms/"+id, nil)
	if err != nil {
		return false, &Error{Op: "lookup", Err: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, &Error{Op: "lookup", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, &Error{Op: "lookup", Err: err}
	}

	var room roomResponse
	if err := json.Unmarshal(data, &room); err != nil {
		return false, &Error{Op: "lookup", Err: err}
	}
	if room.Message == SentinelNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, &Error{Op: "lookup", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	return true, nil
}
