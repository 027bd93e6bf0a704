/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package gameapi is a client for the remote Clue game service.
//
// The service owns rooms, dealing and adjudication. This package only
// speaks its HTTP/JSON contract.
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://xlhyimcjjn7y.manus.space/api/game"
	DefaultTimeout = 10 * time.Second

	// maxBodySize caps how much of a response is read.
	maxBodySize = 1 << 20
)

// APIError is returned when the service answers with a non-2xx status.
// Message is the service's own error text, unchanged.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("game service returned status %d", e.StatusCode)
	}

	return e.Message
}

// IsRejected reports whether err is an application-level rejection from
// the service, as opposed to a transport or decoding failure.
func IsRejected(err error) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr)
}

type Client struct {
	baseURL   string
	client    *http.Client
	userAgent string
}

type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
		userAgent: "cluebox",
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a request and decodes a successful JSON body into out, which may
// be nil when the caller does not care about the body.
func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader

	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("game service returned status %d with unreadable body: %w", resp.StatusCode, err)
		}

		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    e.Error,
		}
	}

	if out == nil {
		if len(bytes.TrimSpace(data)) > 0 && !json.Valid(data) {
			return errors.New("failed to decode response: invalid JSON")
		}

		return nil
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func (c *Client) GameData(ctx context.Context) (*Catalog, error) {
	var catalog Catalog
	if err := c.do(ctx, http.MethodGet, "/game-data", nil, &catalog); err != nil {
		return nil, err
	}

	return &catalog, nil
}

func (c *Client) CreateRoom(ctx context.Context, playerName string) (*CreateRoomResponse, error) {
	var resp CreateRoomResponse
	if err := c.do(ctx, http.MethodPost, "/create-room", CreateRoomRequest{PlayerName: playerName}, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) JoinRoom(ctx context.Context, roomCode, playerName string) (*JoinRoomResponse, error) {
	req := JoinRoomRequest{
		RoomCode:   roomCode,
		PlayerName: playerName,
	}

	var resp JoinRoomResponse
	if err := c.do(ctx, http.MethodPost, "/join-room", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// StartGame asks the service to begin play. Success is implied by a 2xx
// status; the body is informational.
func (c *Client) StartGame(ctx context.Context, roomCode string) (*StartGameResponse, error) {
	var resp StartGameResponse
	if err := c.do(ctx, http.MethodPost, "/start-game", StartGameRequest{RoomCode: roomCode}, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) MakeGuess(ctx context.Context, roomCode, playerName string, guess Guess) (*MakeGuessResponse, error) {
	req := MakeGuessRequest{
		RoomCode:   roomCode,
		PlayerName: playerName,
		Guess:      guess,
	}

	var resp MakeGuessResponse
	if err := c.do(ctx, http.MethodPost, "/make-guess", req, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

func (c *Client) GameStatus(ctx context.Context, roomCode string) (*GameStatus, error) {
	var status GameStatus
	if err := c.do(ctx, http.MethodGet, "/game-status/"+url.PathEscape(roomCode), nil, &status); err != nil {
		return nil, err
	}

	return &status, nil
}
