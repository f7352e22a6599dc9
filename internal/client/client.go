// Package client is a REST client for the betting API. Mutating calls are
// signed with the caller's key the way the server's signature middleware
// expects.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/tokenbet/internal/crypto"
	"github.com/alanyoungcy/tokenbet/internal/domain"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to one API base URL. The signer is optional; without it only
// public routes can be called.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
}

// New creates a Client for baseURL, e.g. "http://localhost:8000".
func New(baseURL string, signer *crypto.Signer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer: signer,
	}
}

// WithHTTPClient replaces the underlying http.Client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Address returns the signer address, or "" without a signer.
func (c *Client) Address() string {
	if c.signer == nil {
		return ""
	}
	return c.signer.Address()
}

// Do sends a request with a raw JSON body and returns the raw response
// body. The request is signed when the client has a signer.
func (c *Client) Do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.signer != nil {
		headers, err := c.signer.AuthHeaders(method, path, body)
		if err != nil {
			return nil, fmt.Errorf("client: sign request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

func decodeAPIError(status int, body []byte) error {
	var env struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error == "" {
		return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{Status: status, Code: env.Code, Message: env.Error}
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: marshal request body: %w", err)
		}
		body = b
	}
	raw, err := c.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

// Competition fetches one competition.
func (c *Client) Competition(ctx context.Context, id string) (domain.Competition, error) {
	var out domain.Competition
	err := c.call(ctx, http.MethodGet, "/api/competitions/"+url.PathEscape(id), nil, &out)
	return out, err
}

// Balance fetches the ledger balance of account.
func (c *Client) Balance(ctx context.Context, account string) (uint64, error) {
	var out struct {
		Balance uint64 `json:"balance"`
	}
	err := c.call(ctx, http.MethodGet, "/api/ledger/"+url.PathEscape(account), nil, &out)
	return out.Balance, err
}

// PlaceBet stakes amount on asset in competition id.
func (c *Client) PlaceBet(ctx context.Context, id, asset string, amount uint64) (domain.Bet, error) {
	var out domain.Bet
	err := c.call(ctx, http.MethodPost, "/api/competitions/"+url.PathEscape(id)+"/bets",
		map[string]any{"asset": asset, "amount": amount}, &out)
	return out, err
}

// Quote previews the payout of participant in competition id.
func (c *Client) Quote(ctx context.Context, id, participant string) (domain.Quote, error) {
	var out domain.Quote
	err := c.call(ctx, http.MethodGet,
		"/api/competitions/"+url.PathEscape(id)+"/quote/"+url.PathEscape(participant), nil, &out)
	return out, err
}

// Claim collects the signer's winnings from competition id.
func (c *Client) Claim(ctx context.Context, id string) (domain.Bet, error) {
	var out domain.Bet
	err := c.call(ctx, http.MethodPost, "/api/competitions/"+url.PathEscape(id)+"/claim", nil, &out)
	return out, err
}

// Refund requests an emergency refund of the signer's bet.
func (c *Client) Refund(ctx context.Context, id string) (domain.Bet, error) {
	var out domain.Bet
	err := c.call(ctx, http.MethodPost, "/api/competitions/"+url.PathEscape(id)+"/refund", nil, &out)
	return out, err
}
