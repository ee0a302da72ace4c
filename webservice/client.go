// Package webservice talks to the external disease catalogue and user history API.
package webservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Disease fields are kept as raw JSON and relayed to clients as sent.
type Disease struct {
	ID          json.RawMessage `json:"id"`
	Name        json.RawMessage `json:"name"`
	Description json.RawMessage `json:"description"`
	Treatment   json.RawMessage `json:"treatment"`
	Reference   json.RawMessage `json:"reference"`
}

type DiseaseResponse struct {
	Data []Disease `json:"data"`
}

type HistoryRecord struct {
	HistoryName string `json:"historyName"`
	Image       string `json:"image"`
	UserID      int    `json:"userId"`
	DiseaseID   int    `json:"diseaseId"`
}

// StatusError is returned when the API answers with anything but 200.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// GetDisease fetches metadata for a 1-based disease id.
func (c *Client) GetDisease(ctx context.Context, id int) (*DiseaseResponse, error) {
	u := c.base + "/disease/" + strconv.Itoa(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Method: http.MethodGet, URL: u, StatusCode: resp.StatusCode}
	}

	var out DiseaseResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode disease %d: %w", id, err)
	}
	return &out, nil
}

func (c *Client) AddHistory(ctx context.Context, rec HistoryRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	u := c.base + "/users/history"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Method: http.MethodPost, URL: u, StatusCode: resp.StatusCode}
	}
	return nil
}
