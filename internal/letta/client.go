// Package letta is the client for the remote memory block store.
//
// Only the surface the sync engine consumes is implemented: paged listing of
// attached and owned blocks, retrieval by id, and partial update by id.
// There is no retry layer here; a caller-supplied context deadline is the
// only cancellation mechanism.
package letta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	syncerrors "github.com/memsync-oss/memsync/internal/errors"
)

const (
	// DefaultBaseURL is the hosted API endpoint.
	DefaultBaseURL = "https://api.letta.com"

	// ownerTagPrefix marks a block as owned by an agent without being
	// attached to it.
	ownerTagPrefix = "agent:"

	pageLimit = 100
)

// Block is a remote versioned memory block.
type Block struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Value       string   `json:"value"`
	Description string   `json:"description,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	ReadOnly    bool     `json:"read_only,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// BlockUpdate is a partial update. Nil fields are omitted from the request
// body entirely, leaving the remote field untouched.
type BlockUpdate struct {
	Value       *string `json:"value,omitempty"`
	Description *string `json:"description,omitempty"`
	Limit       *int    `json:"limit,omitempty"`
	ReadOnly    *bool   `json:"read_only,omitempty"`
	Label       *string `json:"label,omitempty"`
}

// OwnerTag returns the ownership tag for an agent.
func OwnerTag(agentID string) string {
	return ownerTagPrefix + agentID
}

// Client talks to the block store API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a block store client. An empty baseURL selects the
// hosted endpoint.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// ListAttachedBlocks returns every block currently linked to the agent.
func (c *Client) ListAttachedBlocks(ctx context.Context, agentID string) ([]Block, error) {
	path := fmt.Sprintf("/v1/agents/%s/core-memory/blocks", url.PathEscape(agentID))
	blocks, err := c.listPaged(ctx, path, nil)
	if err != nil {
		return nil, syncerrors.Wrap(syncerrors.CodeRemoteError, "failed to list attached blocks", err)
	}
	return blocks, nil
}

// ListOwnedBlocks returns every block carrying the agent's ownership tag,
// attached or not.
func (c *Client) ListOwnedBlocks(ctx context.Context, agentID string) ([]Block, error) {
	query := url.Values{"tags": []string{OwnerTag(agentID)}}
	blocks, err := c.listPaged(ctx, "/v1/blocks", query)
	if err != nil {
		return nil, syncerrors.Wrap(syncerrors.CodeRemoteError, "failed to list owned blocks", err)
	}
	return blocks, nil
}

// GetBlock retrieves one block by id. A deleted block yields an error
// matching CodeBlockNotFound.
func (c *Client) GetBlock(ctx context.Context, blockID string) (*Block, error) {
	var block Block
	status, err := c.do(ctx, http.MethodGet, "/v1/blocks/"+url.PathEscape(blockID), nil, &block)
	if status == http.StatusNotFound {
		return nil, syncerrors.New(syncerrors.CodeBlockNotFound, fmt.Sprintf("block %s not found", blockID))
	}
	if err != nil {
		return nil, syncerrors.Wrap(syncerrors.CodeRemoteError, fmt.Sprintf("failed to get block %s", blockID), err)
	}
	return &block, nil
}

// UpdateBlock applies a partial update to one block.
func (c *Client) UpdateBlock(ctx context.Context, blockID string, update BlockUpdate) (*Block, error) {
	var block Block
	status, err := c.do(ctx, http.MethodPatch, "/v1/blocks/"+url.PathEscape(blockID), update, &block)
	if status == http.StatusNotFound {
		return nil, syncerrors.New(syncerrors.CodeBlockNotFound, fmt.Sprintf("block %s not found", blockID))
	}
	if err != nil {
		return nil, syncerrors.Wrap(syncerrors.CodeRemoteError, fmt.Sprintf("failed to update block %s", blockID), err)
	}
	return &block, nil
}

// listPaged walks a cursor-paged listing until a short page.
func (c *Client) listPaged(ctx context.Context, path string, query url.Values) ([]Block, error) {
	var out []Block
	after := ""

	for {
		q := url.Values{}
		for k, vs := range query {
			q[k] = vs
		}
		q.Set("limit", fmt.Sprintf("%d", pageLimit))
		if after != "" {
			q.Set("after", after)
		}

		var page []Block
		if _, err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageLimit {
			return out, nil
		}
		after = page[len(page)-1].ID
	}
}

// do issues one request and decodes the JSON response into result. It
// returns the HTTP status so callers can special-case 404.
func (c *Client) do(ctx context.Context, method, path string, body, result any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("API returned %d: %s", resp.StatusCode, string(snippet))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
