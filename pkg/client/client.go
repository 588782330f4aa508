// Package client implements the dispatch control plane's CLI-facing
// request/response flow: ask the orchestrator for a worker, then submit a
// module to that worker by hash first, falling back to the full bytes on a
// cache miss (spec §6.2).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wasplane/waspool/pkg/protocol"
)

// Client submits WASM jobs through an orchestrator to whichever worker it
// assigns.
type Client struct {
	orchestratorAddr string
	httpClient       *http.Client
}

// New creates a Client targeting the given orchestrator base URL.
func New(orchestratorAddr string) *Client {
	return &Client{
		orchestratorAddr: strings.TrimRight(orchestratorAddr, "/"),
		httpClient:       &http.Client{Timeout: 60 * time.Second},
	}
}

// Result is the outcome of a successful Submit.
type Result struct {
	JobID  string
	Output string
}

// Submit requests a worker from the orchestrator, then delivers moduleBytes
// to it: submit_hash first (cheap, content-addressed), falling back to
// submit_wasm with the full bytes on a 404 cache miss.
func (c *Client) Submit(ctx context.Context, moduleBytes []byte, callArgs []string) (*Result, error) {
	endpoint, err := c.requestWorker(ctx)
	if err != nil {
		return nil, fmt.Errorf("request_worker: %w", err)
	}

	manifest := protocol.JobManifest{CallArgs: callArgs}
	hash := protocol.HashModule(moduleBytes)

	resp, status, err := c.submitHash(ctx, endpoint, hash, manifest)
	if err != nil {
		return nil, fmt.Errorf("submit_hash: %w", err)
	}
	if status == http.StatusNotFound {
		resp, status, err = c.submitWasm(ctx, endpoint, moduleBytes, manifest)
		if err != nil {
			return nil, fmt.Errorf("submit_wasm: %w", err)
		}
	}
	if status != http.StatusCreated {
		return nil, fmt.Errorf("worker rejected submission: %d %s", status, resp.Message)
	}

	return &Result{JobID: resp.JobID, Output: resp.Message}, nil
}

func (c *Client) requestWorker(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.orchestratorAddr+"/request_worker", nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var errResp protocol.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("%d %s", resp.StatusCode, errResp.Error)
	}

	var out protocol.RequestWorkerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.WorkerEndpoint, nil
}

func (c *Client) submitHash(ctx context.Context, endpoint, hash string, manifest protocol.JobManifest) (protocol.SubmitResponse, int, error) {
	req := protocol.JobSubmissionHash{ModuleHash: hash, Manifest: manifest}
	return c.postSubmission(ctx, endpoint+"/submit_hash", req)
}

func (c *Client) submitWasm(ctx context.Context, endpoint string, moduleBytes []byte, manifest protocol.JobManifest) (protocol.SubmitResponse, int, error) {
	req := protocol.JobSubmissionWasm{ModuleBytes: moduleBytes, Manifest: manifest}
	return c.postSubmission(ctx, endpoint+"/submit_wasm", req)
}

func (c *Client) postSubmission(ctx context.Context, url string, body interface{}) (protocol.SubmitResponse, int, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return protocol.SubmitResponse{}, 0, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return protocol.SubmitResponse{}, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return protocol.SubmitResponse{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return protocol.SubmitResponse{}, resp.StatusCode, nil
	}

	var out protocol.SubmitResponse
	if resp.StatusCode == http.StatusCreated {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return protocol.SubmitResponse{}, 0, err
		}
		return out, resp.StatusCode, nil
	}

	var errResp protocol.ErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	out.Message = errResp.Error
	return out, resp.StatusCode, nil
}
