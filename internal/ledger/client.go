// Package ledger is the transport layer: it broadcasts signed transactions
// into the node's pending pool and issues read-only queries against
// finalized contract state. Broadcast acceptance is not finalization; a
// read issued straight after a broadcast may still show pre-write state.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/chainvoice/chainvoice-go/internal/model"
	"github.com/chainvoice/chainvoice-go/pkg/clarval"
	"github.com/chainvoice/chainvoice-go/pkg/tx"
)

type TxStatus string

const (
	TxStatusPending TxStatus = "pending"
	TxStatusSuccess TxStatus = "success"
	TxStatusFailed  TxStatus = "failed"
)

// BackoffFn supplies a fresh backoff per request so the retry policy is
// injectable rather than baked in. The default retries transient transport
// failures a few times and never retries a node rejection.
type BackoffFn func() retry.Backoff

func DefaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.NewFibonacci(250*time.Millisecond))
}

// NoRetry is for callers that want a single attempt.
func NoRetry() retry.Backoff {
	return retry.WithMaxRetries(0, retry.NewConstant(time.Millisecond))
}

type Client struct {
	nodeURL string
	http    *http.Client
	backoff BackoffFn
}

func NewClient(nodeURL string, httpClient *http.Client, backoff BackoffFn) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if backoff == nil {
		backoff = DefaultBackoff
	}
	return &Client{nodeURL: nodeURL, http: httpClient, backoff: backoff}
}

type broadcastRequest struct {
	Tx string `json:"tx"`
}

type broadcastResponse struct {
	TxID  string `json:"txid"`
	Error string `json:"error,omitempty"`
}

// Broadcast submits a signed envelope and returns once the node accepts it
// into its pending pool. It never waits for finalization.
func (c *Client) Broadcast(ctx context.Context, envelope *tx.Envelope) (string, error) {
	return c.BroadcastRaw(ctx, envelope.Raw)
}

// BroadcastRaw submits an already serialized transaction. Contract
// deployments go through here; the client never inspects the payload.
func (c *Client) BroadcastRaw(ctx context.Context, raw string) (string, error) {
	body, err := json.Marshal(broadcastRequest{Tx: raw})
	if err != nil {
		return "", fmt.Errorf("marshalling broadcast request: %w", err)
	}

	response := broadcastResponse{}
	err = c.post(ctx, c.nodeURL+"/v2/transactions", body, &response)
	if err != nil {
		return "", model.NewTransportError("broadcast", err)
	}
	if response.TxID == "" {
		return "", model.NewTransportError("broadcast", fmt.Errorf("node accepted without txid"))
	}
	return response.TxID, nil
}

type callReadRequest struct {
	Sender    string   `json:"sender"`
	Arguments []string `json:"arguments"`
}

type callReadResponse struct {
	Okay   bool   `json:"okay"`
	Result string `json:"result,omitempty"`
	Cause  string `json:"cause,omitempty"`
}

// CallReadOnly invokes a contract's read-only entry point and decodes the
// typed result. Absence sentinels (none) are the caller's concern; transport
// and node failures surface as TransportError.
func (c *Client) CallReadOnly(ctx context.Context, contract tx.Contract, function, sender string, args ...clarval.Value) (clarval.Value, error) {
	arguments := make([]string, 0, len(args))
	for _, arg := range args {
		encoded, err := clarval.EncodeHex(arg)
		if err != nil {
			return clarval.Value{}, fmt.Errorf("encoding argument: %w", err)
		}
		arguments = append(arguments, encoded)
	}

	body, err := json.Marshal(callReadRequest{Sender: sender, Arguments: arguments})
	if err != nil {
		return clarval.Value{}, fmt.Errorf("marshalling call-read request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/contracts/call-read/%s/%s/%s", c.nodeURL, contract.Address, contract.Name, function)

	response := callReadResponse{}
	if err := c.post(ctx, url, body, &response); err != nil {
		return clarval.Value{}, model.NewTransportError(function, err)
	}
	if !response.Okay {
		return clarval.Value{}, model.NewTransportError(function, fmt.Errorf("node rejected call: %s", response.Cause))
	}

	value, err := clarval.DecodeHex(response.Result)
	if err != nil {
		return clarval.Value{}, model.NewTransportError(function, fmt.Errorf("decoding result: %w", err))
	}
	return value, nil
}

type txStatusResponse struct {
	TxID   string `json:"txid"`
	Status string `json:"status"`
}

// GetTxStatus reports where a submitted transaction stands. Unknown txids
// read as pending: the mempool may simply not have propagated yet.
func (c *Client) GetTxStatus(ctx context.Context, txID string) (TxStatus, error) {
	response := txStatusResponse{}
	err := c.get(ctx, fmt.Sprintf("%s/extended/v1/tx/%s", c.nodeURL, txID), &response)
	if err != nil {
		return "", model.NewTransportError("tx-status", err)
	}

	switch TxStatus(response.Status) {
	case TxStatusPending, TxStatusSuccess, TxStatusFailed:
		return TxStatus(response.Status), nil
	default:
		return "", model.NewTransportError("tx-status", fmt.Errorf("unknown status %q", response.Status))
	}
}

func (c *Client) post(ctx context.Context, url string, body []byte, out interface{}) error {
	return c.do(ctx, http.MethodPost, url, body, out)
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

// do runs one HTTP exchange under the injected backoff policy. Transient
// failures (network errors, 5xx) are retryable; a 4xx is the node's final
// word and is returned immediately.
func (c *Client) do(ctx context.Context, method, url string, body []byte, out interface{}) error {
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		request, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		if body != nil {
			request.Header.Set("Content-Type", "application/json")
		}

		response, err := c.http.Do(request)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer response.Body.Close()

		data, err := io.ReadAll(response.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("reading response: %w", err))
		}

		if response.StatusCode >= 500 {
			return retry.RetryableError(fmt.Errorf("node error %d: %s", response.StatusCode, data))
		}
		if response.StatusCode >= 400 {
			return fmt.Errorf("node rejected request (%d): %s", response.StatusCode, data)
		}

		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshalling response: %w", err)
		}
		return nil
	})
}
