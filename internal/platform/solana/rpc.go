// Package solana is a minimal JSON-RPC client for the ledger: transfer
// building, signature confirmation, DAS asset queries, and authority-signed
// submissions. No chain SDK is used; transactions are encoded by hand.
package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vaultline/artkey/internal/domain"
)

// confirmRecheckDelay is the pause before the single follow-up status poll
// when the first poll finds the signature still unprocessed.
const confirmRecheckDelay = 2 * time.Second

// RPCClient talks JSON-RPC to a ledger node.
type RPCClient struct {
	url        string
	commitment string
	httpClient *http.Client
	logger     *slog.Logger

	// holderGroup deduplicates concurrent CountHoldings calls per client,
	// keyed by wallet and collection.
	holderGroup singleflight.Group
}

// NewRPCClient creates an RPCClient for the given endpoint. commitment
// defaults to "confirmed" when empty.
func NewRPCClient(url, commitment string, logger *slog.Logger) *RPCClient {
	if commitment == "" {
		commitment = "confirmed"
	}
	return &RPCClient{
		url:        url,
		commitment: commitment,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With(slog.String("component", "solana_rpc")),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call performs one JSON-RPC round trip, decoding the result into out.
func (c *RPCClient) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("solana: marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("solana: build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("solana: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return fmt.Errorf("solana: read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("solana: %s: http %d: %s", method, resp.StatusCode, truncate(raw, 200))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("solana: decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("solana: %s: rpc error %d: %s", method, rpcResp.Error.Code, rpcResp.Error.Message)
	}

	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("solana: decode %s result: %w", method, err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// LatestBlockhash returns a recent blockhash for transaction building.
func (c *RPCClient) LatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	params := []any{map[string]string{"commitment": c.commitment}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", err
	}
	if result.Value.Blockhash == "" {
		return "", fmt.Errorf("solana: empty blockhash")
	}
	return result.Value.Blockhash, nil
}

// SendRawTransaction submits a base64 wire transaction and returns its
// signature.
func (c *RPCClient) SendRawTransaction(ctx context.Context, txBase64 string) (string, error) {
	var signature string
	params := []any{txBase64, map[string]any{"encoding": "base64", "preflightCommitment": c.commitment}}
	if err := c.call(ctx, "sendTransaction", params, &signature); err != nil {
		return "", err
	}
	return signature, nil
}

type signatureStatus struct {
	ConfirmationStatus string `json:"confirmationStatus"`
	Err                any    `json:"err"`
}

// signatureStatus fetches one signature's status, nil when unprocessed.
func (c *RPCClient) signatureStatus(ctx context.Context, signature string) (*signatureStatus, error) {
	var result struct {
		Value []*signatureStatus `json:"value"`
	}
	params := []any{[]string{signature}, map[string]bool{"searchTransactionHistory": true}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

// BuildTransfer returns an unsigned lamport transfer from one wallet to
// another for the user to co-sign and submit.
func (c *RPCClient) BuildTransfer(ctx context.Context, from, to string, lamports int64) (domain.UnsignedTx, error) {
	blockhash, err := c.LatestBlockhash(ctx)
	if err != nil {
		return domain.UnsignedTx{}, err
	}

	tx, err := CompileTransaction(from, blockhash, []Instruction{SystemTransfer(from, to, lamports)})
	if err != nil {
		return domain.UnsignedTx{}, err
	}

	return domain.UnsignedTx{Base64: tx.Serialize(), Blockhash: blockhash}, nil
}

// ConfirmSignature polls the status of a submitted transaction. An
// unprocessed signature gets one delayed recheck before reporting
// unconfirmed; confirmation state is left for the caller to retry.
func (c *RPCClient) ConfirmSignature(ctx context.Context, signature string) (domain.ConfirmationStatus, error) {
	status, err := c.signatureStatus(ctx, signature)
	if err != nil {
		return domain.ConfirmationStatus{}, err
	}

	if status == nil {
		select {
		case <-ctx.Done():
			return domain.ConfirmationStatus{}, ctx.Err()
		case <-time.After(confirmRecheckDelay):
		}
		status, err = c.signatureStatus(ctx, signature)
		if err != nil {
			return domain.ConfirmationStatus{}, err
		}
		if status == nil {
			return domain.ConfirmationStatus{Confirmed: false}, nil
		}
	}

	if status.Err != nil {
		errJSON, _ := json.Marshal(status.Err)
		return domain.ConfirmationStatus{Confirmed: false, Err: string(errJSON)}, nil
	}

	confirmed := status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized"
	return domain.ConfirmationStatus{Confirmed: confirmed}, nil
}

// Compile-time interface check.
var _ domain.LedgerClient = (*RPCClient)(nil)
