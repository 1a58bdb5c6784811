// Package relayer is the client side of the relayer HTTP contract: a
// third party submits the withdrawal so the prover's address never
// appears on-chain.
package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/veilswap/veilswap-go/zkproof"
)

// ErrRelayRejected reports a well-formed response with success=false.
var ErrRelayRejected = errors.New("relayer: relay rejected")

// SwapRoute is the pool routing block forwarded verbatim to the router.
type SwapRoute struct {
	PoolKey           string `json:"poolKey"`
	ZeroForOne        bool   `json:"zeroForOne"`
	AmountSpecified   string `json:"amountSpecified"`
	SqrtPriceLimitX96 string `json:"sqrtPriceLimitX96"`
}

// RelayRequest is the POST /relay body.
type RelayRequest struct {
	Proof struct {
		A [2]string    `json:"a"`
		B [2][2]string `json:"b"`
		C [2]string    `json:"c"`
	} `json:"proof"`
	PublicSignals [8]string `json:"publicSignals"`
	SwapParams    SwapRoute `json:"swapParams"`
}

// NewRelayRequest shapes a contract-formatted proof into the relay body.
func NewRelayRequest(proof *zkproof.ContractProof, route SwapRoute) *RelayRequest {
	req := &RelayRequest{PublicSignals: proof.PubSignals, SwapParams: route}
	req.Proof.A = proof.PA
	req.Proof.B = proof.PB
	req.Proof.C = proof.PC
	return req
}

// RelayResponse is the POST /relay result.
type RelayResponse struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Info is the GET /info result.
type Info struct {
	Address string `json:"address"`
	Fee     uint64 `json:"fee"`
}

// Client talks to one relayer endpoint. Callers impose deadlines through
// the context; the client sets no implicit timeout.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(baseURL string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		logger:  logger,
	}
}

// Relay submits a proof for on-chain execution and returns the relayer's
// transaction hash.
func (c *Client) Relay(ctx context.Context, req *RelayRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("relayer: marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/relay", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("relayer: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("relayer: relay: %w", err)
	}
	defer resp.Body.Close()

	var out RelayResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("relayer: decode response (status %d): %w", resp.StatusCode, err)
	}
	if !out.Success {
		return "", fmt.Errorf("%w: %s", ErrRelayRejected, out.Error)
	}
	c.logger.Info().Str("tx", out.TxHash).Msg("relay accepted")
	return out.TxHash, nil
}

// Info fetches the relayer's fee address and fee in basis points.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/info", nil)
	if err != nil {
		return nil, fmt.Errorf("relayer: build request: %w", err)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("relayer: info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("relayer: info: status %d", resp.StatusCode)
	}
	var info Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("relayer: decode info: %w", err)
	}
	return &info, nil
}

// Health reports whether the relayer answers its health endpoint with a
// 2xx. Degrades to false on any failure, never an error.
func (c *Client) Health(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
