package chain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"nhbvault/crypto"
)

// TxDomainV1 is the domain separator mixed into every signed mutation payload.
const TxDomainV1 = "NHB_VAULT_TX_V1"

// Config controls how the Client connects to the node RPC endpoint.
type Config struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
}

// Client talks JSON-RPC 2.0 to the node hosting the staking pool, the token
// ledgers, and the price oracle. Mutating calls are signed with the operator
// key so the node can attribute them to the vault service.
type Client struct {
	baseURL string
	bearer  string
	http    *http.Client
	key     *crypto.PrivateKey
}

// NewClient constructs a Client from the provided configuration and operator
// signing key. The key may be nil for read-only deployments.
func NewClient(cfg Config, key *crypto.PrivateKey) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, fmt.Errorf("chain client: base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		bearer:  strings.TrimSpace(cfg.BearerToken),
		http:    &http.Client{Timeout: timeout},
		key:     key,
	}, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *Client) call(method string, params any, result any) error {
	payload, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("chain client: marshal request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("chain client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chain client: %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("chain client: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chain client: %s: unexpected status %d", method, resp.StatusCode)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("chain client: decode response: %w", err)
	}
	if decoded.Error != nil {
		return fmt.Errorf("chain client: %s: %w", method, decoded.Error)
	}
	if result != nil {
		if err := json.Unmarshal(decoded.Result, result); err != nil {
			return fmt.Errorf("chain client: decode result: %w", err)
		}
	}
	return nil
}

// signedParams wraps mutation parameters with the operator signature over the
// domain-separated digest of their canonical JSON encoding.
type signedParams struct {
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature,omitempty"`
}

func (c *Client) signed(params any) (*signedParams, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("chain client: marshal payload: %w", err)
	}
	wrapped := &signedParams{Payload: payload}
	if c.key != nil {
		digest := sha256.Sum256(append([]byte(TxDomainV1), payload...))
		sig, err := c.key.Sign(digest[:])
		if err != nil {
			return nil, fmt.Errorf("chain client: sign payload: %w", err)
		}
		wrapped.Signature = hex.EncodeToString(sig)
	}
	return wrapped, nil
}

type amountResult struct {
	Amount string `json:"amount"`
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("chain client: invalid amount %q", raw)
	}
	return value, nil
}
