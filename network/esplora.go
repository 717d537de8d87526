package network

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/ordmarketorg/libordmarket-go/utxo"
)

// EsploraClient talks to an esplora-compatible indexer (mempool-style REST
// API) for UTXO lookup, transaction status, and broadcast.
type EsploraClient struct {
	baseURL string
	params  *chaincfg.Params
	client  *http.Client
}

// Compile-time interface check.
var _ Service = (*EsploraClient)(nil)

// NewEsploraClient creates a client for the indexer at baseURL (without a
// trailing slash). A zero timeout defaults to 30 seconds.
func NewEsploraClient(baseURL string, params *chaincfg.Params, timeout time.Duration) *EsploraClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EsploraClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		params:  params,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// esploraUTXO mirrors the raw address/:addr/utxo entry. The indexer does not
// echo the locking script; it is derived from the queried address.
type esploraUTXO struct {
	TxID   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Value  uint64 `json:"value"`
	Status struct {
		Confirmed bool `json:"confirmed"`
	} `json:"status"`
}

// esploraTx mirrors the subset of tx/:txid consumed here.
type esploraTx struct {
	TxID string `json:"txid"`
	Vout []struct {
		ScriptPubKey        string `json:"scriptpubkey"`
		ScriptPubKeyAddress string `json:"scriptpubkey_address"`
		Value               uint64 `json:"value"`
	} `json:"vout"`
	Status TxStatus `json:"status"`
}

// ListUnspent fetches and normalizes all unspent outputs for address. Every
// returned UTXO carries the address and its derived locking script.
func (c *EsploraClient) ListUnspent(ctx context.Context, address string) ([]utxo.UTXO, error) {
	addr, err := btcutil.DecodeAddress(address, c.params)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, address, err)
	}
	pkScript, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: script for %q: %w", ErrInvalidAddress, address, err)
	}

	var raw []esploraUTXO
	if err := c.get(ctx, "/address/"+address+"/utxo", &raw); err != nil {
		return nil, err
	}

	out := make([]utxo.UTXO, 0, len(raw))
	for _, e := range raw {
		out = append(out, utxo.UTXO{
			TxID:     e.TxID,
			Vout:     e.Vout,
			Value:    e.Value,
			Address:  address,
			PkScript: pkScript,
		})
	}
	return out, nil
}

// GetOutput fetches the transaction and returns its vout'th output.
func (c *EsploraClient) GetOutput(ctx context.Context, txid string, vout uint32) (*utxo.UTXO, error) {
	var tx esploraTx
	if err := c.get(ctx, "/tx/"+txid, &tx); err != nil {
		return nil, err
	}
	if int(vout) >= len(tx.Vout) {
		return nil, fmt.Errorf("%w: %s has no output %d", ErrTxNotFound, txid, vout)
	}
	o := tx.Vout[vout]
	pkScript, err := decodeHex(o.ScriptPubKey)
	if err != nil {
		return nil, fmt.Errorf("%w: scriptpubkey of %s:%d: %w", ErrInvalidResponse, txid, vout, err)
	}
	return &utxo.UTXO{
		TxID:     txid,
		Vout:     vout,
		Value:    o.Value,
		Address:  o.ScriptPubKeyAddress,
		PkScript: pkScript,
	}, nil
}

// BroadcastTx posts the raw transaction hex to the relay endpoint.
func (c *EsploraClient) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tx", strings.NewReader(rawTxHex))
	if err != nil {
		return "", fmt.Errorf("network: create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrBroadcastRejected, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return strings.TrimSpace(string(body)), nil
}

// GetTxStatus returns the confirmation status of txid.
func (c *EsploraClient) GetTxStatus(ctx context.Context, txid string) (*TxStatus, error) {
	var status TxStatus
	if err := c.get(ctx, "/tx/"+txid+"/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// get performs a GET against the indexer and decodes the JSON response.
func (c *EsploraClient) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("network: create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrTxNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: HTTP %d: %s", ErrConnectionFailed, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrInvalidResponse, path, err)
	}
	return nil
}

// decodeHex decodes a hex string, tolerating the empty string.
func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}
