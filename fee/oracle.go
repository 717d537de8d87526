package fee

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// DefaultFallbackRate is the conservative sat/vbyte rate used when the
// oracle cannot be reached.
const DefaultFallbackRate = uint64(10)

// DefaultOracleTimeout bounds a single oracle lookup.
const DefaultOracleTimeout = 5 * time.Second

// recommendedFees mirrors the mempool-style fee/recommended response. Only
// the economy rate is consumed.
type recommendedFees struct {
	EconomyFee uint64 `json:"economyFee"`
}

// Oracle queries a fee-rate endpoint with a hard timeout and degrades to a
// fallback rate on any failure. It never blocks beyond its timeout and never
// returns an error: a purchase must not fail because the oracle is down.
type Oracle struct {
	url      string
	fallback uint64
	client   *http.Client
}

// NewOracle creates an Oracle for the given fee/recommended URL. Zero
// fallback or timeout values are replaced by the package defaults.
func NewOracle(url string, fallback uint64, timeout time.Duration) *Oracle {
	if fallback == 0 {
		fallback = DefaultFallbackRate
	}
	if timeout <= 0 {
		timeout = DefaultOracleTimeout
	}
	return &Oracle{
		url:      url,
		fallback: fallback,
		client:   &http.Client{Timeout: timeout},
	}
}

// Recommended returns the oracle's economy rate in sat/vbyte, or the
// fallback rate if the oracle is unreachable, times out, or responds with
// garbage or a zero rate.
func (o *Oracle) Recommended(ctx context.Context) uint64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return o.fallback
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return o.fallback
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return o.fallback
	}

	var fees recommendedFees
	if err := json.NewDecoder(resp.Body).Decode(&fees); err != nil {
		return o.fallback
	}
	if fees.EconomyFee == 0 {
		return o.fallback
	}
	return fees.EconomyFee
}
