package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mailgun/holster/v4/syncutil"
	"github.com/ssgreg/repeat"

	"github.com/TxnLab/stakeplan/internal/lib/allocation"
	"github.com/TxnLab/stakeplan/internal/lib/misc"
)

const (
	DefaultMaxTries      = 5
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultMaxRetryDelay = 5 * time.Second
	DefaultMaxConcurrent = 8

	apiKeyHeader = "0x-api-key"
)

type ClientConfig struct {
	BaseURL string
	// Optional - sent as the 0x-api-key header if set
	APIKey     string
	HTTPClient *http.Client

	// Total requests per fetch, including the first
	MaxTries      int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// Max number of parallel requests when fetching pools individually
	MaxConcurrent int
}

// Client fetches pool statistics from the staking backend.  Transient failures (network errors,
// 429s, 5xx's) are retried w/ jittered backoff.
type Client struct {
	logger  *slog.Logger
	baseURL *url.URL
	cfg     ClientConfig
}

func NewClient(logger *slog.Logger, cfg ClientConfig) (*Client, error) {
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse url:%v, error:%w", cfg.BaseURL, err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("staking backend url must be http(s), got:%s", cfg.BaseURL)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxTries <= 0 {
		cfg.MaxTries = DefaultMaxTries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = max(DefaultMaxRetryDelay, cfg.RetryDelay)
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	misc.Infof(logger, "staking backend at:%s, api key:%s", baseURL.String(), misc.MaskSecret(cfg.APIKey))
	return &Client{logger: logger, baseURL: baseURL, cfg: cfg}, nil
}

// StakingPools implements Provider
func (c *Client) StakingPools(ctx context.Context) ([]allocation.StakingPool, error) {
	records, err := c.FetchPools(ctx)
	if err != nil {
		return nil, err
	}
	return toStakingPools(records), nil
}

// FetchPools returns every pool known to the backend.
func (c *Client) FetchPools(ctx context.Context) ([]PoolWithStats, error) {
	var resp poolsResponse
	if err := c.getWithRetry(ctx, "/staking/pools", &resp); err != nil {
		return nil, err
	}
	if resp.StakingPools == nil {
		return nil, fmt.Errorf("%w: missing stakingPools", ErrBadResponse)
	}
	return resp.StakingPools, nil
}

// FetchPool returns a single pool by id.
func (c *Client) FetchPool(ctx context.Context, poolID string) (PoolWithStats, error) {
	var resp poolResponse
	if err := c.getWithRetry(ctx, "/staking/pools/"+url.PathEscape(poolID), &resp); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return PoolWithStats{}, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
		}
		return PoolWithStats{}, fmt.Errorf("fetching pool %s: %w", poolID, err)
	}
	if resp.StakingPool.PoolID == "" {
		return PoolWithStats{}, fmt.Errorf("%w: pool %s missing from response", ErrBadResponse, poolID)
	}
	return resp.StakingPool, nil
}

// FetchPoolsByID fetches the given pools in parallel (bounded by MaxConcurrent), returning
// them in the order requested.  The first failure is returned if any fetch fails.
func (c *Client) FetchPoolsByID(ctx context.Context, poolIDs []string) ([]allocation.StakingPool, error) {
	var (
		fanOut = syncutil.NewFanOut(c.cfg.MaxConcurrent)
		pools  = make([]allocation.StakingPool, len(poolIDs))
	)
	for i := range poolIDs {
		fanOut.Run(func(val any) error {
			idx := val.(int)
			rec, err := c.FetchPool(ctx, poolIDs[idx])
			if err != nil {
				return err
			}
			pools[idx] = rec.StakingPool()
			return nil
		}, i)
	}
	if errs := fanOut.Wait(); len(errs) > 0 {
		return nil, errs[0]
	}
	return pools, nil
}

func (c *Client) getWithRetry(ctx context.Context, path string, out any) error {
	var lastErr error
	err := repeat.Repeat(
		repeat.Fn(func() error {
			lastErr = c.get(ctx, path, out)
			if lastErr != nil && isTemporary(ctx, lastErr) {
				return repeat.HintTemporary(lastErr)
			}
			return lastErr
		}),
		repeat.StopOnSuccess(),
		// repeat counts retries, not requests
		repeat.LimitMaxTries(c.cfg.MaxTries-1),
		repeat.FnOnError(func(err error) error {
			misc.Warnf(c.logger, "retrying fetch of %s, error:%v", path, err)
			return err
		}),
		repeat.WithDelay(
			repeat.SetContext(ctx),
			(&repeat.FullJitterBackoffBuilder{
				BaseDelay: c.cfg.RetryDelay,
				MaxDelay:  c.cfg.MaxRetryDelay,
			}).Set(),
		),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if lastErr != nil {
		return lastErr
	}
	return err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return nil
}

func isTemporary(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	// decode failures aren't going to fix themselves
	if errors.Is(err, ErrBadResponse) {
		return false
	}
	// transport level failure (connection refused, reset, timeout..)
	return true
}
