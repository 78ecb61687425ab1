package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zkp2p/peercard/internal/config"
	"github.com/zkp2p/peercard/internal/model"
	"github.com/zkp2p/peercard/internal/validation"
)

// ErrStatsUnavailable wraps every stats failure: missing record, transport error or bad data
var ErrStatsUnavailable = errors.New("stats unavailable")

// StatsProvider returns the maker statistics of an address
type StatsProvider interface {
	FetchStats(ctx context.Context, addr common.Address) (model.StatsRecord, error)
}

// StatsClient implements a client for the maker stats API
type StatsClient struct {
	baseURL    string
	apiKey     string
	httpClient *retryablehttp.Client
}

// NewStatsClient creates a new stats API client
func NewStatsClient(cfg config.Config, opts HTTPOptions) *StatsClient {
	return &StatsClient{
		baseURL:    cfg.StatsURL,
		apiKey:     cfg.StatsAPIKey,
		httpClient: NewRetryClient(opts),
	}
}

// FetchStats retrieves the stats record of addr.
func (c *StatsClient) FetchStats(ctx context.Context, addr common.Address) (model.StatsRecord, error) {
	endpoint := fmt.Sprintf("%s/v1/makers/%s/stats", c.baseURL, addr.Hex())
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.StatsRecord{}, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	logrus.Debugf("Fetching maker stats: %s", endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.StatsRecord{}, fmt.Errorf("%w: error fetching stats: %v", ErrStatsUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.StatsRecord{}, fmt.Errorf("%w: no stats for %s", ErrStatsUnavailable, addr.Hex())
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return model.StatsRecord{}, fmt.Errorf("%w: status %d, body: %s", ErrStatsUnavailable, resp.StatusCode, string(body))
	}

	// Amounts may arrive as JSON numbers or strings
	var response struct {
		Volume   decimal.Decimal `json:"volume"`
		Profit   decimal.Decimal `json:"profit"`
		Deposits int64           `json:"deposits"`
		Currency string          `json:"currency"`
		Platform string          `json:"platform"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return model.StatsRecord{}, fmt.Errorf("%w: error decoding response: %v", ErrStatsUnavailable, err)
	}

	stats := model.StatsRecord{
		Volume:   response.Volume,
		Profit:   response.Profit,
		Deposits: response.Deposits,
		Currency: response.Currency,
		Platform: response.Platform,
	}
	if err := validation.ValidateStats(stats); err != nil {
		return model.StatsRecord{}, fmt.Errorf("%w: %v", ErrStatsUnavailable, err)
	}

	logrus.WithFields(logrus.Fields{
		"address":  addr.Hex(),
		"volume":   stats.Volume.String(),
		"deposits": stats.Deposits,
	}).Debug("Received maker stats")
	return stats, nil
}
