// Package ticker polls spot prices for the marketing site's price strip.
package ticker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gasamara891-boop/river/internal/system"
	"github.com/gasamara891-boop/river/pkg/logger"
)

var _ system.Service = (*Service)(nil)

const (
	defaultEndpoint = "https://api.coingecko.com/api/v3/simple/price"
	defaultInterval = 60 * time.Second

	maxPriceResponse = 1 << 20
)

// coins maps provider IDs to display symbols.
var coins = map[string]string{
	"bitcoin":      "BTC",
	"ethereum":     "ETH",
	"bitcoin-cash": "BCH",
	"litecoin":     "LTC",
	"solana":       "SOL",
	"dogecoin":     "DOGE",
}

// Quote is one asset's spot price.
type Quote struct {
	Symbol    string  `json:"symbol"`
	PriceUSD  float64 `json:"price_usd"`
	Change24h float64 `json:"change_24h"`
}

// Service fetches quotes on a fixed interval and serves the latest set.
// Fetch failures keep the previous quotes so the strip never goes blank on
// a provider hiccup.
type Service struct {
	client   *http.Client
	endpoint string
	interval time.Duration
	log      *logger.Logger

	onRefresh func()

	mu        sync.RWMutex
	quotes    []Quote
	updatedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
}

// New constructs the ticker service.
func New(client *http.Client, log *logger.Logger) *Service {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("ticker")
	}
	return &Service{
		client:   client,
		endpoint: defaultEndpoint,
		interval: defaultInterval,
		log:      log,
	}
}

// WithEndpoint overrides the price endpoint. Used by tests.
func (s *Service) WithEndpoint(endpoint string) *Service {
	s.endpoint = endpoint
	return s
}

// WithInterval overrides the poll interval.
func (s *Service) WithInterval(interval time.Duration) *Service {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// WithOnRefresh registers a callback invoked after each successful refresh.
func (s *Service) WithOnRefresh(fn func()) *Service {
	s.onRefresh = fn
	return s
}

func (s *Service) Name() string { return "price-ticker" }

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refresh(runCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				s.refresh(runCtx)
			}
		}
	}()

	s.log.Info("price ticker started")
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.log.Info("price ticker stopped")
	return nil
}

// Quotes returns the latest quote set, sorted by symbol, and when it was
// fetched. Empty until the first successful refresh.
func (s *Service) Quotes() ([]Quote, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Quote, len(s.quotes))
	copy(out, s.quotes)
	return out, s.updatedAt
}

func (s *Service) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	quotes, err := s.fetch(ctx)
	if err != nil {
		s.log.WithError(err).Warn("price refresh failed")
		return
	}

	s.mu.Lock()
	s.quotes = quotes
	s.updatedAt = time.Now().UTC()
	s.mu.Unlock()

	if s.onRefresh != nil {
		s.onRefresh()
	}
}

func (s *Service) fetch(ctx context.Context) ([]Quote, error) {
	ids := make([]string, 0, len(coins))
	for id := range coins {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPriceResponse))
	if err != nil {
		return nil, err
	}

	var raw map[string]struct {
		USD       float64 `json:"usd"`
		Change24h float64 `json:"usd_24h_change"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode prices: %w", err)
	}

	quotes := make([]Quote, 0, len(raw))
	for id, entry := range raw {
		symbol, ok := coins[id]
		if !ok {
			continue
		}
		quotes = append(quotes, Quote{
			Symbol:    symbol,
			PriceUSD:  entry.USD,
			Change24h: entry.Change24h,
		})
	}
	sort.Slice(quotes, func(i, j int) bool { return quotes[i].Symbol < quotes[j].Symbol })
	return quotes, nil
}
