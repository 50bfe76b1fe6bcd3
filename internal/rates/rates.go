// Package rates provides USD exchange rates for supported currencies,
// fetched from a CoinGecko-style simple price API with caching.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tkaster/sentrypay/internal/circuitbreaker"
)

// DefaultTTL is how long a fetched rate is served before refreshing.
const DefaultTTL = 5 * time.Minute

// coinIDs maps supported currency codes to CoinGecko coin identifiers.
var coinIDs = map[string]string{
	"USDC": "usd-coin",
	"ETH":  "ethereum",
	"BTC":  "bitcoin",
}

type cachedRate struct {
	usd       float64
	fetchedAt time.Time
}

// Oracle caches USD rates per currency. Stablecoins that fail to fetch
// fall back to 1.0 so payment flows keep working without the API.
type Oracle struct {
	mu      sync.RWMutex
	baseURL string
	ttl     time.Duration
	client  *http.Client
	breaker *circuitbreaker.Breaker
	cache   map[string]cachedRate
}

// New creates a rate oracle against the given simple price endpoint.
func New(baseURL string, ttl time.Duration) *Oracle {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Oracle{
		baseURL: baseURL,
		ttl:     ttl,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		breaker: circuitbreaker.New(3, 30*time.Second),
		cache:   make(map[string]cachedRate),
	}
}

// USDRate returns the USD value of one unit of currency.
// Serves the cached rate while fresh, refetches when stale, and falls
// back to the last known rate (or 1.0 for stablecoins) on fetch errors.
func (o *Oracle) USDRate(ctx context.Context, currency string) float64 {
	currency = strings.ToUpper(currency)

	o.mu.RLock()
	cached, ok := o.cache[currency]
	o.mu.RUnlock()
	if ok && time.Since(cached.fetchedAt) < o.ttl {
		return cached.usd
	}

	// When the rate API is tripping the breaker, skip the fetch and serve
	// whatever we have. The half-open probe re-tests it after the cooldown.
	if !o.breaker.Allow(currency) {
		if ok && cached.usd > 0 {
			return cached.usd
		}
		return fallbackRate(currency)
	}

	rate, err := o.fetch(ctx, currency)
	if err != nil {
		o.breaker.RecordFailure(currency)
		if ok && cached.usd > 0 {
			return cached.usd
		}
		return fallbackRate(currency)
	}
	o.breaker.RecordSuccess(currency)

	o.mu.Lock()
	o.cache[currency] = cachedRate{usd: rate, fetchedAt: time.Now()}
	o.mu.Unlock()

	return rate
}

// Convert returns the USD value of amount units of currency.
func (o *Oracle) Convert(ctx context.Context, amount float64, currency string) float64 {
	return amount * o.USDRate(ctx, currency)
}

func (o *Oracle) fetch(ctx context.Context, currency string) (float64, error) {
	coinID, ok := coinIDs[currency]
	if !ok {
		return 0, fmt.Errorf("unsupported currency %q", currency)
	}

	endpoint := fmt.Sprintf("%s?ids=%s&vs_currencies=usd", o.baseURL, url.QueryEscape(coinID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate API returned status %d", resp.StatusCode)
	}

	var result map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode rate response: %w", err)
	}

	entry, ok := result[coinID]
	if !ok || entry.USD <= 0 {
		return 0, fmt.Errorf("invalid rate returned for %s", currency)
	}

	return entry.USD, nil
}

func fallbackRate(currency string) float64 {
	switch currency {
	case "USDC", "USDT", "DAI":
		return 1.0
	default:
		return 0
	}
}
