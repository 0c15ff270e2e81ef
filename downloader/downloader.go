// Package downloader reads step and heart rate series from the Fitbit Web API.
package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cli/browser"
	"github.com/gohealthy/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/fitbit"
)

const DefaultBaseURL = "https://api.fitbit.com"

// Config holds the application configuration
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectPort string
	DataDir      string
	Timeout      time.Duration
	BaseURL      string
	// Location is used to read the dates Fitbit reports in the user's zone.
	Location *time.Location
}

// Downloader manages downloading Fitbit data
type Downloader struct {
	cfg     Config
	log     *zap.Logger
	oauth   *oauth2.Config
	breaker *gobreaker.CircuitBreaker
	openURL func(string) error
	source  oauth2.TokenSource
	cache   *dayCache

	mu     sync.Mutex
	client *http.Client
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithTokenSource skips the stored token and the browser flow.
func WithTokenSource(src oauth2.TokenSource) Option {
	return func(d *Downloader) { d.source = src }
}

// WithEndpoint replaces the Fitbit OAuth endpoint.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(d *Downloader) { d.oauth.Endpoint = e }
}

// WithClock replaces time.Now when deciding which days are finished.
func WithClock(now func() time.Time) Option {
	return func(d *Downloader) { d.cache.now = now }
}

// WithBrowser replaces the function that opens the consent page.
func WithBrowser(open func(string) error) Option {
	return func(d *Downloader) { d.openURL = open }
}

// New creates a downloader and its data directory.
func New(cfg Config, log *zap.Logger, opts ...Option) (*Downloader, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RedirectPort == "" {
		cfg.RedirectPort = "8081"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	d := &Downloader{
		cfg: cfg,
		log: log,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     fitbit.Endpoint,
			Scopes:       scopes,
		},
		openURL: browser.OpenURL,
		cache:   newDayCache(),
	}
	d.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fitbit",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// RequestAuthorization loads the stored token or, failing that, asks the user
// through the browser. It is a no-op once a client exists.
func (d *Downloader) RequestAuthorization(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return nil
	}

	// The client outlives the request that created it.
	clientCtx := d.oauthContext(context.WithoutCancel(ctx))

	src := d.source
	if src == nil {
		tok, err := loadTokenInfo(d.cfg.DataDir)
		if err != nil {
			d.log.Info("no stored token, starting authorization flow", zap.Error(err))
			tok, err = d.authorize(ctx)
			if err != nil {
				return err
			}
			if err := saveTokenInfo(d.cfg.DataDir, tok); err != nil {
				return fmt.Errorf("failed to save token information: %w", err)
			}
		}
		src = newSavingTokenSource(d.oauth.TokenSource(clientCtx, tok), d.cfg.DataDir, tok, d.log)
	}

	d.client = oauth2.NewClient(clientCtx, src)
	d.client.Timeout = d.cfg.Timeout
	return nil
}

func (d *Downloader) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: d.cfg.Timeout})
}

func (d *Downloader) httpClient() *http.Client {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.client
}

func resource(m models.Metric) string {
	if m == models.MetricHeartRate {
		return "heart"
	}
	return "steps"
}

// FetchSeries downloads metric over [start, end) and aggregates it into
// buckets of width w. Sub-daily widths read the per-minute intraday series
// one day at a time; wider ones read the daily summary of the whole range.
func (d *Downloader) FetchSeries(ctx context.Context, metric models.Metric, w models.BucketWidth, start, end time.Time) (models.Series, error) {
	if !metric.IsValid() {
		return models.Series{}, nil
	}
	client := d.httpClient()
	if client == nil {
		return nil, ErrNotAuthorized
	}

	loc := start.Location()
	var samples []models.Sample
	if w.SubDaily() {
		y, m, dd := start.Date()
		for day := time.Date(y, m, dd, 0, 0, 0, 0, loc); day.Before(end); day = day.AddDate(0, 0, 1) {
			daySamples, err := d.downloadIntraday(ctx, client, metric, day)
			if err != nil {
				return nil, err
			}
			samples = append(samples, daySamples...)
		}
	} else {
		var err error
		samples, err = d.downloadDaily(ctx, client, metric, start, end)
		if err != nil {
			return nil, err
		}
	}

	d.log.Debug("downloaded samples",
		zap.Stringer("metric", metric),
		zap.Stringer("bucket", w),
		zap.Time("start", start),
		zap.Int("samples", len(samples)))
	return models.Aggregate(samples, models.Window{Start: start, End: end}, w, metric.Aggregation()), nil
}

func (d *Downloader) downloadIntraday(ctx context.Context, client *http.Client, metric models.Metric, day time.Time) ([]models.Sample, error) {
	log := d.log.With(zap.Stringer("metric", metric), zap.Time("day", day))
	if samples, ok := d.cache.load(metric, day); ok {
		log.Debug("intraday day served from cache")
		return samples, nil
	}

	endpoint := fmt.Sprintf("%s/1/user/-/activities/%s/date/%s/1d/1min.json",
		d.cfg.BaseURL, resource(metric), day.Format("2006-01-02"))

	var data intradayResponse
	if err := d.getJSON(ctx, client, endpoint, &data); err != nil {
		return nil, fmt.Errorf("failed to download %s data: %w", metric.Title(), err)
	}
	samples := data.Intraday.Samples(day)
	d.cache.save(metric, day, samples)
	return samples, nil
}

func (d *Downloader) downloadDaily(ctx context.Context, client *http.Client, metric models.Metric, start, end time.Time) ([]models.Sample, error) {
	last := end.AddDate(0, 0, -1)
	endpoint := fmt.Sprintf("%s/1/user/-/activities/%s/date/%s/%s.json",
		d.cfg.BaseURL, resource(metric), start.Format("2006-01-02"), last.Format("2006-01-02"))

	loc := start.Location()
	switch metric {
	case models.MetricHeartRate:
		var data ActivitiesHeartList
		if err := d.getJSON(ctx, client, endpoint, &data); err != nil {
			return nil, fmt.Errorf("failed to download heart rate data: %w", err)
		}
		return data.Samples(loc), nil
	default:
		var data ActivityData
		if err := d.getJSON(ctx, client, endpoint, &data); err != nil {
			return nil, fmt.Errorf("failed to download %s data: %w", metric.Title(), err)
		}
		return data.Samples(loc), nil
	}
}

// getJSON fetches endpoint through the circuit breaker and decodes the body into out.
func (d *Downloader) getJSON(ctx context.Context, client *http.Client, endpoint string, out any) error {
	_, err := d.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request for %s: %w", endpoint, err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request for %s failed: %w", endpoint, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
			if retryAfter == 0 {
				retryAfter = 3600
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			return nil, &RateLimitError{RetryAfter: retryAfter, Message: string(bodyBytes)}
		}
		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("%s returned %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to parse JSON for %s: %w", endpoint, err)
		}
		return nil, nil
	})
	return err
}
