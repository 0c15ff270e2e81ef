package downloader

import (
	"sync"
	"time"

	"github.com/gohealthy/models"
)

const (
	// Fitbit keeps syncing a day for a while after it ends. A day fetched
	// this long after its end is final.
	finalAfter = 24 * time.Hour
	// cacheMaxAge bounds the life of a finished day that was not yet final.
	cacheMaxAge = time.Hour
)

type dayKey struct {
	metric models.Metric
	day    int64
}

// cachedDay is the intraday samples of one finished day.
type cachedDay struct {
	fetched time.Time
	samples []models.Sample
}

// dayCache keeps intraday downloads of finished days for the life of the
// process. Nothing is written to disk.
type dayCache struct {
	now func() time.Time

	mu   sync.Mutex
	days map[dayKey]cachedDay
}

func newDayCache() *dayCache {
	return &dayCache{now: time.Now, days: make(map[dayKey]cachedDay)}
}

// load returns the cached samples of day, or false when there are none or
// they may have changed since.
func (c *dayCache) load(metric models.Metric, day time.Time) ([]models.Sample, bool) {
	key := dayKey{metric: metric, day: day.Unix()}
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.days[key]
	if !ok {
		return nil, false
	}
	if !c.valid(cached, day) {
		delete(c.days, key)
		return nil, false
	}
	return cached.samples, true
}

func (c *dayCache) valid(cached cachedDay, day time.Time) bool {
	if !cached.fetched.Before(day.AddDate(0, 0, 1).Add(finalAfter)) {
		return true
	}
	return c.now().Sub(cached.fetched) <= cacheMaxAge
}

// save keeps the samples of a finished day. Days still in progress are skipped.
func (c *dayCache) save(metric models.Metric, day time.Time, samples []models.Sample) {
	now := c.now()
	if now.Before(day.AddDate(0, 0, 1)) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.days[dayKey{metric: metric, day: day.Unix()}] = cachedDay{fetched: now, samples: samples}
}
