package downloader

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gohealthy/models"
)

// ActivityData is a daily time series such as activities/steps/date/{start}/{end}.json.
type ActivityData struct {
	ActivityType string
	Activities   []ActivityEntry
}

type ActivityEntry struct {
	DateTime string `json:"dateTime"`
	Value    string `json:"value"`
}

// UnmarshalJSON implements custom unmarshalling for ActivityData to handle Fitbit's activity data structure.
func (a *ActivityData) UnmarshalJSON(data []byte) error {
	var temp map[string]json.RawMessage
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	for key, raw := range temp {
		if strings.HasSuffix(key, "-intraday") {
			continue
		}
		if err := json.Unmarshal(raw, &a.Activities); err != nil {
			return fmt.Errorf("failed to parse %s: %w", key, err)
		}
		a.ActivityType = strings.TrimPrefix(key, "activities-")
		break
	}

	return nil
}

// Samples converts the daily entries into samples at local midnight.
// Entries that fail to parse are skipped.
func (a *ActivityData) Samples(loc *time.Location) []models.Sample {
	samples := make([]models.Sample, 0, len(a.Activities))
	for _, entry := range a.Activities {
		day, err := time.ParseInLocation("2006-01-02", entry.DateTime, loc)
		if err != nil {
			continue
		}
		val, err := strconv.ParseFloat(entry.Value, 64)
		if err != nil {
			continue
		}
		samples = append(samples, models.Sample{Time: day, Value: val})
	}
	return samples
}

// ActivitiesHeartList is the daily heart rate summary of activities/heart/date/{start}/{end}.json.
type ActivitiesHeartList struct {
	ActivitiesHeart []struct {
		DateTime string `json:"dateTime"`
		Value    struct {
			HeartRateZones []struct {
				CaloriesOut float64 `json:"caloriesOut"`
				Max         int     `json:"max"`
				Min         int     `json:"min"`
				Minutes     int     `json:"minutes"`
				Name        string  `json:"name"`
			} `json:"heartRateZones"`
			RestingHeartRate int `json:"restingHeartRate"`
		} `json:"value"`
	} `json:"activities-heart"`
}

// Samples returns one resting heart rate sample per day that has one.
func (h *ActivitiesHeartList) Samples(loc *time.Location) []models.Sample {
	samples := make([]models.Sample, 0, len(h.ActivitiesHeart))
	for _, entry := range h.ActivitiesHeart {
		if entry.Value.RestingHeartRate <= 0 {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", entry.DateTime, loc)
		if err != nil {
			continue
		}
		samples = append(samples, models.Sample{Time: day, Value: float64(entry.Value.RestingHeartRate)})
	}
	return samples
}

// IntradayData is the "-intraday" part of a 1d/1min response.
type IntradayData struct {
	Dataset []struct {
		Time  string  `json:"time"`
		Value float64 `json:"value"`
	} `json:"dataset"`
	DatasetInterval int    `json:"datasetInterval"`
	DatasetType     string `json:"datasetType"`
}

// intradayResponse picks the activities-*-intraday object out of the payload,
// whatever resource it belongs to.
type intradayResponse struct {
	Intraday IntradayData
}

func (r *intradayResponse) UnmarshalJSON(data []byte) error {
	var temp map[string]json.RawMessage
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}
	for key, raw := range temp {
		if strings.HasSuffix(key, "-intraday") {
			return json.Unmarshal(raw, &r.Intraday)
		}
	}
	return nil
}

// Samples places each dataset entry on day. Zero readings are dropped: the
// intraday step series reports every minute, including the idle ones.
func (d *IntradayData) Samples(day time.Time) []models.Sample {
	y, m, dd := day.Date()
	samples := make([]models.Sample, 0, len(d.Dataset))
	for _, entry := range d.Dataset {
		clock, err := time.Parse("15:04:05", entry.Time)
		if err != nil || entry.Value == 0 {
			continue
		}
		t := time.Date(y, m, dd, clock.Hour(), clock.Minute(), clock.Second(), 0, day.Location())
		samples = append(samples, models.Sample{Time: t, Value: entry.Value})
	}
	return samples
}
