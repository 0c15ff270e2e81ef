// Package config reads settings from .env, an optional gohealthy.yaml and
// GOHEALTHY_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/gohealthy/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
)

// Data sources.
const (
	SourceFitbit = "fitbit"
	SourceMemory = "memory"
)

type Config struct {
	Port    string
	DataDir string
	Source  string

	Fitbit FitbitConfig

	Calendar models.Calendar
	Language language.Tag

	LogFile  string
	LogLevel string

	OpenBrowser   bool
	SettleTimeout time.Duration

	// DemoDays and DemoLatency shape the in-memory store.
	DemoDays    int
	DemoLatency time.Duration
}

type FitbitConfig struct {
	ClientID     string
	ClientSecret string
	RedirectPort string
	Timeout      time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("data.dir", "fitbit_data")
	v.SetDefault("source", "")
	v.SetDefault("fitbit.client_id", "")
	v.SetDefault("fitbit.client_secret", "")
	v.SetDefault("fitbit.redirect_port", "8081")
	v.SetDefault("fitbit.timeout", "15s")
	v.SetDefault("calendar.timezone", "Local")
	v.SetDefault("calendar.first_weekday", "monday")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("log.level", "info")
	v.SetDefault("app.open_browser", true)
	v.SetDefault("app.settle_timeout", "3s")
	v.SetDefault("app.language", "en")
	v.SetDefault("demo.days", 400)
	v.SetDefault("demo.latency", "300ms")
}

// Load reads envFile, which may be missing, and builds the configuration.
func Load(envFile string) (*Config, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	v.SetConfigName("gohealthy")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("GOHEALTHY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// the names the Fitbit setup guide uses
	_ = v.BindEnv("fitbit.client_id", "FITBIT_ID", "GOHEALTHY_FITBIT_CLIENT_ID")
	_ = v.BindEnv("fitbit.client_secret", "FITBIT_SECRET", "GOHEALTHY_FITBIT_CLIENT_SECRET")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:    v.GetString("http.port"),
		DataDir: v.GetString("data.dir"),
		Fitbit: FitbitConfig{
			ClientID:     v.GetString("fitbit.client_id"),
			ClientSecret: v.GetString("fitbit.client_secret"),
			RedirectPort: v.GetString("fitbit.redirect_port"),
			Timeout:      v.GetDuration("fitbit.timeout"),
		},
		LogFile:       v.GetString("log.file"),
		LogLevel:      v.GetString("log.level"),
		OpenBrowser:   v.GetBool("app.open_browser"),
		SettleTimeout: v.GetDuration("app.settle_timeout"),
		DemoDays:      v.GetInt("demo.days"),
		DemoLatency:   v.GetDuration("demo.latency"),
	}

	source, err := pickSource(v.GetString("source"), cfg.Fitbit)
	if err != nil {
		return nil, err
	}
	cfg.Source = source

	loc, err := parseLocation(v.GetString("calendar.timezone"))
	if err != nil {
		return nil, err
	}
	weekday, err := parseWeekday(v.GetString("calendar.first_weekday"))
	if err != nil {
		return nil, err
	}
	cfg.Calendar = models.Calendar{Location: loc, FirstWeekday: weekday}

	tag, err := language.Parse(v.GetString("app.language"))
	if err != nil {
		return nil, fmt.Errorf("invalid language %q: %w", v.GetString("app.language"), err)
	}
	cfg.Language = tag

	if cfg.DemoDays < 1 {
		return nil, fmt.Errorf("demo.days must be positive, got %d", cfg.DemoDays)
	}
	return cfg, nil
}

// pickSource defaults to Fitbit when both client credentials are present.
func pickSource(source string, fb FitbitConfig) (string, error) {
	hasCredentials := fb.ClientID != "" && fb.ClientSecret != ""
	switch strings.ToLower(strings.TrimSpace(source)) {
	case "":
		if hasCredentials {
			return SourceFitbit, nil
		}
		return SourceMemory, nil
	case SourceMemory:
		return SourceMemory, nil
	case SourceFitbit:
		if !hasCredentials {
			return "", errors.New("source fitbit needs FITBIT_ID and FITBIT_SECRET")
		}
		return SourceFitbit, nil
	default:
		return "", fmt.Errorf("unknown source %q", source)
	}
}

func parseLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(strings.TrimSpace(s), d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid first weekday %q", s)
}
