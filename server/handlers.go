package server

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/a-h/templ"
	"github.com/gohealthy/models"
	"github.com/gohealthy/viewmodel"
	"go.uber.org/zap"
)

// settle waits, bounded by SettleTimeout, for the state following version.
func (s *Server) settle(r *http.Request, version uint64) viewmodel.ViewState {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SettleTimeout)
	defer cancel()
	return s.binding.WaitSettled(ctx, version)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	_, version := s.binding.Snapshot()
	s.vm.OnScreenEnter()
	state := s.settle(r, version)

	view := startView{
		State:      state,
		TodaySteps: s.printer.Sprintf("%d steps", int64(math.Round(state.TodaySteps(s.cfg.Now())))),
		HeartRate:  s.printer.Sprintf("%d bpm", int64(math.Round(state.LatestHeartRate()))),
	}
	templ.Handler(startPage(view)).ServeHTTP(w, r)
}

func (s *Server) handleDetail(m models.Metric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, _ := s.binding.Snapshot()
		templ.Handler(detailPage(s.detailView(m, state))).ServeHTTP(w, r)
	}
}

func (s *Server) detailView(m models.Metric, state viewmodel.ViewState) detailView {
	series, errText := state.Series(m)
	data := models.BuildChartData(m, state.Granularity, state.Window, series, s.cfg.Language)

	var summary string
	if m == models.MetricHeartRate {
		summary = s.printer.Sprintf("Average: %d bpm", int64(math.Round(series.Average())))
	} else {
		summary = s.printer.Sprintf("Total: %d steps", int64(math.Round(series.Total())))
	}

	return detailView{
		Metric:  m,
		State:   state,
		Caption: data.Subtitle,
		Summary: summary,
		Error:   errText,
		Empty:   len(series) == 0,
		Charts:  chartSnippets(data, m),
	}
}

// command runs a coordinator command, waits for it to settle and sends the
// browser back to the screen it came from.
func (s *Server) command(run func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, version := s.binding.Snapshot()
		run()
		s.settle(r, version)
		http.Redirect(w, r, returnPath(r), http.StatusSeeOther)
	}
}

func (s *Server) handleGranularity(w http.ResponseWriter, r *http.Request) {
	g, err := models.ParseGranularity(r.FormValue("granularity"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.command(func() { s.vm.OnGranularityChanged(g) })(w, r)
}

func (s *Server) handleDrag(w http.ResponseWriter, r *http.Request) {
	dx, err := strconv.ParseFloat(r.FormValue("dx"), 64)
	if err != nil || math.IsNaN(dx) || math.IsInf(dx, 0) {
		http.Error(w, "Invalid dx value", http.StatusBadRequest)
		return
	}
	s.command(func() { s.vm.OnDrag(dx) })(w, r)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	_, version := s.binding.Snapshot()
	s.vm.OnScreenExit()
	s.settle(r, version)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func returnPath(r *http.Request) string {
	switch r.FormValue("screen") {
	case "steps":
		return "/steps"
	case "heart":
		return "/heart"
	default:
		return "/"
	}
}

type pointJSON struct {
	Start string  `json:"start"`
	Value float64 `json:"value"`
}

type seriesJSON struct {
	Points  []pointJSON `json:"points"`
	Error   string      `json:"error,omitempty"`
	Latest  float64     `json:"latest"`
	Total   float64     `json:"total"`
	Average float64     `json:"average"`
}

type stateJSON struct {
	Version              uint64     `json:"version"`
	Auth                 string     `json:"auth"`
	AuthorizationMessage string     `json:"authorization_message,omitempty"`
	Granularity          string     `json:"granularity"`
	Offset               int        `json:"offset"`
	WindowStart          string     `json:"window_start,omitempty"`
	WindowEnd            string     `json:"window_end,omitempty"`
	Pending              int        `json:"pending"`
	TodaySteps           float64    `json:"today_steps"`
	Steps                seriesJSON `json:"steps"`
	HeartRate            seriesJSON `json:"heart_rate"`
}

func newSeriesJSON(series models.Series, errText string, loc *time.Location) seriesJSON {
	out := seriesJSON{
		Points:  make([]pointJSON, 0, len(series)),
		Error:   errText,
		Latest:  series.Latest(),
		Total:   series.Total(),
		Average: series.Average(),
	}
	for _, p := range series.Points(loc) {
		out.Points = append(out.Points, pointJSON{Start: p.Start.Format(time.RFC3339), Value: p.Value})
	}
	return out
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state, version := s.binding.Snapshot()
	loc := state.Window.Start.Location()

	out := stateJSON{
		Version:              version,
		Auth:                 state.Auth.String(),
		AuthorizationMessage: state.AuthorizationMessage,
		Granularity:          state.Granularity.String(),
		Offset:               state.Offset,
		Pending:              state.Pending,
		TodaySteps:           state.TodaySteps(s.cfg.Now()),
		Steps:                newSeriesJSON(state.StepsSeries, state.StepsError, loc),
		HeartRate:            newSeriesJSON(state.HeartRateSeries, state.HeartRateError, loc),
	}
	if !state.Window.Start.IsZero() {
		out.WindowStart = state.Window.Start.Format(time.RFC3339)
		out.WindowEnd = state.Window.End.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.Warn("failed to write state", zap.Error(err))
	}
}
