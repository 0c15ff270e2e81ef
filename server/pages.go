package server

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-echarts/go-echarts/v2/render"
	"github.com/gohealthy/models"
	"github.com/gohealthy/viewmodel"
)

const assetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

const stylesheet = `
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; margin: 0 auto; max-width: 960px; padding: 1rem; background: #111; color: #eee; }
a { color: inherit; text-decoration: none; }
.card { display: block; margin: 1rem 0; padding: .75rem 1rem; border-radius: 16px; background: rgba(128,128,128,.5); }
.card h2 { margin: 0 0 .5rem; font-size: 1.1rem; }
.card.steps h2 { color: #5b8ff9; }
.card.heart h2 { color: #e8684a; }
.message { color: #f66; }
.muted { color: #999; }
form { display: inline; }
button { background: #333; color: #eee; border: 1px solid #555; border-radius: 8px; padding: .3rem .8rem; cursor: pointer; }
button.active { background: #5b8ff9; border-color: #5b8ff9; }
button:disabled { opacity: .4; cursor: default; }
.picker, .pager { margin: .75rem 0; display: flex; gap: .5rem; align-items: center; }
.pager span { flex: 1; text-align: center; }
.charts { background: #fff; border-radius: 12px; padding: .5rem; touch-action: pan-y; user-select: none; }
`

// pageWriter writes HTML and keeps the first error.
type pageWriter struct {
	w   io.Writer
	err error
}

func (p *pageWriter) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *pageWriter) text(s string) { p.raw(templ.EscapeString(s)) }

func page(title string, body func(p *pageWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &pageWriter{w: w}
		p.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		p.raw(`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		p.text(title)
		p.raw(`</title><script src="` + assetsHost + `echarts.min.js"></script>`)
		p.raw(`<script src="` + assetsHost + `themes/` + chartTheme + `.js"></script>`)
		p.raw(`<style>` + stylesheet + `</style></head><body>`)
		body(p)
		p.raw(`</body></html>`)
		return p.err
	})
}

type startView struct {
	State      viewmodel.ViewState
	TodaySteps string
	HeartRate  string
}

func startPage(v startView) templ.Component {
	return page("Health", func(p *pageWriter) {
		p.raw(`<h1>Health</h1>`)
		if msg := v.State.AuthorizationMessage; msg != "" {
			p.raw(`<p class="message">`)
			p.text(msg)
			p.raw(`</p>`)
		}
		if v.State.Auth == viewmodel.Authorizing {
			p.raw(`<p class="muted">Waiting for access to your health data...</p>`)
		}

		p.raw(`<a class="card steps" href="/steps"><h2>Steps</h2><p>Today: <strong>`)
		p.text(v.TodaySteps)
		p.raw(`</strong></p></a>`)

		p.raw(`<a class="card heart" href="/heart"><h2>Heart rate</h2><p>Latest: <strong>`)
		p.text(v.HeartRate)
		p.raw(`</strong></p></a>`)
	})
}

type detailView struct {
	Metric  models.Metric
	State   viewmodel.ViewState
	Caption string
	Summary string
	Error   string
	Empty   bool
	Charts  []render.ChartSnippet
}

func detailPage(v detailView) templ.Component {
	screen := screenName(v.Metric)
	title := "Steps"
	if v.Metric == models.MetricHeartRate {
		title = "Heart rate"
	}

	return page(title, func(p *pageWriter) {
		p.raw(`<form method="post" action="/back"><button type="submit">&lsaquo; Back</button></form>`)
		p.raw(`<h1>`)
		p.text(title)
		p.raw(`</h1>`)

		p.raw(`<div class="picker">`)
		for _, g := range models.Granularities {
			p.raw(`<form method="post" action="/granularity">`)
			hiddenScreen(p, screen)
			p.raw(`<button type="submit" name="granularity" value="` + g.String() + `"`)
			if g == v.State.Granularity {
				p.raw(` class="active"`)
			}
			p.raw(`>`)
			p.text(g.Label())
			p.raw(`</button></form>`)
		}
		p.raw(`</div>`)

		p.raw(`<div class="pager"><form method="post" action="/older">`)
		hiddenScreen(p, screen)
		p.raw(`<button type="submit">&lsaquo; Older</button></form><span>`)
		p.text(v.Caption)
		p.raw(`</span><form method="post" action="/newer">`)
		hiddenScreen(p, screen)
		p.raw(`<button type="submit"`)
		if v.State.Offset >= 0 {
			p.raw(` disabled`)
		}
		p.raw(`>Newer &rsaquo;</button></form></div>`)

		switch {
		case v.State.Auth != viewmodel.Authorized:
			p.raw(`<p class="muted">No access to health data yet. Go back to grant it.</p>`)
		case v.State.Pending > 0:
			p.raw(`<p class="muted">Loading...</p>`)
		case v.Error != "":
			p.raw(`<p class="message">`)
			p.text(v.Error)
			p.raw(`</p>`)
		case v.Empty:
			p.raw(`<p class="muted">No data for this period.</p>`)
		}

		p.raw(`<p class="summary">`)
		p.text(v.Summary)
		p.raw(`</p>`)

		p.raw(`<div id="charts" class="charts">`)
		for _, c := range v.Charts {
			p.raw(c.Element)
			p.raw(c.Script)
		}
		p.raw(`</div>`)

		p.raw(`<form id="drag" method="post" action="/drag">`)
		hiddenScreen(p, screen)
		p.raw(`<input type="hidden" name="dx" value="0"></form>`)
		p.raw(dragScript)
	})
}

var dragScript = `<script>(function () {
  var area = document.getElementById("charts"), form = document.getElementById("drag"), x = null;
  area.addEventListener("pointerdown", function (e) { x = e.clientX; });
  area.addEventListener("pointerup", function (e) {
    if (x === null) { return; }
    var dx = e.clientX - x;
    x = null;
    if (Math.abs(dx) > ` + strconv.Itoa(viewmodel.DragThreshold) + `) { form.dx.value = dx; form.submit(); }
  });
})();</script>`

func hiddenScreen(p *pageWriter, screen string) {
	p.raw(`<input type="hidden" name="screen" value="`)
	p.text(screen)
	p.raw(`">`)
}

func screenName(m models.Metric) string {
	if m == models.MetricHeartRate {
		return "heart"
	}
	return "steps"
}
