package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/line-detector/internal/linepattern"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// patternAxis is the y-axis order of the transition chart.
var patternAxis = []linepattern.PatternType{
	linepattern.PatternNone,
	linepattern.PatternSingleLine,
	linepattern.PatternJunction1,
	linepattern.PatternJunction2,
	linepattern.PatternJunction3,
	linepattern.PatternLaneChange,
	linepattern.PatternBrake,
	linepattern.PatternAccelerate,
}

// handleFeatures renders the tracked features (offset against drift, sized
// by continuity score) above the recent pattern transitions.
// This is a debugging-only endpoint.
func (ws *WebServer) handleFeatures(w http.ResponseWriter, r *http.Request) {
	snap := ws.source.Snapshot()

	data := make([]opts.ScatterData, 0, len(snap.Features))
	maxAbs := 60.0
	for _, f := range snap.Features {
		maxAbs = math.Max(maxAbs, math.Abs(f.Offset))
		data = append(data, opts.ScatterData{
			Name:       fmt.Sprintf("born %.0fmm, %d hits", f.FirstSeen, f.Hits),
			Value:      []interface{}{f.Offset, f.Drift, f.Score},
			SymbolSize: 6 + int(math.Min(f.Score, 20)),
		})
	}
	pad := maxAbs * 1.1

	features := charts.NewScatter()
	features.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracked features", Width: "900px", Height: "420px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Tracked features",
			Subtitle: fmt.Sprintf("domain=%s pattern=%s distance=%.0fmm features=%d", ws.domain, snap.Pattern, snap.Distance, len(data)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "offset (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: 1, Name: "drift (mm/mm)", NameLocation: "middle", NameGap: 35}),
	)
	features.AddSeries("features", data)

	names := make([]string, len(patternAxis))
	index := make(map[linepattern.PatternType]int, len(patternAxis))
	for i, t := range patternAxis {
		names[i] = t.String()
		index[t] = i
	}
	history := ws.hub.History()
	points := make([]opts.ScatterData, 0, len(history))
	for _, c := range history {
		points = append(points, opts.ScatterData{
			Name:       c.Pattern.String(),
			Value:      []interface{}{c.Distance, index[c.Pattern.Type]},
			SymbolSize: 10,
		})
	}

	transitions := charts.NewScatter()
	transitions.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Pattern transitions", Subtitle: fmt.Sprintf("last %d", len(points))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "distance (mm)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: names}),
	)
	transitions.AddSeries("transitions", points)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(features, transitions)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
