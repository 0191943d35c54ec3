package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/planemesh/internal/mesh3d"
	"github.com/banshee-data/planemesh/internal/mesher"
	"github.com/banshee-data/planemesh/internal/planes"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// vertexSeries groups vertex XY positions by the first plane that claims
// them. Vertices on no plane go to the "unclustered" series, returned
// first.
func vertexSeries(snap mesher.Snapshot) (names []string, series [][]opts.ScatterData, extent float64) {
	owner := make(map[mesh3d.LandmarkID]int, len(snap.Vertices))
	for i, p := range snap.Planes {
		for _, id := range p.LandmarkIDs {
			if _, ok := owner[id]; !ok {
				owner[id] = i + 1
			}
		}
	}

	series = make([][]opts.ScatterData, len(snap.Planes)+1)
	names = make([]string, len(snap.Planes)+1)
	names[0] = "unclustered"
	for i, p := range snap.Planes {
		names[i+1] = fmt.Sprintf("%s (%s)", p.ID, p.Cluster)
	}

	extent = 1
	for _, v := range snap.Vertices {
		x, y := v.Position.X, v.Position.Y
		extent = math.Max(extent, math.Max(math.Abs(x), math.Abs(y)))
		idx := owner[v.LandmarkID]
		series[idx] = append(series[idx], opts.ScatterData{Value: []interface{}{x, y, v.Position.Z}})
	}
	return names, series, math.Ceil(extent)
}

func clusterColor(c planes.ClusterTag) string {
	switch c {
	case planes.ClusterGround:
		return "#35b779"
	case planes.ClusterWall:
		return "#3e4989"
	default:
		return "#fde725"
	}
}

// handleMeshChart renders a top view of the latest mesh vertices with one
// series per tracked plane.
func (ws *WebServer) handleMeshChart(w http.ResponseWriter, r *http.Request) {
	snap, ok := ws.latest(w)
	if !ok {
		return
	}
	names, series, pad := vertexSeries(snap)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Mesh Top View", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Mesh Top View", Subtitle: fmt.Sprintf("frame=%d vertices=%d polygons=%d planes=%d", snap.FrameID, len(snap.Vertices), len(snap.Polygons), len(snap.Planes))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y (m)", NameLocation: "middle", NameGap: 30}),
	)

	scatter.AddSeries(names[0], series[0], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}), charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
	for i, p := range snap.Planes {
		scatter.AddSeries(names[i+1], series[i+1], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}), charts.WithItemStyleOpts(opts.ItemStyle{Color: clusterColor(p.Cluster)}))
	}

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render mesh chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handlePlanesChart renders the landmark and triangle support of every
// tracked plane.
func (ws *WebServer) handlePlanesChart(w http.ResponseWriter, r *http.Request) {
	snap, ok := ws.latest(w)
	if !ok {
		return
	}

	x := make([]string, 0, len(snap.Planes))
	lmks := make([]opts.BarData, 0, len(snap.Planes))
	tris := make([]opts.BarData, 0, len(snap.Planes))
	for _, p := range snap.Planes {
		x = append(x, p.ID.String())
		lmks = append(lmks, opts.BarData{Value: len(p.LandmarkIDs)})
		tris = append(tris, opts.BarData{Value: len(p.TriangleIDs)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "720px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: "Tracked Planes", Subtitle: snap.Timestamp.Format(time.RFC3339)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("landmarks", lmks, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("triangles", tris)

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
