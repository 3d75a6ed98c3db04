package simdata

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// WriteBatchChart renders per-batch mean final reward and completed simulations as an
// HTML page in <dir>/<model>.batches.html.
func (w *Writer) WriteBatchChart(model string, metrics []BatchMetric) (string, error) {
	batches := make([]string, len(metrics))
	rewards := make([]opts.LineData, len(metrics))
	succeeded := make([]opts.LineData, len(metrics))
	for i, m := range metrics {
		batches[i] = strconv.Itoa(m.Batch)
		rewards[i] = opts.LineData{Value: m.MeanFinalReward}
		succeeded[i] = opts.LineData{Value: m.Succeeded}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s simulation batches", model),
		}),
	)
	line = line.SetXAxis(batches)
	line.AddSeries("mean final reward", rewards)
	line.AddSeries("succeeded", succeeded)

	page := components.NewPage()
	page.AddCharts(line)

	path := filepath.Join(w.baseDir, model+".batches.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create batch chart: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return "", fmt.Errorf("failed to render batch chart: %w", err)
	}
	return path, nil
}
