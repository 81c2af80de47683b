package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/nbhdsim/core/sim"
)

var csvHeader = []string{
	"step", "time", "eid", "household_type",
	"p_mw_pv", "p_mw_load", "energy_delta_kWh", "stored_kWh",
	"grid_exchange_kWh", "current_charge_kWh", "energy_demand_met",
}

// WriteJSON writes the step history to w in JSON format.
func WriteJSON(w io.Writer, results []sim.StepResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// WriteCSV writes one row per household and step.
func WriteCSV(w io.Writer, results []sim.StepResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, res := range results {
		step := strconv.FormatInt(res.Aggregate.Step, 10)
		ts := res.Aggregate.Time.Format(time.RFC3339)
		for _, h := range res.Households {
			rec := []string{
				step,
				ts,
				h.EID,
				string(h.Type),
				formatFloat(h.GenerationMW),
				formatFloat(h.LoadMW),
				formatFloat(h.EnergyDeltaKWh),
				formatFloat(h.StoredKWh),
				formatFloat(h.GridExchangeKWh),
				formatFloat(h.SoCKWh),
				strconv.FormatBool(h.EnergyDemandMet),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteChartHTML renders the battery charge of every household and the
// neighborhood grid exchange as an HTML line chart.
func WriteChartHTML(w io.Writer, results []sim.StepResult) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Battery charge"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Simulated time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "kWh"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Type: "scroll"}),
	)

	xAxis := make([]string, len(results))
	grid := make([]opts.LineData, len(results))
	var order []string
	series := map[string][]opts.LineData{}
	for i, res := range results {
		xAxis[i] = res.Aggregate.Time.Format("2006-01-02 15:04:05")
		grid[i] = opts.LineData{Value: res.Aggregate.TotalGridExchangeKWh}
		for _, h := range res.Households {
			if _, ok := series[h.EID]; !ok {
				order = append(order, h.EID)
				series[h.EID] = make([]opts.LineData, i)
			}
			series[h.EID] = append(series[h.EID], opts.LineData{Value: h.SoCKWh})
		}
	}

	line.SetXAxis(xAxis)
	for _, eid := range order {
		line.AddSeries(eid, series[eid])
	}
	line.AddSeries("grid exchange", grid)
	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}

// WriteFiles writes base.<format> into dir for every format in formats and
// returns the paths written.
func WriteFiles(dir, base string, formats []string, results []sim.StepResult) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, f := range formats {
		var write func(io.Writer, []sim.StepResult) error
		ext := strings.ToLower(f)
		switch ext {
		case "csv":
			write = WriteCSV
		case "json":
			write = WriteJSON
		case "html":
			write = WriteChartHTML
		default:
			return paths, fmt.Errorf("unknown export format %q", f)
		}
		path := filepath.Join(dir, base+"."+ext)
		if err := writeFile(path, results, write); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, results []sim.StepResult, write func(io.Writer, []sim.StepResult) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f, results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
