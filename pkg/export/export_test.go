package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/nbhdsim/core/model"
	"github.com/kilianp07/nbhdsim/core/sim"
)

func sampleResults() []sim.StepResult {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return []sim.StepResult{
		{
			NeighborhoodID: "nb",
			Seconds:        60,
			Households: []sim.HouseholdOutput{
				{EID: "nb_PV_0", Type: model.PV, SoCKWh: 1.5, StoredKWh: 0.5, EnergyDemandMet: true},
				{EID: "nb_Consumer_1", Type: model.Consumer, SoCKWh: 2, GridExchangeKWh: -0.1},
			},
			Aggregate: sim.Aggregate{Step: 1, Time: start, TotalGridExchangeKWh: -0.1},
		},
		{
			NeighborhoodID: "nb",
			Seconds:        60,
			Households: []sim.HouseholdOutput{
				{EID: "nb_PV_0", Type: model.PV, SoCKWh: 2.5},
				{EID: "nb_Consumer_1", Type: model.Consumer, SoCKWh: 1.9},
			},
			Aggregate: sim.Aggregate{Step: 2, Time: start.Add(time.Minute)},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleResults()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"1", "2024-06-01T12:00:00Z", "nb_PV_0", "PV", "0", "0", "0", "0.5", "0", "1.5", "true"}, rows[1])
	assert.Equal(t, "-0.1", rows[2][8])
	assert.Equal(t, "2", rows[4][0])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleResults()))

	var out []sim.StepResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, 2.5, out[1].Households[0].SoCKWh)
}

func TestWriteChartHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteChartHTML(&buf, sampleResults()))
	html := buf.String()
	assert.Contains(t, html, "Battery charge")
	assert.Contains(t, html, "nb_Consumer_1")
	assert.Contains(t, html, "grid exchange")
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteFiles(dir, "run", []string{"csv", "JSON", "html"}, sampleResults())
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.True(t, strings.HasSuffix(paths[1], "run.json"))

	_, err = WriteFiles(dir, "run", []string{"xlsx"}, sampleResults())
	assert.Error(t, err)
}
