package console

import (
	"bytes"
	"testing"

	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
)

func TestTrendChange(t *testing.T) {
	cases := []struct {
		name       string
		prev, cur  float64
		wantChange string
		wantTone   pterm.Color
	}{
		{"growth", 80, 90, "+12.50%", pterm.FgGreen},
		{"drop", 90, 72, "-20.00%", pterm.FgRed},
		{"flat", 90, 90, "0%", pterm.FgYellow},
		{"from zero", 0, 10, "N/A", pterm.FgGreen},
		{"zero to zero", 0, 0, "0%", pterm.FgYellow},
		{"spike", 1, 50, ">+999%", pterm.FgGreen},
		{"negative base", -100, -50, "+50.00%", pterm.FgGreen},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			change, tone := trendChange(tc.prev, tc.cur)
			assert.Equal(t, tc.wantChange, change)
			assert.Equal(t, tc.wantTone, tone)
		})
	}
}

func TestTable_PadsShortRows(t *testing.T) {
	table := NewConsoleTo(&bytes.Buffer{}).CreateTable()
	table.AddColumn("Suite")
	table.AddColumn("Tenant")
	table.AddRow("A-101")
	table.AddRow("B-201", "Black Label Studio", "ignored")

	out := table.Render()
	assert.Contains(t, out, "Suite")
	assert.Contains(t, out, "Black Label Studio")
	assert.NotContains(t, out, "ignored")
}

func TestDisplayTrendBars(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleTo(&buf)

	c.DisplayTrendBars("Occupancy %", []types.TrendPoint{
		{Period: "2025-01", Value: 80},
		{Period: "2025-02", Value: 90},
	})
	out := buf.String()
	assert.Contains(t, out, "Occupancy %")
	assert.Contains(t, out, "2025-02")
	assert.Contains(t, out, "+12.50%")

	buf.Reset()
	c.DisplayTrendBars("NOI", []types.TrendPoint{{Period: "2025-01"}})
	assert.Contains(t, buf.String(), "All values are 0.00 for NOI")
}
