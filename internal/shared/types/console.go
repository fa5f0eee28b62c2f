package types

// ConsoleInterface is the human-facing output of the pipeline and reports.
// Structured logs go to zap; this carries only what an operator reads.
type ConsoleInterface interface {
	Println(a ...interface{})

	LogInfo(format string, a ...interface{})
	LogWarning(format string, a ...interface{})
	LogError(format string, a ...interface{})
	LogSuccess(format string, a ...interface{})

	CreateTable() TableInterface
	DisplayTrendBars(title string, points []TrendPoint)
}

// TableInterface builds a boxed table row by row.
type TableInterface interface {
	AddColumn(name string, options ...interface{})
	AddRow(cells ...interface{})
	Render() string
}

// TrendPoint is one KPI value in one period, used by trend charts.
type TrendPoint struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
}
