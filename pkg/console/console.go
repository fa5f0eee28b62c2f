package console

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/diillson/leasing-bi-pipeline/internal/shared/types"
	"github.com/pterm/pterm"
)

// barWidth é o comprimento da barra do maior valor da série.
const barWidth = 40

// Console imprime tabelas, gráficos e mensagens para o operador.
type Console struct {
	out io.Writer
}

// NewConsole cria um Console que escreve na saída padrão.
func NewConsole() *Console {
	return NewConsoleTo(os.Stdout)
}

// NewConsoleTo cria um Console que escreve em w.
func NewConsoleTo(w io.Writer) *Console {
	return &Console{out: w}
}

func (c *Console) Println(a ...interface{}) {
	fmt.Fprintln(c.out, a...)
}

func (c *Console) LogInfo(format string, a ...interface{}) {
	fmt.Fprint(c.out, pterm.Info.Sprintfln(format, a...))
}

func (c *Console) LogWarning(format string, a ...interface{}) {
	fmt.Fprint(c.out, pterm.Warning.Sprintfln(format, a...))
}

func (c *Console) LogError(format string, a ...interface{}) {
	fmt.Fprint(c.out, pterm.Error.Sprintfln(format, a...))
}

func (c *Console) LogSuccess(format string, a ...interface{}) {
	fmt.Fprint(c.out, pterm.Success.Sprintfln(format, a...))
}

// Table acumula colunas e linhas até o Render.
type Table struct {
	columns []string
	rows    [][]string
}

func (c *Console) CreateTable() types.TableInterface {
	return &Table{}
}

// AddColumn ignora as opções; todas as colunas usam o mesmo estilo.
func (t *Table) AddColumn(name string, options ...interface{}) {
	t.columns = append(t.columns, name)
}

// AddRow completa ou corta a linha para o número de colunas.
func (t *Table) AddRow(cells ...interface{}) {
	row := make([]string, len(t.columns))
	for i := range row {
		if i < len(cells) {
			row[i] = fmt.Sprint(cells[i])
		}
	}
	t.rows = append(t.rows, row)
}

func (t *Table) Render() string {
	data := pterm.TableData{t.columns}
	data = append(data, t.rows...)

	rendered, _ := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Srender()
	return rendered
}

// trendChange descreve a variação entre dois períodos e a cor da barra.
// Para receita e ocupação, subir é bom: alta em verde, queda em vermelho.
func trendChange(prev, cur float64) (string, pterm.Color) {
	if math.Abs(prev) < 0.01 {
		if math.Abs(cur) < 0.01 {
			return "0%", pterm.FgYellow
		}
		return "N/A", pterm.FgGreen
	}

	pct := (cur - prev) / math.Abs(prev) * 100
	switch {
	case math.Abs(pct) < 0.01:
		return "0%", pterm.FgYellow
	case pct > 999:
		return ">+999%", pterm.FgGreen
	case pct < -999:
		return ">-999%", pterm.FgRed
	case pct > 0:
		return fmt.Sprintf("+%.2f%%", pct), pterm.FgGreen
	default:
		return fmt.Sprintf("%.2f%%", pct), pterm.FgRed
	}
}

// DisplayTrendBars desenha a série de um KPI em barras, com a variação
// mês a mês ao lado.
func (c *Console) DisplayTrendBars(title string, points []types.TrendPoint) {
	maxValue := 0.0
	for _, p := range points {
		maxValue = math.Max(maxValue, p.Value)
	}
	if maxValue == 0 {
		c.LogWarning("All values are 0.00 for %s", title)
		return
	}

	data := pterm.TableData{{"Period", "Value", "", "MoM Change"}}
	for i, p := range points {
		bar := strings.Repeat("█", int(math.Max(0, p.Value/maxValue*barWidth)))
		change, tone := "", pterm.FgBlue
		if i > 0 {
			change, tone = trendChange(points[i-1].Value, p.Value)
		}
		data = append(data, []string{
			p.Period,
			fmt.Sprintf("%.2f", p.Value),
			tone.Sprint(bar),
			tone.Sprint(change),
		})
	}

	rendered, _ := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	panel := pterm.DefaultBox.WithTitle(title).WithBoxStyle(pterm.NewStyle(pterm.FgCyan)).Sprint(rendered)
	fmt.Fprintln(c.out, "\n"+panel)
}
