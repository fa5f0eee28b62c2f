package console

import "github.com/diillson/leasing-bi-pipeline/internal/shared/types"

// Silent descarta toda a saída de apresentação. Usado com --quiet, pelo
// agendador e nos testes; os logs estruturados continuam no zap.
type Silent struct{}

// NewSilentConsole cria um console que não imprime nada.
func NewSilentConsole() *Silent { return &Silent{} }

func (Silent) Println(a ...interface{}) {}
func (Silent) LogInfo(format string, a ...interface{}) {}
func (Silent) LogWarning(format string, a ...interface{}) {}
func (Silent) LogError(format string, a ...interface{}) {}
func (Silent) LogSuccess(format string, a ...interface{}) {}

func (Silent) CreateTable() types.TableInterface { return &Table{} }
func (Silent) DisplayTrendBars(string, []types.TrendPoint) {}

var (
	_ types.ConsoleInterface = (*Console)(nil)
	_ types.ConsoleInterface = Silent{}
)
