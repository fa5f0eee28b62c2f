package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"
)

const devVersion = "0.0.0-dev"

// Sobrescritos por -ldflags "-X"; sem eles, vêm do build info do módulo.
var (
	Version   = devVersion
	Commit    = ""
	BuildTime = ""
)

// ReleasesURL aponta para a última release publicada do binário.
var ReleasesURL = "https://api.github.com/repos/diillson/leasing-bi-pipeline/releases/latest"

func init() {
	fromBuildInfo()
}

// fromBuildInfo preenche o que o -ldflags deixou em branco com os dados de
// VCS embutidos pelo go build.
func fromBuildInfo() {
	if Version != devVersion {
		return
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	vcs := make(map[string]string, len(bi.Settings))
	for _, s := range bi.Settings {
		vcs[s.Key] = s.Value
	}

	if rev := vcs["vcs.revision"]; Commit == "" && len(rev) >= 7 {
		Commit = rev[:7]
	}
	if ts, err := time.Parse(time.RFC3339, vcs["vcs.time"]); BuildTime == "" && err == nil {
		BuildTime = ts.UTC().Format(time.RFC3339)
	}
	if tag := strings.TrimPrefix(vcs["vcs.tag"], "v"); tag != "" {
		Version = tag
		if vcs["vcs.modified"] == "true" {
			Version += "-dirty"
		}
	}
}

// FormatVersion descreve o binário, ex.: "1.2.3 (commit: abc1234, built at: 2025-10-23T10:20:30Z)".
func FormatVersion() string {
	switch {
	case Commit == "" && BuildTime == "":
		return Version + " (development)"
	case BuildTime == "":
		return fmt.Sprintf("%s (commit: %s)", Version, Commit)
	case Commit == "":
		return fmt.Sprintf("%s (commit: development, built at: %s)", Version, BuildTime)
	}
	return fmt.Sprintf("%s (commit: %s, built at: %s)", Version, Commit, BuildTime)
}

// LatestRelease consulta a última release publicada em url. Qualquer falha
// de rede ou de formato devolve erro; quem chama decide se ignora.
func LatestRelease(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("release lookup returned %s", resp.Status)
	}

	var release struct {
		TagName string `json:"tag_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("decoding release: %w", err)
	}
	return strings.TrimPrefix(release.TagName, "v"), nil
}

// NewerThan compara versões x.y.z numericamente; sufixos como -rc1 são
// ignorados.
func NewerThan(candidate, current string) bool {
	a, b := numericParts(candidate), numericParts(current)
	for i := 0; i < 3; i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

func numericParts(v string) [3]int {
	var out [3]int
	v, _, _ = strings.Cut(strings.TrimPrefix(v, "v"), "-")
	for i, part := range strings.SplitN(v, ".", 3) {
		out[i], _ = strconv.Atoi(part)
	}
	return out
}

// CheckLatestVersion avisa quando há release mais nova que a em execução.
// Builds de desenvolvimento não consultam nada.
func CheckLatestVersion(currentVersion string) {
	if strings.HasSuffix(currentVersion, "-dev") {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	latest, err := LatestRelease(ctx, http.DefaultClient, ReleasesURL)
	if err != nil || !NewerThan(latest, currentVersion) {
		return
	}
	pterm.Warning.Printfln("Leasing BI Pipeline %s is available (running %s)", latest, currentVersion)
	pterm.Info.Println("Update with: go install github.com/diillson/leasing-bi-pipeline/cmd/leasing-bi@latest")
}
