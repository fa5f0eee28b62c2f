package cli

import (
	"fmt"

	"github.com/diillson/leasing-bi-pipeline/pkg/version"
	"github.com/fatih/color"
)

// displayWelcomeBanner exibe o banner de boas-vindas com informações de versão.
func displayWelcomeBanner(versionStr string) {
	banner := `
     _                    _               ____ ___
    | |    ___  __ _  ___(_)_ __   __ _  | __ )_ _|
    | |   / _ \/ _' |/ __| | '_ \ / _' | |  _ \| |
    | |__|  __/ (_| |\__ \ | | | | (_| | | |_) | |
    |_____\___|\__,_||___/_|_| |_|\__, | |____/___|
                                  |___/
        `
	magenta := color.New(color.FgMagenta, color.Bold).SprintFunc()
	blue := color.New(color.FgBlue, color.Bold).SprintFunc()

	fmt.Println(magenta(banner))

	// Obtem a string formatada da versão através do pacote version
	formattedVersion := version.FormatVersion()
	if versionStr != "" && versionStr != version.Version {
		formattedVersion = versionStr
	}
	fmt.Println(blue(fmt.Sprintf("Leasing BI Pipeline (v%s)", formattedVersion)))
}
