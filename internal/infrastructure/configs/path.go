package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/wschat/internal/infrastructure/env"
)

// DeterminePath resolves the config file location from the --config
// flag, the WSCHAT_CONFIG env var, or a set of conventional
// candidates. An empty result means "run on defaults".
func DeterminePath() string {
	var configPath string

	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	if configPath == "" {
		configPath = env.GetString("WSCHAT_CONFIG", "")
	}

	if configPath == "" {
		candidates := []string{
			"./config.yaml",
			"./config.yml",
			"/etc/wschat/config.yaml",
		}

		for _, p := range candidates {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
	}

	return configPath
}
