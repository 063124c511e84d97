package main

import (
	"flag"

	"github.com/danmuck/qosctl/internal/config"
	"github.com/danmuck/qosctl/internal/logging"
	"github.com/rs/zerolog/log"
)

const defaultPath = "cmd/qosctl/config.toml"

func main() {
	output := flag.String("output", defaultPath, "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime("configgen")

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			log.Fatal().Err(err).Str("path", *input).Msg("config invalid")
		}
		log.Info().Str("path", *input).Str("endpoint", cfg.Endpoint).Str("codec", cfg.Codec).Msg("config validated")
		return
	}

	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal().Err(err).Str("path", *output).Msg("write template failed")
	}
	log.Info().Str("path", *output).Msg("wrote qosctl config template")
}
