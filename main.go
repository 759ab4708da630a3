package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/kartoza/airscope/cmd"
)

var version = "dev"

func main() {
	if err := cmd.Execute(version); err != nil {
		log.Error().Err(err).Msg("airscope failed")
		os.Exit(1)
	}
}
