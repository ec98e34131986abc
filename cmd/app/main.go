package main

import (
	"whisper-transcriber/internal/bootstrap"
	"whisper-transcriber/internal/logging"
)

func main() {
	app, err := bootstrap.New()
	if err != nil {
		logging.Log.Fatal().Err(err).Msg("bootstrap app")
	}

	if err := app.Run(); err != nil {
		logging.Log.Fatal().Err(err).Msg("run app")
	}
}
