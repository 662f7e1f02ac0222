package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/telefoot/telefoot-bot/bot/app"
	corecmd "github.com/telefoot/telefoot-bot/core/cmd"
)

func main() {
	// Local overrides; absence of a .env file is fine.
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	if err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig:        app.LoadConfig,
		Bootstrap:         app.Bootstrap,
	}); err != nil {
		log.Fatalf("telefoot: %v", err)
	}
}
