package main

import (
	"github.com/joho/godotenv"

	"ragcore/internal/cli"
)

func main() {
	// Load API keys from .env when present; real env vars win.
	_ = godotenv.Load()

	cli.Execute()
}
