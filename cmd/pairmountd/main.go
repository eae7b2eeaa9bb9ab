package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// logLevel is adjusted from config/flags once they are parsed.
var logLevel = new(slog.LevelVar)

func main() {
	// .env is optional, for dev setups
	godotenv.Load()

	handler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	slog.SetDefault(slog.New(handler))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("ERROR"), err)
		os.Exit(1)
	}
}
