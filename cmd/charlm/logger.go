package main

import (
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/joelsearcy/charlm-go/pkg/config"
)

// newLogger creates the command's structured logger. With log_format
// "auto", a terminal gets slog.TextHandler and anything else (pipes, CI,
// files) gets slog.JSONHandler.
func newLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.LogFormat {
	case "text":
		handler = slog.NewTextHandler(w, options)
	case "json":
		handler = slog.NewJSONHandler(w, options)
	default:
		if isTerminal(w) {
			handler = slog.NewTextHandler(w, options)
		} else {
			handler = slog.NewJSONHandler(w, options)
		}
	}
	return slog.New(handler), nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
