package main

import (
	"io"
	"log/slog"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedNow je pevný okamžik pro deterministické testy.
var fixedNow = time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
