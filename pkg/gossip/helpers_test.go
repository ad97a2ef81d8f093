package gossip

import (
	"io"
	"log/slog"
)

// testLogger returns a logger that discards output, for tests that only
// care about behavior, not log content.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
