package testlog

import (
	"testing"

	"github.com/rs/zerolog"
)

// Start returns a logger that routes engine output through t.Log, so log
// lines attach to the failing test instead of polluting stdout.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).With().Str("test", t.Name()).Logger()
}
