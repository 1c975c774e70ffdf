package testutil

import (
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger returns a zerolog.Logger that forwards records to t.Log at
// debug level.
func NewTestLogger(t *testing.T) zerolog.Logger {
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}
