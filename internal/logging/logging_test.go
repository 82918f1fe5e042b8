package logging

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestComponentLoggerFollowsOutput(t *testing.T) {
	logger := Component("test")

	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	logger.Info().Msg("hello")
	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "component=test") {
		t.Errorf("output = %q", out)
	}
}

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	SetLevel("debug")
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("level = %v, want debug", zerolog.GlobalLevel())
	}
	SetLevel(" WARN ")
	if zerolog.GlobalLevel() != zerolog.WarnLevel {
		t.Errorf("level = %v, want warn", zerolog.GlobalLevel())
	}
	SetLevel("loud")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", zerolog.GlobalLevel())
	}
}
