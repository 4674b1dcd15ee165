package logx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWritesToRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.log")
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	Init(Config{Debug: true, File: path, MaxSizeMB: 1, MaxBackups: 1, MaxAgeDays: 1})
	if log.Logger.GetLevel() != zerolog.DebugLevel {
		t.Fatalf("level = %v, want debug", log.Logger.GetLevel())
	}
	log.Info().Str("component", "test").Msg("hello file")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), `"message":"hello file"`) {
		t.Fatalf("log file = %s", raw)
	}
}

func TestInitDefaultsToInfo(t *testing.T) {
	previous := log.Logger
	t.Cleanup(func() { log.Logger = previous })

	Init()
	if log.Logger.GetLevel() != zerolog.InfoLevel {
		t.Fatalf("level = %v, want info", log.Logger.GetLevel())
	}
}
