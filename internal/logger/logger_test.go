package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNew_WritesJSONFile(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	dir := t.TempDir()
	log, err := New(dir, "debug", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Infow("popup requested", "id", 7)
	_ = log.Sync()

	b, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"msg":"popup requested"`) {
		t.Fatalf("log file missing entry:\n%s", b)
	}
}

func TestNew_RejectsBadLevel(t *testing.T) {
	if _, err := New(t.TempDir(), "loud", false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestConsole_InstallsGlobalLogger(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	log := Console("warn")
	if zap.L().Core() != log.Desugar().Core() {
		t.Fatal("Console did not replace the global logger")
	}
	if log.Desugar().Core().Enabled(zap.InfoLevel) {
		t.Fatal("info enabled at warn level")
	}
	if !log.Desugar().Core().Enabled(zap.WarnLevel) {
		t.Fatal("warn disabled at warn level")
	}
}

func TestConsole_UnknownLevelFallsBackToInfo(t *testing.T) {
	prev := zap.L()
	defer zap.ReplaceGlobals(prev)

	log := Console("loud")
	if log.Desugar().Core().Enabled(zap.DebugLevel) || !log.Desugar().Core().Enabled(zap.InfoLevel) {
		t.Fatal("unknown level should mean info")
	}
}
