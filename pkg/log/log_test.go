package log

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	logger := New(true, dir)
	logger.Debugw("frame received", "opcode", "binary", "bytes", 12)
	_ = logger.Sync()

	data, err := os.ReadFile(filepath.Join(dir, "emulator.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := strings.TrimSpace(strings.Split(string(data), "\n")[0])

	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not json: %v (%q)", err, line)
	}
	if entry["msg"] != "frame received" || entry["opcode"] != "binary" {
		t.Fatalf("unexpected entry %#v", entry)
	}
}

func TestNewInfoLevelDropsDebug(t *testing.T) {
	logger := New(false, "")
	if logger.Desugar().Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug level should be disabled")
	}
}
