package shared

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

func TestParseLogLevel(t *testing.T) {
	tc := []struct {
		in   string
		want log.Level
	}{
		{in: "", want: log.InfoLevel},
		{in: "debug", want: log.DebugLevel},
		{in: "WARN", want: log.WarnLevel},
		{in: "error", want: log.ErrorLevel},
		{in: "chatty", want: log.InfoLevel},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	t.Run("WithLogger adds fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "room", 42)
		logger.Info("entered")

		if !strings.Contains(buf.String(), "room=42") {
			t.Errorf("expected room field in output, got %q", buf.String())
		}
	})

	t.Run("SetLogLevel filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.WarnLevel)
		logger.Info("hidden")

		if buf.Len() != 0 {
			t.Errorf("expected info to be filtered, got %q", buf.String())
		}
	})

	t.Run("NewFileLogger creates directories", func(t *testing.T) {
		path := t.TempDir() + "/nested/dir/app.log"
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger() error = %v", err)
		}
		logger.Info("hello")
	})
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if a == b {
		t.Error("expected distinct ids")
	}
	if _, err := uuid.Parse(a); err != nil {
		t.Errorf("expected a valid uuid, got %q", a)
	}
}

func TestBrowserCommand(t *testing.T) {
	tc := []struct {
		goos    string
		program string
		wantErr bool
	}{
		{goos: "darwin", program: "open"},
		{goos: "linux", program: "xdg-open"},
		{goos: "windows", program: "rundll32"},
		{goos: "plan9", wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.goos, func(t *testing.T) {
			cmd, err := browserCommand(tt.goos, "http://example.com")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error for unsupported platform")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasSuffix(cmd.Path, tt.program) && cmd.Args[0] != tt.program {
				t.Errorf("expected %s, got %v", tt.program, cmd.Args)
			}
			if cmd.Args[len(cmd.Args)-1] != "http://example.com" {
				t.Errorf("expected url as last arg, got %v", cmd.Args)
			}
		})
	}
}

func TestSystemClock(t *testing.T) {
	clock := SystemClock()

	var wg sync.WaitGroup
	wg.Add(1)
	clock.AfterFunc(time.Millisecond, wg.Done)
	wg.Wait()

	stopped := clock.AfterFunc(time.Hour, func() { t.Error("stopped timer fired") })
	if !stopped.Stop() {
		t.Error("expected Stop to report an active timer")
	}
}
