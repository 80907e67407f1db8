package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestDefaultLoggerIsSilent(t *testing.T) {
	if Logger().Enabled(t.Context(), 12) {
		t.Fatal("default logger enabled")
	}
}

func TestSetLogger(t *testing.T) {
	defer SetLogger(nil)

	var buf bytes.Buffer
	SetLogger(NewText(&buf, false))
	Logger().Debug("[test] hidden")
	Logger().Info("[test] shown", "n", 1)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "[test] shown") || !strings.Contains(out, "n=1") {
		t.Fatalf("output = %q", out)
	}

	buf.Reset()
	SetLogger(NewText(&buf, true))
	Logger().Debug("[test] debug")
	if !strings.Contains(buf.String(), "debug") {
		t.Fatalf("verbose output = %q", buf.String())
	}

	SetLogger(nil)
	buf.Reset()
	Logger().Error("[test] dropped")
	if buf.Len() != 0 {
		t.Fatalf("nil logger still writes: %q", buf.String())
	}
}
