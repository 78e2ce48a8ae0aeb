package obs

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, flags := log.Writer(), log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	t.Cleanup(func() {
		log.SetOutput(prev)
		log.SetFlags(flags)
	})
	return &buf
}

func TestTimeLogsRequestIDAndError(t *testing.T) {
	buf := captureLog(t)
	ctx := WithRequestID(context.Background(), "abc")

	err := errors.New("boom")
	Time(ctx, "engine.Move")(&err)

	line := buf.String()
	for _, want := range []string{"req_id=abc", "op=engine.Move", "err=boom"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}
}

func TestTimeWithoutError(t *testing.T) {
	buf := captureLog(t)

	var err error
	Time(context.Background(), "engine.Reset")(&err)

	if strings.Contains(buf.String(), "err=") {
		t.Errorf("unexpected err field in %q", buf.String())
	}
	if RequestID(context.Background()) != "" {
		t.Error("expected empty request id")
	}
}
