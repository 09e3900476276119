package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fakeProbeScript writes an executable shell script standing in for the
// ffprobe binary.
func fakeProbeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o750); err != nil {
		t.Fatalf("write fake ffprobe: %v", err)
	}
	return path
}

func TestFFprobe_Duration(t *testing.T) {
	bin := fakeProbeScript(t, `echo "123.456000"`)
	p := NewFFprobe(bin)

	got, err := p.Duration(context.Background(), "/media/talk.mp3")
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if got != 123.456 {
		t.Errorf("Duration() = %v, want 123.456", got)
	}
}

func TestFFprobe_DurationTrimsWhitespace(t *testing.T) {
	bin := fakeProbeScript(t, `printf '  42.5  \n'`)
	p := NewFFprobe(bin)

	got, err := p.Duration(context.Background(), "/media/talk.mp3")
	if err != nil {
		t.Fatalf("Duration() error = %v", err)
	}
	if got != 42.5 {
		t.Errorf("Duration() = %v, want 42.5", got)
	}
}

func TestFFprobe_ExecutionFailure(t *testing.T) {
	bin := fakeProbeScript(t, `echo "No such file or directory" >&2; exit 1`)
	p := NewFFprobe(bin)

	_, err := p.Duration(context.Background(), "/media/missing.mp3")
	if !errors.Is(err, ErrFFprobeExecution) {
		t.Fatalf("Duration() error = %v, want ErrFFprobeExecution", err)
	}
}

func TestFFprobe_UnparseableOutput(t *testing.T) {
	bin := fakeProbeScript(t, `echo "N/A"`)
	p := NewFFprobe(bin)

	if _, err := p.Duration(context.Background(), "/media/talk.mp3"); err == nil {
		t.Fatal("Duration() = nil, want parse error")
	}
}

func TestFFprobe_Cancellation(t *testing.T) {
	bin := fakeProbeScript(t, `sleep 10`)
	p := NewFFprobe(bin)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Duration(ctx, "/media/talk.mp3")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Duration() error = %v, want wrapped context.Canceled", err)
	}
}

func TestNewFFprobe_DefaultPath(t *testing.T) {
	p := NewFFprobe("")
	if p.ffprobePath != "ffprobe" {
		t.Errorf("ffprobePath = %q, want ffprobe", p.ffprobePath)
	}
}
