package runner

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		line string
		want float64
		ok   bool
	}{
		{
			name: "status line",
			line: "frame= 120 fps=30 time=00:01:23.45 bitrate= 192.0kbits/s",
			want: 83.45,
			ok:   true,
		},
		{
			name: "hours and minutes",
			line: "time=01:02:03.50",
			want: 3723.5,
			ok:   true,
		},
		{
			name: "single fractional digit",
			line: "time=00:00:01.5",
			want: 1.5,
			ok:   true,
		},
		{
			name: "three fractional digits",
			line: "time=00:00:00.125",
			want: 0.125,
			ok:   true,
		},
		{
			name: "no marker",
			line: "size=    2048kB",
			ok:   false,
		},
		{
			name: "empty",
			line: "",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTimestamp(tt.line)
			if ok != tt.ok {
				t.Fatalf("parseTimestamp(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestScanCRLines(t *testing.T) {
	in := "first\rsecond\nthird\rfourth"
	scanner := bufio.NewScanner(strings.NewReader(in))
	scanner.Split(scanCRLines)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scanner error: %v", err)
	}

	want := []string{"first", "second", "third", "fourth"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("lines = %v, want %v", lines, want)
		}
	}
}

func TestRun_Success(t *testing.T) {
	e := NewExec()
	err := e.Run(context.Background(), "sh", []string{"-c", "exit 0"}, RunOpts{})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if e.InFlight() != 0 {
		t.Errorf("InFlight() = %d after return, want 0", e.InFlight())
	}
}

func TestRun_ReportsProgress(t *testing.T) {
	script := `
printf 'time=00:00:02.50\n' >&2; sleep 0.05
printf 'time=00:00:05.00\n' >&2; sleep 0.05
printf 'time=00:00:12.00\n' >&2; sleep 0.05
`

	var mu sync.Mutex
	var got []int

	e := NewExec()
	err := e.Run(context.Background(), "sh", []string{"-c", script}, RunOpts{
		TotalDurationSec: 10,
		ProgressInterval: time.Millisecond,
		OnProgress: func(pct int) {
			mu.Lock()
			got = append(got, pct)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}

	if len(got) == 0 {
		t.Fatal("no progress reported")
	}
	for i, pct := range got {
		if pct > 99 {
			t.Errorf("progress %d exceeds the 99 completion cap", pct)
		}
		if i > 0 && pct <= got[i-1] {
			t.Errorf("progress not monotonic: %v", got)
		}
	}
	if last := got[len(got)-1]; last != 99 {
		t.Errorf("final progress = %d, want 99 (past known duration)", last)
	}
}

func TestRun_NoProgressWithoutTotalDuration(t *testing.T) {
	e := NewExec()
	err := e.Run(context.Background(), "sh",
		[]string{"-c", "printf 'time=00:00:05.00\\n' >&2"},
		RunOpts{
			ProgressInterval: time.Millisecond,
			OnProgress: func(int) {
				t.Error("progress reported with unknown total duration")
			},
		})
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
}

func TestRun_NonZeroExit(t *testing.T) {
	e := NewExec()
	err := e.Run(context.Background(), "sh",
		[]string{"-c", "echo corrupt input >&2; exit 3"}, RunOpts{})
	if err == nil {
		t.Fatal("Run() = nil, want error")
	}

	var procErr *ProcessError
	if !errors.As(err, &procErr) {
		t.Fatalf("Run() error = %T, want *ProcessError", err)
	}
	if procErr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", procErr.ExitCode)
	}
	if !strings.Contains(procErr.Stderr, "corrupt input") {
		t.Errorf("Stderr = %q, want diagnostic tail retained", procErr.Stderr)
	}
	if procErr.Name != "sh" {
		t.Errorf("Name = %q, want sh", procErr.Name)
	}
}

func TestRun_Timeout(t *testing.T) {
	e := NewExec()
	start := time.Now()
	err := e.Run(context.Background(), "sleep", []string{"10"}, RunOpts{
		Timeout: 100 * time.Millisecond,
	})
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	if elapsed > 5*time.Second {
		t.Errorf("timeout took %s, watchdog did not kill the child promptly", elapsed)
	}
}

func TestRun_ParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	e := NewExec()
	err := e.Run(ctx, "sleep", []string{"10"}, RunOpts{Timeout: time.Minute})
	if err == nil {
		t.Fatal("Run() = nil, want cancellation error")
	}
	if errors.Is(err, ErrTimeout) {
		t.Errorf("Run() error = %v, cancellation must not be reported as a timeout", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want wrapped context.Canceled", err)
	}
}

func TestRun_CommandNotFound(t *testing.T) {
	e := NewExec()
	err := e.Run(context.Background(), "definitely-not-a-real-binary", nil, RunOpts{})
	if err == nil {
		t.Fatal("Run() = nil, want start error")
	}
}

func TestInFlight(t *testing.T) {
	e := NewExec()
	done := make(chan error, 1)
	go func() {
		done <- e.Run(context.Background(), "sleep", []string{"0.3"}, RunOpts{})
	}()

	deadline := time.Now().Add(time.Second)
	for e.InFlight() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("InFlight() never reached 1")
		}
		time.Sleep(time.Millisecond)
	}

	if err := <-done; err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if e.InFlight() != 0 {
		t.Errorf("InFlight() = %d after completion, want 0", e.InFlight())
	}
}
