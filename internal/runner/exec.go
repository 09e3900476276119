package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"
)

// ErrTimeout is returned when an invocation exceeds its wall-clock limit.
var ErrTimeout = errors.New("process timed out")

// stderrTailLimit caps how much diagnostic output is retained for errors.
const stderrTailLimit = 4096

// timestampRe matches HH:MM:SS.hh progress markers on the diagnostic
// stream, e.g. "time=00:01:23.45" in ffmpeg's periodic status lines.
var timestampRe = regexp.MustCompile(`time=(\d+):(\d+):(\d+)\.(\d+)`)

// Compile-time check that Exec implements Runner.
var _ Runner = (*Exec)(nil)

// Exec runs external commands via os/exec. It tracks the number of
// in-flight processes so tests can assert the single-worker invariant.
type Exec struct {
	inFlight atomic.Int32
}

// NewExec creates a new Exec runner.
func NewExec() *Exec {
	return &Exec{}
}

// InFlight returns the number of currently running child processes.
func (e *Exec) InFlight() int {
	return int(e.inFlight.Load())
}

// Run spawns the command and blocks until it exits or the watchdog fires.
func (e *Exec) Run(ctx context.Context, name string, args []string, opts RunOpts) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// #nosec G204 - name and args are built by the application, not user input
	cmd := exec.CommandContext(runCtx, name, args...)
	// Force Wait to return even if the killed child leaked the pipe to a
	// grandchild that keeps it open.
	cmd.WaitDelay = 5 * time.Second

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)

	tail := e.consumeStderr(stderr, opts, interval)

	err = cmd.Wait()
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s: %s", ErrTimeout, timeout, name)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &ProcessError{
			Name:     name,
			Args:     args,
			ExitCode: exitCode,
			Stderr:   tail.String(),
			Err:      err,
		}
	}

	return nil
}

// consumeStderr reads the diagnostic stream to EOF, pushing throttled
// progress callbacks and retaining a bounded tail for error reporting.
// It returns once the child closes its end of the pipe.
func (e *Exec) consumeStderr(r interface{ Read([]byte) (int, error) }, opts RunOpts, interval time.Duration) *bytes.Buffer {
	tail := &bytes.Buffer{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	// ffmpeg rewrites its status line with carriage returns; split on both.
	scanner.Split(scanCRLines)

	reportProgress := opts.OnProgress != nil && opts.TotalDurationSec > 0
	lastPct := -1
	var lastPush time.Time

	for scanner.Scan() {
		line := scanner.Text()

		if tail.Len()+len(line) > stderrTailLimit {
			tail.Reset()
		}
		tail.WriteString(line)
		tail.WriteByte('\n')

		if !reportProgress {
			continue
		}

		elapsed, ok := parseTimestamp(line)
		if !ok {
			continue
		}

		pct := int(math.Round(100 * elapsed / opts.TotalDurationSec))
		if pct > 99 {
			pct = 99
		}
		if pct <= lastPct {
			continue
		}
		if now := time.Now(); now.Sub(lastPush) >= interval {
			opts.OnProgress(pct)
			lastPct = pct
			lastPush = now
		}
	}

	return tail
}

// parseTimestamp extracts an HH:MM:SS.hh marker from a diagnostic line and
// converts it to elapsed seconds.
func parseTimestamp(line string) (float64, bool) {
	m := timestampRe.FindStringSubmatch(line)
	if len(m) < 5 {
		return 0, false
	}

	hours, _ := strconv.ParseFloat(m[1], 64)
	minutes, _ := strconv.ParseFloat(m[2], 64)
	seconds, _ := strconv.ParseFloat(m[3], 64)
	frac, _ := strconv.ParseFloat(m[4], 64)

	divisor := 1.0
	for i := 0; i < len(m[4]); i++ {
		divisor *= 10
	}

	return hours*3600 + minutes*60 + seconds + frac/divisor, true
}

// scanCRLines is a bufio.SplitFunc that treats both '\n' and '\r' as line
// terminators.
func scanCRLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ProcessError represents a non-zero exit from an external tool, including
// the retained tail of its diagnostic output.
type ProcessError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v\nargs: %v\nstderr: %s",
		e.Name, e.ExitCode, e.Err, e.Args, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
