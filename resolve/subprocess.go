package resolve

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/nathanplyles/oblivion/errs"
	"github.com/nathanplyles/oblivion/types"
)

const (
	subprocessTimeout = 60 * time.Second
	// subprocessTTL is long because a subprocess resolution is
	// expensive and its URLs historically outlive the API-sourced ones.
	subprocessTTL = 4 * time.Hour

	maxStderrExcerpt = 300
)

// DefaultCommands lists the argv prefixes tried, in order, to find a
// working resolver tool on PATH.
var DefaultCommands = [][]string{
	{"yt-dlp"},
	{"python3", "-m", "yt_dlp"},
}

// Runner executes an external command. Injectable so tests can run
// the strategy without spawning processes.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err := cmd.Run()
	return out.Bytes(), errOut.Bytes(), err
}

// SubprocessStrategy shells out to a command-line resolver tool. A
// missing binary is a soft failure that advances to the next candidate
// command; a non-zero exit with stderr output aborts the whole
// strategy, since every candidate runs the same underlying tool.
type SubprocessStrategy struct {
	runner      Runner
	commands    [][]string
	cookiesPath string
	timeout     time.Duration
}

// NewSubprocessStrategy builds the strategy. A nil runner executes
// real processes; empty commands default to DefaultCommands.
// cookiesPath, when non-empty and existing, is passed to the tool as a
// session-cookie file.
func NewSubprocessStrategy(runner Runner, commands [][]string, cookiesPath string) *SubprocessStrategy {
	if runner == nil {
		runner = execRunner{}
	}
	if len(commands) == 0 {
		commands = DefaultCommands
	}
	return &SubprocessStrategy{
		runner:      runner,
		commands:    commands,
		cookiesPath: cookiesPath,
		timeout:     subprocessTimeout,
	}
}

func (s *SubprocessStrategy) Name() string { return "subprocess" }

func (s *SubprocessStrategy) CacheTTL() time.Duration { return subprocessTTL }

func (s *SubprocessStrategy) Resolve(ctx context.Context, videoID string) (*types.Resolution, error) {
	args := []string{
		"--no-playlist",
		"--no-warnings",
		"-f", "bestaudio[ext=m4a]/bestaudio/best",
		"--get-url",
	}
	if s.cookiesPath != "" {
		if _, err := os.Stat(s.cookiesPath); err == nil {
			args = append(args, "--cookies", s.cookiesPath)
		}
	}
	args = append(args, "https://www.youtube.com/watch?v="+videoID)

	var lastErr error
	for _, argv := range s.commands {
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		stdout, stderr, err := s.runner.Run(runCtx, argv[0], append(argv[1:], args...)...)
		cancel()

		if err != nil {
			if isCommandNotFound(err) {
				lastErr = errs.Newf(errs.ClassToolUnavailable, "%s: %w", argv[0], errs.ErrToolUnavailable)
				continue
			}
			if msg := strings.TrimSpace(string(stderr)); msg != "" {
				// The tool ran and rejected the request; trying the
				// same tool under another name cannot help.
				return nil, errs.Newf(errs.ClassTransport, "%s: %s", argv[0], excerpt(msg))
			}
			lastErr = errs.Newf(errs.ClassTransport, "%s: %w", argv[0], err)
			continue
		}

		line := firstLine(string(stdout))
		if line == "" {
			return nil, errs.Newf(errs.ClassNoUsableFormat, "%s: empty output: %w", argv[0], errs.ErrNoUsableFormat)
		}
		return &types.Resolution{URL: line}, nil
	}
	if lastErr == nil {
		lastErr = errs.New(errs.ClassToolUnavailable, errs.ErrToolUnavailable)
	}
	return nil, lastErr
}

func isCommandNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}
	var ee *exec.Error
	return errors.As(err, &ee) && errors.Is(ee.Err, exec.ErrNotFound)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func excerpt(s string) string {
	if len(s) > maxStderrExcerpt {
		return s[:maxStderrExcerpt] + "..."
	}
	return s
}
