package resolve

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/nathanplyles/oblivion/errs"
)

type fakeRunner struct {
	invoked []string
	results map[string]fakeResult
}

type fakeResult struct {
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.invoked = append(f.invoked, name)
	r := f.results[name]
	return []byte(r.stdout), []byte(r.stderr), r.err
}

func TestSubprocess_FirstCommandSucceeds(t *testing.T) {
	runner := &fakeRunner{results: map[string]fakeResult{
		"yt-dlp": {stdout: "https://cdn.example/audio.m4a\n"},
	}}
	s := NewSubprocessStrategy(runner, nil, "")

	res, err := s.Resolve(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != "https://cdn.example/audio.m4a" {
		t.Fatalf("url = %q", res.URL)
	}
	if len(runner.invoked) != 1 || runner.invoked[0] != "yt-dlp" {
		t.Fatalf("invoked = %v", runner.invoked)
	}
}

func TestSubprocess_NotFoundAdvancesToNextCommand(t *testing.T) {
	runner := &fakeRunner{results: map[string]fakeResult{
		"yt-dlp":  {err: &exec.Error{Name: "yt-dlp", Err: exec.ErrNotFound}},
		"python3": {stdout: "https://cdn.example/audio.m4a\nignored second line\n"},
	}}
	s := NewSubprocessStrategy(runner, nil, "")

	res, err := s.Resolve(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	if res.URL != "https://cdn.example/audio.m4a" {
		t.Fatalf("url = %q", res.URL)
	}
	if len(runner.invoked) != 2 {
		t.Fatalf("invoked = %v", runner.invoked)
	}
}

func TestSubprocess_StderrAbortsStrategy(t *testing.T) {
	runner := &fakeRunner{results: map[string]fakeResult{
		"yt-dlp": {stderr: "ERROR: Sign in to confirm your age", err: errors.New("exit status 1")},
	}}
	s := NewSubprocessStrategy(runner, nil, "")

	_, err := s.Resolve(context.Background(), "dQw4w9WgXcQ")
	if errs.ClassOf(err) != errs.ClassTransport {
		t.Fatalf("class = %v", errs.ClassOf(err))
	}
	if len(runner.invoked) != 1 {
		t.Fatalf("fallback command tried after hard tool error: %v", runner.invoked)
	}
	if !strings.Contains(err.Error(), "Sign in to confirm") {
		t.Fatalf("stderr excerpt missing from error: %v", err)
	}
}

func TestSubprocess_AllCommandsMissing(t *testing.T) {
	runner := &fakeRunner{results: map[string]fakeResult{
		"yt-dlp":  {err: exec.ErrNotFound},
		"python3": {err: &exec.Error{Name: "python3", Err: exec.ErrNotFound}},
	}}
	s := NewSubprocessStrategy(runner, nil, "")

	_, err := s.Resolve(context.Background(), "dQw4w9WgXcQ")
	if errs.ClassOf(err) != errs.ClassToolUnavailable {
		t.Fatalf("class = %v", errs.ClassOf(err))
	}
	if !errors.Is(err, errs.ErrToolUnavailable) {
		t.Fatalf("sentinel lost: %v", err)
	}
}

func TestSubprocess_EmptyOutputIsNoUsableFormat(t *testing.T) {
	runner := &fakeRunner{results: map[string]fakeResult{
		"yt-dlp": {stdout: "  \n"},
	}}
	s := NewSubprocessStrategy(runner, nil, "")

	_, err := s.Resolve(context.Background(), "dQw4w9WgXcQ")
	if errs.ClassOf(err) != errs.ClassNoUsableFormat {
		t.Fatalf("class = %v", errs.ClassOf(err))
	}
}
