// Package processtest provides a scriptable process.Runner that emulates
// ffmpeg, ffprobe and rhubarb without executing anything.
package processtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/satriahrh/studybuddy/internal/process"
)

// WavHeader is the smallest payload accepted as a WAV container
var WavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")

// CuesJSON is a valid two-cue track written by the fake extractor
const CuesJSON = `{"metadata":{"soundFile":"x.wav","duration":0.9},"mouthCues":[{"start":0.00,"end":0.35,"value":"X"},{"start":0.35,"end":0.90,"value":"B"}]}`

// Call records a single invocation
type Call struct {
	Name    string
	Args    []string
	Timeout time.Duration
}

// Runner emulates the audio toolchain. Fail* fields force the matching tool to
// fail with the given error; ExtractOutput overrides the JSON the extractor writes.
type Runner struct {
	mu    sync.Mutex
	calls []Call

	FailConvert   error
	FailProbe     error
	FailSilence   error
	FailExtract   error
	FailVersion   error
	ExtractOutput string
	// FailExtractAttempts fails only the first n extractor runs
	FailExtractAttempts int
	ProbeOutput         string
	ConvertWritesJunk   bool
}

var _ process.Runner = (*Runner)(nil)

// Run dispatches on the binary's base name and its arguments
func (r *Runner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: name, Args: append([]string(nil), args...), Timeout: timeout})
	extractRuns := 0
	for _, c := range r.calls {
		if isExtractor(c.Name) && !contains(c.Args, "--version") {
			extractRuns++
		}
	}
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	base := filepath.Base(name)
	switch {
	case contains(args, "--version") || contains(args, "-version"):
		return []byte("version 1.0\n"), r.FailVersion
	case strings.HasPrefix(base, "ffprobe"):
		if r.FailProbe != nil {
			return nil, r.FailProbe
		}
		if r.ProbeOutput != "" {
			return []byte(r.ProbeOutput), nil
		}
		return []byte("2.000000\n"), nil
	case strings.HasPrefix(base, "ffmpeg") && contains(args, "lavfi"):
		if r.FailSilence != nil {
			return nil, r.FailSilence
		}
		return nil, os.WriteFile(args[len(args)-1], WavHeader, 0o644)
	case strings.HasPrefix(base, "ffmpeg"):
		if r.FailConvert != nil {
			return nil, r.FailConvert
		}
		dst := valueAfter(args, "pcm_s16le")
		payload := WavHeader
		if r.ConvertWritesJunk {
			payload = []byte("not a wav file")
		}
		return nil, os.WriteFile(dst, payload, 0o644)
	case isExtractor(name):
		if r.FailExtract != nil {
			return nil, r.FailExtract
		}
		if extractRuns <= r.FailExtractAttempts {
			return nil, fmt.Errorf("%w: forced extractor failure", process.ErrNonZeroExit)
		}
		output := CuesJSON
		if r.ExtractOutput != "" {
			output = r.ExtractOutput
		}
		return nil, os.WriteFile(valueAfter(args, "-o"), []byte(output), 0o644)
	}

	return nil, fmt.Errorf("%w: %s", process.ErrToolMissing, name)
}

// Calls returns a snapshot of every invocation so far
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns invocations whose binary base name starts with prefix
func (r *Runner) CallsTo(prefix string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if strings.HasPrefix(filepath.Base(c.Name), prefix) {
			out = append(out, c)
		}
	}
	return out
}

func isExtractor(name string) bool {
	return strings.HasPrefix(filepath.Base(name), "rhubarb")
}

func contains(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func valueAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
