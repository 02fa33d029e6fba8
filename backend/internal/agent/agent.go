// Package agent runs the external AI process that answers chat messages.
//
// The process reads one prompt line on stdin and prints its answer between
// RESPONSE_START and RESPONSE_END marker lines. Anything else it prints is
// treated as debug output and only used when no marked block appears.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/itchan-dev/mediadesk/shared/config"
	"github.com/itchan-dev/mediadesk/shared/logger"
)

const (
	markerStart = "RESPONSE_START"
	markerEnd   = "RESPONSE_END"

	waitDelay = 2 * time.Second
)

var (
	debugPrefixes = []string{"MCP Client in stdio mode", "Received query:", "Processing query:"}

	// stripped from the front of the assembled answer, first match wins
	answerPrefixes = []string{"GEMINI_RESPONSE:", "Response: " + markerStart, markerStart}

	toolCallRe = regexp.MustCompile(`\[Gemini requested tool '[^']*' with arguments: \{[^}]*\}\]\n?`)
)

var ErrNotConfigured = errors.New("agent command is not configured")

type ExecAgent struct {
	command string
	args    []string
	dir     string
	timeout time.Duration
	env     []string
}

func NewExec(cfg config.Agent, env map[string]string) *ExecAgent {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	vars := make([]string, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, k+"="+env[k])
	}

	return &ExecAgent{
		command: cfg.Command,
		args:    cfg.Args,
		dir:     cfg.Dir,
		timeout: cfg.Timeout,
		env:     vars,
	}
}

// Run starts the agent, writes prompt to its stdin and returns the parsed answer,
// which may be empty. The process is terminated once the end marker is read or
// the timeout expires.
func (a *ExecAgent) Run(ctx context.Context, prompt string) (string, error) {
	if a.command == "" {
		return "", ErrNotConfigured
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	cmd := exec.CommandContext(ctx, a.command, a.args...)
	cmd.Dir = a.dir
	cmd.Env = append(os.Environ(), a.env...)
	cmd.Stdin = strings.NewReader(strings.ReplaceAll(prompt, "\n", " ") + "\n")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("agent stdout: %w", err)
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start agent %s: %w", a.command, err)
	}

	out, complete := Collect(stdout)
	if complete {
		// the agent may keep its session open after answering
		stop()
	}
	waitErr := cmd.Wait()
	if stderr.Len() > 0 {
		logger.Log.Debug("agent stderr", "component", "agent", "stderr", stderr.String())
	}

	answer := out.Answer()
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && answer == "":
		return "", fmt.Errorf("agent %s timed out after %s", a.command, a.timeout)
	case waitErr != nil && !complete && answer == "":
		return "", fmt.Errorf("agent %s: %w", a.command, waitErr)
	}
	logger.Log.Debug("agent answered", "component", "agent", "duration", time.Since(start), "marked", complete)
	return answer, nil
}

// Output is what was read from the agent's stdout.
type Output struct {
	Marked []string
	Other  []string
}

// Collect reads lines until the end marker or EOF. complete reports whether
// the end marker was seen.
func Collect(r io.Reader) (out Output, complete bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	inBlock := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || isDebug(line) {
			continue
		}
		switch {
		case line == markerStart:
			inBlock = true
		case line == markerEnd:
			return out, true
		case inBlock:
			out.Marked = append(out.Marked, line)
		default:
			out.Other = append(out.Other, line)
		}
	}
	return out, false
}

// Answer joins the marked block, or all other output when there was none,
// and removes prefixes and tool-call echoes.
func (o Output) Answer() string {
	lines := o.Marked
	if len(lines) == 0 {
		lines = o.Other
	}
	answer := strings.Join(lines, "\n")
	for _, prefix := range answerPrefixes {
		if rest, ok := strings.CutPrefix(answer, prefix); ok {
			answer = strings.TrimSpace(rest)
			break
		}
	}
	answer = toolCallRe.ReplaceAllString(answer, "")
	return strings.TrimSpace(answer)
}

// ParseOutput is Collect followed by Answer on a complete stdout capture.
func ParseOutput(stdout string) string {
	out, _ := Collect(strings.NewReader(stdout))
	return out.Answer()
}

func isDebug(line string) bool {
	for _, prefix := range debugPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}
