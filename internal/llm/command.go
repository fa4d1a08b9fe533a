package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nguyentantai21042004/triage-synth/pkg/executor"
)

// CommandOptions configures the local command adapter. Args may contain
// the placeholders {system}, {prompt}, {model}, {temperature} and
// {max_tokens}. Whatever of the system and user text no arg references is
// piped to the process on stdin, system first.
type CommandOptions struct {
	Binary  string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

type commandClient struct {
	opts     CommandOptions
	executor executor.Executor
}

func NewCommand(opts CommandOptions, exec executor.Executor) Client {
	return &commandClient{opts: opts, executor: exec}
}

func (c *commandClient) Invoke(ctx context.Context, req Request) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	replacer := strings.NewReplacer(
		"{system}", req.System,
		"{prompt}", req.User,
		"{model}", req.Model,
		"{temperature}", strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		"{max_tokens}", strconv.Itoa(req.MaxTokens),
	)

	args := make([]string, len(c.opts.Args))
	systemInArgs, promptInArgs := false, false
	for i, a := range c.opts.Args {
		systemInArgs = systemInArgs || strings.Contains(a, "{system}")
		promptInArgs = promptInArgs || strings.Contains(a, "{prompt}")
		args[i] = replacer.Replace(a)
	}

	var stdin []string
	if !systemInArgs && req.System != "" {
		stdin = append(stdin, req.System)
	}
	if !promptInArgs && req.User != "" {
		stdin = append(stdin, req.User)
	}

	cmd := executor.Command{
		Name:  c.opts.Binary,
		Args:  args,
		Dir:   c.opts.Dir,
		Env:   c.opts.Env,
		Stdin: strings.Join(stdin, "\n\n"),
	}

	out, err := c.executor.Run(ctx, cmd)
	if err != nil {
		return "", transportErr("command", 0, err)
	}
	if strings.TrimSpace(out) == "" {
		return "", transportErr("command", 0, fmt.Errorf("%s: %w", c.opts.Binary, errEmptyReply))
	}
	return out, nil
}
