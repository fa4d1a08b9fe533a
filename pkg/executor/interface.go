package executor

import "context"

// Executor runs external programs and captures their standard output.
type Executor interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// Command describes one invocation. Stdin is piped to the process when set
// and Env is appended to the inherited environment.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Stdin string
	Env   []string
}
