package utils

import "context"

type ExecOptions struct {
	Verbose bool
	Quiet   bool
	DryRun  bool
	// UseSudo prefixes privileged steps (packaging) with sudo.
	UseSudo bool
}

type ctxKey int

const execOptsKey ctxKey = 1

func WithExecOptions(ctx context.Context, opts ExecOptions) context.Context {
	return context.WithValue(ctx, execOptsKey, opts)
}
func GetExecOptions(ctx context.Context) ExecOptions {
	if v, ok := ctx.Value(execOptsKey).(ExecOptions); ok {
		return v
	}
	return ExecOptions{}
}

// Privileged wraps c in sudo when the context asks for it.
func Privileged(ctx context.Context, c Cmd) Cmd {
	if !GetExecOptions(ctx).UseSudo {
		return c
	}
	args := append([]string{"-E", c.Name}, c.Args...)
	return Cmd{Name: "sudo", Args: args, Dir: c.Dir, Env: c.Env}
}
