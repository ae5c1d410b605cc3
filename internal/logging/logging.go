// Package logging configures the charm logger shared by every pipeline
// step. The logger travels in the context.
package logging

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w. Verbose wins over quiet.
func New(w io.Writer, verbose, quiet bool) *log.Logger {
	level := log.InfoLevel
	switch {
	case verbose:
		level = log.DebugLevel
	case quiet:
		level = log.WarnLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "mesos-pkg",
		Level:  level,
	})
}

func With(ctx context.Context, l *log.Logger) context.Context {
	return log.WithContext(ctx, l)
}

// From returns the context's logger, or the package default.
func From(ctx context.Context) *log.Logger {
	return log.FromContext(ctx)
}

// Step returns a logger tagged with a pipeline step name.
func Step(ctx context.Context, step string) *log.Logger {
	return From(ctx).With("step", step)
}
