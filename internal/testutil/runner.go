// Package testutil provides fakes shared by package tests.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/vigiglobe/mesos-deb-packaging/internal/utils"
)

// Response is what a FakeRunner returns for a matching command.
type Response struct {
	Output string
	Err    error
}

// FakeRunner records every command and answers from a table keyed by the
// command line ("dpkg -s libcurl4-nss-dev"). Unmatched commands succeed
// with empty output.
type FakeRunner struct {
	mu        sync.Mutex
	Responses map[string]Response
	// Hook runs before a command is answered, e.g. to create files a real
	// tool would have produced.
	Hook  func(c utils.Cmd)
	Calls []utils.Cmd
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{Responses: map[string]Response{}}
}

// On registers a response for a command line.
func (f *FakeRunner) On(cmdline string, resp Response) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Responses[cmdline] = resp
	return f
}

// Fail makes cmdline fail with the given exit status.
func (f *FakeRunner) Fail(cmdline string, status int) *FakeRunner {
	name, _, _ := strings.Cut(cmdline, " ")
	return f.On(cmdline, Response{Err: &utils.ToolError{Name: name, ExitCode: status}})
}

func (f *FakeRunner) Run(_ context.Context, c utils.Cmd) error {
	_, err := f.answer(c)
	return err
}

func (f *FakeRunner) Output(_ context.Context, c utils.Cmd) (string, error) {
	return f.answer(c)
}

func (f *FakeRunner) answer(c utils.Cmd) (string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, c)
	hook := f.Hook
	resp := f.Responses[c.String()]
	f.mu.Unlock()
	if hook != nil {
		hook(c)
	}
	return resp.Output, resp.Err
}

// CommandLines returns the recorded commands as strings.
func (f *FakeRunner) CommandLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, c.String())
	}
	return out
}

// Find returns the first recorded command whose name is name.
func (f *FakeRunner) Find(name string) (utils.Cmd, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.Calls {
		if c.Name == name {
			return c, true
		}
	}
	return utils.Cmd{}, false
}
