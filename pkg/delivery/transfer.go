package delivery

import (
	"context"
	"os/exec"
	"strings"

	"github.com/mattn/go-shellwords"
	pkgerrors "github.com/pkg/errors"
)

// Placeholders substituted in transfer command templates.
const (
	PlaceholderSrc = "{src}"
	PlaceholderDst = "{dst}"
)

// Runner executes one command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command directly, without a shell.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Transferer copies one local file to the destination.
type Transferer interface {
	Transfer(ctx context.Context, src string) error
}

// CommandTransfer runs Template once per file. The template is split into
// arguments first, so file names with spaces stay a single argument.
type CommandTransfer struct {
	Template    string
	Destination string
	Run         Runner
}

func (c *CommandTransfer) Transfer(ctx context.Context, src string) error {
	argv, err := Command(c.Template, map[string]string{PlaceholderSrc: src, PlaceholderDst: c.Destination})
	if err != nil {
		return err
	}
	out, err := c.runner()(ctx, argv[0], argv[1:]...)
	if err != nil {
		return pkgerrors.Wrapf(err, "%s %s: %s", argv[0], src, strings.TrimSpace(string(out)))
	}
	return nil
}

func (c *CommandTransfer) runner() Runner {
	if c.Run == nil {
		return ExecRunner
	}
	return c.Run
}

// Command splits template into argv and replaces every placeholder key in
// each argument with its value.
func Command(template string, values map[string]string) ([]string, error) {
	argv, err := shellwords.Parse(template)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "parse command %q", template)
	}
	if len(argv) == 0 {
		return nil, pkgerrors.Errorf("empty command %q", template)
	}
	for i, a := range argv {
		for k, v := range values {
			a = strings.ReplaceAll(a, k, v)
		}
		argv[i] = a
	}
	return argv, nil
}
