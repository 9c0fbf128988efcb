package whitebox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// DefaultBinary is the executable looked up on PATH when none is configured.
const DefaultBinary = "whitebox_tools"

// Runner executes one WhiteboxTools invocation and returns its combined
// output.
type Runner interface {
	Run(ctx context.Context, args []string) ([]byte, error)
}

// ExecRunner runs the whitebox_tools binary as a child process.
type ExecRunner struct {
	Binary string
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, args []string) ([]byte, error) {
	bin := r.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s: %w", bin, err)
	}
	return out.Bytes(), nil
}
