// Package logger provides FailureLogger implementations: persisting a
// reproducer for a confirmed assertion failure (spec §4.H).
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caffeine-vm/caffeine"
)

var _ caffeine.FailureLogger = (*Dir)(nil)

// Dir writes one directory per failure under Root, named
// failure-<uuid> so concurrent runs and repeated invocations never
// collide. Each directory holds a trace.txt with the failing
// assertion, the message, and a go-spew dump of the path's final
// Context — a human-readable reproducer the way spec §6 describes
// ("typical: one directory per failure containing a reproducer harness
// and a human-readable trace"), without a generated harness binary
// since the engine targets LLVM IR rather than a host language the
// core can itself compile and re-run.
type Dir struct {
	Root string
	Log  zerolog.Logger
}

// NewDir returns a Dir logger rooted at root, creating it if absent.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("caffeine: creating failure directory: %w", err)
	}
	return &Dir{Root: root, Log: zerolog.Nop()}, nil
}

// LogFailure writes a new failure-<uuid> directory under d.Root. model is
// the concrete satisfying assignment the solver produced for assertion
// (spec §3 invariant 5); it is written to model.txt alongside trace.txt
// so the reproducer always carries the counterexample, not just the
// symbolic condition that triggered it.
func (d *Dir) LogFailure(ctx *caffeine.Context, assertion caffeine.Assertion, model *caffeine.Model, message string) error {
	name := fmt.Sprintf("failure-%s", uuid.New().String())
	dir := filepath.Join(d.Root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("caffeine: creating %s: %w", dir, err)
	}

	trace := fmt.Sprintf(
		"context: %s\nmessage: %s\nassertion: %s\n\n%s",
		ctx.String(), message, assertion.String(), spew.Sdump(ctx),
	)
	path := filepath.Join(dir, "trace.txt")
	if err := os.WriteFile(path, []byte(trace), 0644); err != nil {
		return fmt.Errorf("caffeine: writing %s: %w", path, err)
	}

	modelPath := filepath.Join(dir, "model.txt")
	if err := os.WriteFile(modelPath, []byte(model.String()), 0644); err != nil {
		return fmt.Errorf("caffeine: writing %s: %w", modelPath, err)
	}

	d.Log.Warn().Str("dir", dir).Str("message", message).Msg("failure logged")
	return nil
}
