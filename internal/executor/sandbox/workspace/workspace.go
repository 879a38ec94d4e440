// Package workspace materializes executable payloads on disk.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"execsvc/pkg/errors"

	"github.com/google/uuid"
)

const (
	dirPattern     = "exec-*"
	executableName = "program"
	executableMode = 0o700
)

// Workspace is one request's private directory holding the executable.
type Workspace struct {
	Dir  string
	Path string
}

// Materializer creates workspaces under Root, or the system temp dir when empty.
type Materializer struct {
	Root string
}

// NewMaterializer creates a materializer rooted at root.
func NewMaterializer(root string) *Materializer {
	return &Materializer{Root: root}
}

// Materialize writes payload into a fresh directory with the execute bit set.
// The caller must call Release on the returned workspace.
func (m *Materializer) Materialize(payload []byte, limit int64) (*Workspace, error) {
	if limit > 0 && int64(len(payload)) > limit {
		return nil, errors.Newf(errors.ExecutableTooLarge, "executable is %d bytes, limit is %d", len(payload), limit).
			WithDetail("size", len(payload)).
			WithDetail("limit", limit)
	}
	if m.Root != "" {
		if err := os.MkdirAll(m.Root, 0o755); err != nil {
			return nil, errors.Wrapf(err, errors.MaterializationFailed, "create workspace root: %v", err)
		}
	}

	// The uuid keeps names unguessable even if the temp dir naming is predictable.
	dir, err := os.MkdirTemp(m.Root, uuid.NewString()+"-"+dirPattern)
	if err != nil {
		return nil, errors.Wrapf(err, errors.MaterializationFailed, "create workspace: %v", err)
	}
	// The engine runs the child inside Dir, so a relative Path would not resolve.
	absDir, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, errors.Wrapf(err, errors.MaterializationFailed, "resolve workspace: %v", err)
	}
	ws := &Workspace{Dir: absDir, Path: filepath.Join(absDir, executableName)}

	if err := writeExecutable(ws.Path, payload); err != nil {
		ws.Release()
		return nil, errors.Wrapf(err, errors.MaterializationFailed, "write executable: %v", err)
	}
	return ws, nil
}

func writeExecutable(path string, payload []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, executableMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Umask may have stripped bits from the create mode.
	return os.Chmod(path, executableMode)
}

// Release removes the workspace. It is safe to call more than once.
func (w *Workspace) Release() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.Dir, err)
	}
	return nil
}
