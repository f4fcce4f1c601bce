package substrate

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local implements Substrate with one directory per environment and
// commands run as local OS processes. Images are plain directories
// under <workDir>/images that Create copies from.
type Local struct {
	workDir string
	logger  *slog.Logger
}

// NewLocal creates a Local substrate rooted at workDir.
// If workDir is empty, os.TempDir() is used.
func NewLocal(workDir string, logger *slog.Logger) *Local {
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &Local{
		workDir: workDir,
		logger:  logger.With("component", "local-substrate"),
	}
}

func (l *Local) envDir(handle string) string {
	return filepath.Join(l.workDir, "envs", handle)
}

func (l *Local) imageDir(name string) string {
	return filepath.Join(l.workDir, "images", name)
}

// Create provisions a new environment directory, optionally seeded by
// copying a checkpointed image directory.
func (l *Local) Create(ctx context.Context, seedImage string) (string, error) {
	handle := "env_" + uuid.New().String()[:8]
	dir := l.envDir(handle)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &Error{Kind: KindFatal, Op: "create", Handle: handle, Err: err}
	}

	if seedImage != "" {
		src := l.imageDir(seedImage)
		if _, err := os.Stat(src); err != nil {
			os.RemoveAll(dir)
			return "", &Error{Kind: KindFatal, Op: "create", Handle: handle,
				Err: fmt.Errorf("seed image %q: %w", seedImage, err)}
		}
		if err := copyTree(src, dir); err != nil {
			os.RemoveAll(dir)
			return "", &Error{Kind: KindFatal, Op: "create", Handle: handle,
				Err: fmt.Errorf("seed from %q: %w", seedImage, err)}
		}
	}

	l.logger.Debug("environment created", "handle", handle, "seed", seedImage)
	return handle, nil
}

// WriteFile places data at path (relative to the environment root).
func (l *Local) WriteFile(ctx context.Context, handle, path string, data []byte) error {
	dest := filepath.Join(l.envDir(handle), filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &Error{Kind: KindFatal, Op: "write", Handle: handle, Path: path, Err: err}
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return &Error{Kind: KindFatal, Op: "write", Handle: handle, Path: path, Err: err}
	}
	return nil
}

// Run starts the command with the environment directory as its working
// directory and returns as soon as the process has started. The
// command's exit is not observed here; completion is detected by
// reading the result file it writes.
func (l *Local) Run(ctx context.Context, handle, command string) error {
	dir := l.envDir(handle)
	if _, err := os.Stat(dir); err != nil {
		return &Error{Kind: KindFatal, Op: "run", Handle: handle, Err: err}
	}

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = dir
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return &Error{Kind: KindFatal, Op: "run", Handle: handle, Err: err}
	}
	l.logger.Debug("command started", "handle", handle, "pid", cmd.Process.Pid)

	// Reap the process in the background so it does not linger as a zombie.
	go cmd.Wait()
	return nil
}

// ReadFile reads a file out of the environment, mapping a missing file
// to KindNotFound.
func (l *Local) ReadFile(ctx context.Context, handle, path string) ([]byte, error) {
	src := filepath.Join(l.envDir(handle), filepath.FromSlash(path))
	data, err := os.ReadFile(src)
	if err != nil {
		kind := KindFatal
		if os.IsNotExist(err) {
			kind = KindNotFound
		}
		return nil, &Error{Kind: kind, Op: "read", Handle: handle, Path: path, Err: err}
	}
	return data, nil
}

// Checkpoint copies the environment directory into the image store and
// returns the image name.
func (l *Local) Checkpoint(ctx context.Context, handle, destination string) (string, error) {
	name := destination
	if name == "" {
		name = "img_" + uuid.New().String()[:8]
	}
	// Image names stay flat; reject path-ish destinations.
	if strings.ContainsAny(name, "/\\") {
		return "", &Error{Kind: KindFatal, Op: "checkpoint", Handle: handle,
			Err: fmt.Errorf("invalid image name %q", name)}
	}

	src := l.envDir(handle)
	dest := l.imageDir(name)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", &Error{Kind: KindFatal, Op: "checkpoint", Handle: handle, Err: err}
	}
	if err := copyTree(src, dest); err != nil {
		return "", &Error{Kind: KindFatal, Op: "checkpoint", Handle: handle, Err: err}
	}
	l.logger.Debug("environment checkpointed", "handle", handle, "image", name)
	return name, nil
}

// Destroy removes the environment directory.
func (l *Local) Destroy(ctx context.Context, handle string) error {
	if err := os.RemoveAll(l.envDir(handle)); err != nil {
		return &Error{Kind: KindTransient, Op: "destroy", Handle: handle, Err: err}
	}
	l.logger.Debug("environment destroyed", "handle", handle)
	return nil
}

// copyTree recursively copies src into dest. Both must be directories.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
