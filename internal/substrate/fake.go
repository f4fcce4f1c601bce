package substrate

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Substrate for tests and dry runs. Environments
// are maps of path to content; result files appear only when a test
// plants them with SetFile, so completion-polling behavior can be
// scripted tick by tick.
type Fake struct {
	mu         sync.Mutex
	envs       map[string]map[string][]byte
	images     map[string]map[string][]byte
	commands   map[string][]string
	destroyed  []string
	nextCreate int
	createErr  error
	readErrs   map[string]error
}

// NewFake creates an empty Fake substrate.
func NewFake() *Fake {
	return &Fake{
		envs:     make(map[string]map[string][]byte),
		images:   make(map[string]map[string][]byte),
		commands: make(map[string][]string),
		readErrs: make(map[string]error),
	}
}

// Create provisions a new in-memory environment.
func (f *Fake) Create(ctx context.Context, seedImage string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		err := f.createErr
		f.createErr = nil
		return "", &Error{Kind: KindFatal, Op: "create", Err: err}
	}

	f.nextCreate++
	handle := fmt.Sprintf("env_fake_%d", f.nextCreate)
	files := make(map[string][]byte)
	if seedImage != "" {
		img, ok := f.images[seedImage]
		if !ok {
			return "", &Error{Kind: KindFatal, Op: "create",
				Err: fmt.Errorf("seed image %q not found", seedImage)}
		}
		for path, data := range img {
			files[path] = append([]byte(nil), data...)
		}
	}
	f.envs[handle] = files
	return handle, nil
}

// WriteFile stores data in the environment.
func (f *Fake) WriteFile(ctx context.Context, handle, path string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	env, ok := f.envs[handle]
	if !ok {
		return &Error{Kind: KindFatal, Op: "write", Handle: handle, Path: path,
			Err: fmt.Errorf("no such environment")}
	}
	env[path] = append([]byte(nil), data...)
	return nil
}

// Run records the command without executing anything.
func (f *Fake) Run(ctx context.Context, handle, command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.envs[handle]; !ok {
		return &Error{Kind: KindFatal, Op: "run", Handle: handle,
			Err: fmt.Errorf("no such environment")}
	}
	f.commands[handle] = append(f.commands[handle], command)
	return nil
}

// ReadFile returns a planted file, an injected error, or KindNotFound.
func (f *Fake) ReadFile(ctx context.Context, handle, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.readErrs[handle]; ok {
		delete(f.readErrs, handle)
		return nil, &Error{Kind: KindFatal, Op: "read", Handle: handle, Path: path, Err: err}
	}
	env, ok := f.envs[handle]
	if !ok {
		return nil, &Error{Kind: KindFatal, Op: "read", Handle: handle, Path: path,
			Err: fmt.Errorf("no such environment")}
	}
	data, ok := env[path]
	if !ok {
		return nil, &Error{Kind: KindNotFound, Op: "read", Handle: handle, Path: path,
			Err: fmt.Errorf("file not produced yet")}
	}
	return append([]byte(nil), data...), nil
}

// Checkpoint snapshots the environment's files under the given name.
func (f *Fake) Checkpoint(ctx context.Context, handle, destination string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	env, ok := f.envs[handle]
	if !ok {
		return "", &Error{Kind: KindFatal, Op: "checkpoint", Handle: handle,
			Err: fmt.Errorf("no such environment")}
	}
	name := destination
	if name == "" {
		name = fmt.Sprintf("img_fake_%d", len(f.images)+1)
	}
	img := make(map[string][]byte, len(env))
	for path, data := range env {
		img[path] = append([]byte(nil), data...)
	}
	f.images[name] = img
	return name, nil
}

// Destroy removes the environment and records its handle.
func (f *Fake) Destroy(ctx context.Context, handle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.envs, handle)
	f.destroyed = append(f.destroyed, handle)
	return nil
}

// SetFile plants a file in an environment, simulating a run that has
// produced its output.
func (f *Fake) SetFile(handle, path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if env, ok := f.envs[handle]; ok {
		env[path] = append([]byte(nil), data...)
	}
}

// FailNextCreate makes the next Create call fail with err.
func (f *Fake) FailNextCreate(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createErr = err
}

// FailNextRead makes the next ReadFile for handle fail fatally.
func (f *Fake) FailNextRead(handle string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErrs[handle] = err
}

// Commands returns the commands accepted for handle, in order.
func (f *Fake) Commands(handle string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands[handle]...)
}

// Handles returns the handles of all live environments.
func (f *Fake) Handles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	handles := make([]string, 0, len(f.envs))
	for h := range f.envs {
		handles = append(handles, h)
	}
	return handles
}

// Destroyed returns the handles destroyed so far, in order.
func (f *Fake) Destroyed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.destroyed...)
}
