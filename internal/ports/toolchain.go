package ports

import (
	"context"

	"github.com/tejashwikalptaru/cyder/internal/domain"
)

// CommandResult is the captured outcome of an external process.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Toolchain locates, installs and runs the external binaries.
//
// Thread-safety: Implementations must be thread-safe.
type Toolchain interface {
	// IsInstalled checks PATH, then the local exes directory. No side effects.
	IsInstalled(binary domain.Binary) bool

	// ResolveCommand returns the path to invoke, or a *domain.ToolNotFoundError.
	ResolveCommand(binary domain.Binary) (string, error)

	// DownloadAndInstall fetches and extracts the binary. It returns true
	// immediately if the binary is already installed.
	DownloadAndInstall(ctx context.Context, binary domain.Binary) (bool, error)

	// ProbeDurationMillis returns the duration of the file in milliseconds,
	// or domain.UnknownDuration on any failure.
	ProbeDurationMillis(ctx context.Context, path string) int64

	// Run resolves binary and runs it with args, capturing output.
	// A non-zero exit is reported in the result, not as an error.
	Run(ctx context.Context, binary domain.Binary, args ...string) (CommandResult, error)
}

// OutputWaiter blocks until a file written by another process is complete.
type OutputWaiter interface {
	// WaitStable returns once path exists and its size has not changed for the
	// configured quiet period, or when ctx is done.
	WaitStable(ctx context.Context, path string) error
}

// DirWatcher reports changes to a directory.
type DirWatcher interface {
	// Watch replaces any previous watch with dir. onChange runs on the
	// watcher goroutine after a burst of changes settles.
	Watch(dir string, onChange func(dir string)) error

	// Close stops watching and waits for the watcher goroutine to exit.
	Close() error
}
