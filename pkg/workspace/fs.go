// Package workspace declares the file-mutation interface the Repair
// Agent consumes (per spec.md §6: "Workspace filesystem I/O ... the
// Repair sub-component uses a narrow file-mutation interface"), plus
// LocalFS, a disk-backed implementation rooted at a single directory.
// A sandboxed container mount or a remote workspace service would be an
// alternative FS implementation, not a change to this interface.
package workspace

import "context"

// FS is the narrow interface rooted at a workspace directory; every path
// is relative to that root. Implementations MUST reject paths that
// escape the root (e.g. via "..") before touching the underlying store.
type FS interface {
	// Exists reports whether path exists within the workspace.
	Exists(ctx context.Context, path string) (bool, error)

	// Read returns the full contents of path. It errors if path does not
	// exist.
	Read(ctx context.Context, path string) ([]byte, error)

	// Write replaces the full contents of path, creating it if absent.
	Write(ctx context.Context, path string, content []byte) error
}
