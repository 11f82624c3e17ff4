//go:build !windows

package ops

import (
	stderrors "errors"
	"fmt"
	"os"
	"syscall"

	"github.com/hpungsan/moment/internal/errors"
)

// createTemp creates the staging file for an atomic image or backup write.
// It fails if the name already exists, symlink included.
func createTemp(path string, kind PathKind) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_CREAT|syscall.O_EXCL|syscall.O_WRONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0600)
	if err != nil {
		if stderrors.Is(err, syscall.EEXIST) || stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s staging file already exists: %s", kind, path))
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openSource opens a gallery image or backup file for reading without
// following a symlink in the final component. Parent directories were
// already checked by ValidatePath.
func openSource(path string, kind PathKind) (*os.File, error) {
	fd, err := syscall.Open(path, syscall.O_RDONLY|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, 0)
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s file is a symlink: %s", kind, path))
		}
		if stderrors.Is(err, syscall.ENOENT) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	return os.NewFile(uintptr(fd), path), nil
}
