//go:build windows

package ops

import (
	"fmt"
	"os"

	"github.com/hpungsan/moment/internal/errors"
)

// createTemp creates the staging file for an atomic image or backup write.
// Windows has no O_NOFOLLOW; O_EXCL still refuses an existing name.
func createTemp(path string, kind PathKind) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("%s staging file already exists: %s", kind, path))
		}
		return nil, err
	}
	return f, nil
}

// openSource opens a gallery image or backup file for reading. ValidatePath
// has already rejected symlinks.
func openSource(path string, kind PathKind) (*os.File, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("%s file is a symlink: %s", kind, path))
	}
	return os.Open(path)
}
