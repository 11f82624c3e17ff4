package ops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/moment/internal/errors"
)

func TestCreateTemp_RefusesExistingName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.jsonl.tmp")

	f, err := createTemp(path, PathKindBackup)
	if err != nil {
		t.Fatalf("createTemp failed: %v", err)
	}
	f.Close()

	_, err = createTemp(path, PathKindBackup)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got: %v", err)
	}
	if !strings.Contains(err.Error(), "backup staging file") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestOpenSource(t *testing.T) {
	dir := t.TempDir()

	_, err := openSource(filepath.Join(dir, "missing.jpg"), PathKindImage)
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got: %v", err)
	}

	target := filepath.Join(dir, "photo.jpg")
	writeFile(t, target)
	f, err := openSource(target, PathKindImage)
	if err != nil {
		t.Fatalf("openSource failed: %v", err)
	}
	f.Close()

	link := filepath.Join(dir, "link.jpg")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}
	_, err = openSource(link, PathKindImage)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got: %v", err)
	}
	if !strings.Contains(err.Error(), "image file is a symlink") {
		t.Errorf("message = %q", err.Error())
	}
}
