// Package fileutil provides the filesystem primitives used to relocate files
// without overwriting anything at the destination.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
)

// TempPrefix marks in-flight copies so scans can ignore them.
const TempPrefix = ".shelver-"

// IsCrossDevice reports whether err is a rename failure across filesystems.
func IsCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// CopyVerified streams src into a new file at dst with SHA256 + size
// verification. dst must not exist. On any failure dst is removed.
func CopyVerified(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, srcInfo.Mode().Perm())
	if err != nil {
		return 0, err
	}
	ok := false
	defer func() {
		_ = out.Close()
		if !ok {
			_ = os.Remove(dst)
		}
	}()

	srcHasher := sha256.New()
	written, err := io.Copy(out, io.TeeReader(in, srcHasher))
	if err != nil {
		return written, err
	}
	if err := out.Sync(); err != nil {
		return written, err
	}
	if written != srcInfo.Size() {
		return written, fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}

	dstSum, err := hashFile(dst)
	if err != nil {
		return written, fmt.Errorf("verify copy: %w", err)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstSum) {
		return written, errors.New("copy hash mismatch: file corrupted during copy")
	}
	ok = true
	return written, nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// MoveAcrossVolumes relocates src to dst when a rename cannot cross
// filesystems. The data lands in a hidden temp file beside dst, is verified,
// and is renamed into place without replacing anything. The source is removed
// only after dst exists.
func MoveAcrossVolumes(src, dst string) error {
	tmp := filepath.Join(filepath.Dir(dst), TempPrefix+uuid.NewString()+".tmp")
	if _, err := CopyVerified(src, tmp); err != nil {
		return err
	}
	if err := RenameNoReplace(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Remove(src); err != nil {
		return &SourceCleanupError{Path: src, Err: err}
	}
	return nil
}

// SourceCleanupError reports that a cross-volume move landed but the source
// could not be deleted afterwards.
type SourceCleanupError struct {
	Path string
	Err  error
}

func (e *SourceCleanupError) Error() string {
	return fmt.Sprintf("remove source %s after copy: %v", e.Path, e.Err)
}

func (e *SourceCleanupError) Unwrap() error { return e.Err }

// Move renames src to dst without replacing an existing dst, falling back to
// a verified copy when the paths live on different filesystems.
func Move(src, dst string) error {
	err := RenameNoReplace(src, dst)
	if err == nil {
		return nil
	}
	if IsCrossDevice(err) {
		return MoveAcrossVolumes(src, dst)
	}
	return err
}

// linkRename emulates a no-replace rename with a hard link. link(2) fails with
// EEXIST when newpath exists, so nothing is overwritten.
func linkRename(oldpath, newpath string) error {
	if err := os.Link(oldpath, newpath); err != nil {
		return err
	}
	if err := os.Remove(oldpath); err != nil {
		_ = os.Remove(newpath)
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: err}
	}
	return nil
}
