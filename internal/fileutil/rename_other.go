//go:build !linux

package fileutil

// RenameNoReplace renames oldpath to newpath and fails with EEXIST when
// newpath already exists.
func RenameNoReplace(oldpath, newpath string) error {
	return linkRename(oldpath, newpath)
}
