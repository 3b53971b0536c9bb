package rules

import "strings"

// Destination is the relative placement computed for a single file.
type Destination struct {
	Folder   string
	Filename string
}

// ExtensionOf returns the normalized text after the last dot in filename, or
// the empty string when there is none.
func ExtensionOf(filename string) string {
	idx := strings.LastIndexByte(filename, '.')
	if idx < 0 {
		return ""
	}
	return NormalizeExtension(filename[idx+1:])
}

// Resolve maps filename to its destination. The boolean is false when no rule
// matches, which is not an error. Resolve does not touch the filesystem.
func (t *Table) Resolve(filename string) (Destination, bool) {
	ext := ExtensionOf(filename)
	if ext == "" {
		return Destination{}, false
	}
	position, ok := t.index[ext]
	if !ok {
		return Destination{}, false
	}
	return Destination{Folder: t.rules[position].Folder(), Filename: filename}, true
}
