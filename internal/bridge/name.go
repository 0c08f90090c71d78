package bridge

import (
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const (
	sourceSuffix = ".py"
	packageInit  = "__init__.py"
)

var (
	errNotSource = errors.New("not a " + sourceSuffix + " file")
	errNoParent  = errors.New("package init file has no parent directory")
	errBadText   = errors.New("contains NUL or invalid UTF-8")
)

// moduleName derives the name a unit at path is registered under: the file
// name without its suffix, or the directory name for a package init file.
func moduleName(path string) (string, InitKind, error) {
	base := filepath.Base(path)
	var name string
	switch {
	case base == packageInit:
		dir := filepath.Base(filepath.Dir(path))
		if dir == "." || dir == string(filepath.Separator) || dir == "" {
			return "", KindPath, errNoParent
		}
		name = dir
	case strings.HasSuffix(base, sourceSuffix) && len(base) > len(sourceSuffix):
		name = strings.TrimSuffix(base, sourceSuffix)
	default:
		return "", KindPath, errNotSource
	}
	if !encodable(name) {
		return "", KindEncoding, errBadText
	}
	return name, 0, nil
}

func encodable(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}
