package types

import (
	"path/filepath"
	"strings"
)

// FileType is the logical kind of a transferred file. It selects the codec on
// both ends and the destination naming rule on the receiver.
type FileType uint8

const (
	FileTypeBin FileType = iota
	FileTypeJSON
	FileTypePkl
	FileTypeTxt
	FileTypeSo
)

var fileTypeNames = map[FileType]string{
	FileTypeBin:  "bin",
	FileTypeJSON: "json",
	FileTypePkl:  "pkl",
	FileTypeTxt:  "txt",
	FileTypeSo:   "so",
}

// FileTypes lists every known file type.
func FileTypes() []FileType {
	return []FileType{FileTypeJSON, FileTypePkl, FileTypeTxt, FileTypeSo, FileTypeBin}
}

func (t FileType) String() string {
	if name, ok := fileTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

func (t FileType) Valid() bool {
	_, ok := fileTypeNames[t]
	return ok
}

// ParseFileType parses the wire tag of a file type. Unknown tags are an error.
func ParseFileType(s string) (FileType, error) {
	for t, name := range fileTypeNames {
		if name == s {
			return t, nil
		}
	}
	return FileTypeBin, Wrapf(ErrUnknownFileType, "%q", s)
}

func (t FileType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, Wrapf(ErrUnknownFileType, "%d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText reads a wire tag; an empty tag defaults to bin.
func (t *FileType) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*t = FileTypeBin
		return nil
	}
	parsed, err := ParseFileType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// FileTypeFromPath infers the file type from the extension of path. Anything
// other than json, pkl, txt and so is bin.
func FileTypeFromPath(path string) FileType {
	ext := strings.TrimPrefix(filepath.Ext(filepath.Base(path)), ".")
	switch ext {
	case "json":
		return FileTypeJSON
	case "pkl":
		return FileTypePkl
	case "txt":
		return FileTypeTxt
	case "so":
		return FileTypeSo
	default:
		return FileTypeBin
	}
}

// LogicalName derives the name a file is announced under: the base name cut
// at its first dot, or for shared objects the base name without the final
// extension only ("libfoo.v2.so" -> "libfoo.v2").
func LogicalName(path string, ft FileType) string {
	base := filepath.Base(path)
	if ft == FileTypeSo {
		return strings.TrimSuffix(base, filepath.Ext(base))
	}
	if i := strings.IndexByte(base, '.'); i >= 0 {
		return base[:i]
	}
	return base
}
