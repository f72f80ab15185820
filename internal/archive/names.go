package archive

import (
	"path"
	"strings"
)

// NormalizeEntryPath converts name into a forward-slash archive path that
// stays inside the archive root.
func NormalizeEntryPath(name string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	switch {
	case normalized == "":
		return "", writeError("name", name, ErrInvalidEntryName)
	case strings.HasPrefix(normalized, "/"):
		return "", writeError("name", name, ErrInvalidEntryName)
	case len(normalized) >= 2 && normalized[1] == ':' && isASCIILetter(normalized[0]):
		return "", writeError("name", name, ErrInvalidEntryName)
	case strings.ContainsRune(normalized, 0):
		return "", writeError("name", name, ErrInvalidEntryName)
	}
	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return "", writeError("name", name, ErrInvalidEntryName)
		}
	}
	cleaned := path.Clean(normalized)
	if cleaned == "." {
		return "", writeError("name", name, ErrInvalidEntryName)
	}
	return cleaned, nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
