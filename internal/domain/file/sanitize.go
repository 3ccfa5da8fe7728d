package file

import (
	"path/filepath"
	"regexp"
	"strings"
)

const maxNameLength = 255

var unsafeNameChars = regexp.MustCompile(`[^\w\-.]`)

// SanitizeName strips directory components and replaces characters that are
// unsafe in stored names. Long names are cut while keeping the extension.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	name = unsafeNameChars.ReplaceAllString(name, "_")
	if len(name) > maxNameLength {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:maxNameLength-len(ext)] + ext
	}
	return name
}
