package vision

import "strings"

// AllowedExtensions lists the upload suffixes accepted by Allowed, in the order
// they are reported to clients.
var AllowedExtensions = []string{"jpg", "jpeg", "png", "webp"}

// Allowed reports whether filename carries an accepted image extension. The
// comparison is case-insensitive and only the text after the last dot counts.
func Allowed(filename string) bool {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return false
	}
	ext := strings.ToLower(filename[idx+1:])
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
