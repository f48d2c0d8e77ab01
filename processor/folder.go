package processor

import "strings"

// Folder classifies key by the path segment that follows prefix.
//
//	Folder("logs", "logs/elb/2020/file.gz") == "elb"
//	Folder("logs", "logs/file.gz")          == ""
//
// Keys that do not start with prefix, or have no further path separator
// after the segment, are classified as "".
func Folder(prefix, key string) string {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return ""
	}

	rest = strings.TrimLeft(rest, "/")

	folder, _, found := strings.Cut(rest, "/")
	if !found {
		return ""
	}

	return folder
}
