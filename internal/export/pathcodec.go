package export

import "strings"

// EncodePath escapes backslashes for storage in LogFiles.
func EncodePath(p string) string {
	return strings.ReplaceAll(p, `\`, `\\`)
}

// DecodePath reverses EncodePath. A network path that picked up extra
// leading backslashes is cut back to a single `\\` UNC prefix.
func DecodePath(p string) string {
	p = strings.ReplaceAll(p, `\\`, `\`)
	return fixNetworkPath(p)
}

func fixNetworkPath(p string) string {
	trimmed := strings.TrimLeft(p, `\`)
	if len(p)-len(trimmed) > 2 {
		return `\\` + trimmed
	}
	return p
}
