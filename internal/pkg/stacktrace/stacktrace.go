// Package stacktrace trims runtime stack dumps down to this module's frames.
package stacktrace

import "strings"

const marker = "/internal/"

// InternalPaths returns "internal/<pkg>/<file>.go:<line>" entries for every frame
// that belongs to the module, in stack order. It returns an empty slice when no
// frame matches, in which case callers fall back to logging the raw stack.
func InternalPaths(stack []byte) []string {
	lines := strings.Split(string(stack), "\n")
	paths := make([]string, 0, len(lines)/2)

	for _, line := range lines {
		line = strings.TrimSpace(line)

		start := strings.Index(line, marker)
		if start == -1 {
			continue
		}

		ext := strings.Index(line, ".go:")
		if ext == -1 || ext < start {
			continue
		}

		loc := line[start+1:]
		if sp := strings.IndexByte(loc, ' '); sp != -1 {
			loc = loc[:sp]
		}
		paths = append(paths, loc)
	}

	return paths
}
