package sizeprobe

import "strings"

// Target is something whose total byte size can be probed: a single Path or
// an ordered List of targets. Lists may nest.
type Target interface {
	String() string
	target()
}

// Path is a file or directory on the probed filesystem. Directories are
// traversed recursively.
type Path string

func (p Path) String() string { return string(p) }
func (Path) target()          {}

// List is an ordered collection of targets. Its size is the sum of the sizes
// of its elements.
type List []Target

func (l List) String() string {
	parts := make([]string, 0, len(l))
	for _, t := range l {
		if t == nil {
			continue
		}
		parts = append(parts, t.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (List) target() {}

// Paths builds a List from plain path strings.
func Paths(paths ...string) List {
	l := make(List, 0, len(paths))
	for _, p := range paths {
		l = append(l, Path(p))
	}
	return l
}
