package prefab

// Scope holds the canonical paths of the documents currently being loaded
// along one chain of nested instances. A path enters the scope when its
// template starts resolving instances and leaves it when that finishes, so
// sibling branches may load the same document without tripping the cycle
// check. A Scope must not be shared between concurrent loads.
type Scope struct {
	paths map[string]struct{}
	stack []string
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{paths: make(map[string]struct{})}
}

// Contains reports whether path is being loaded further up the chain.
func (s *Scope) Contains(path string) bool {
	_, ok := s.paths[path]
	return ok
}

// Len returns the current nesting depth.
func (s *Scope) Len() int {
	return len(s.stack)
}

// Paths returns the chain from the outermost document inwards.
func (s *Scope) Paths() []string {
	out := make([]string, len(s.stack))
	copy(out, s.stack)
	return out
}

func (s *Scope) push(path string) {
	s.paths[path] = struct{}{}
	s.stack = append(s.stack, path)
}

func (s *Scope) pop(path string) {
	delete(s.paths, path)
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] == path {
			s.stack = append(s.stack[:i], s.stack[i+1:]...)
			return
		}
	}
}
