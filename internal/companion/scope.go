package companion

// Scope collects the releases a state registers on Entry. The machine closes it
// on Exit, so nothing a state subscribes to outlives the state.
type Scope struct {
	releases []func()
	closed   bool
}

// NewScope returns an open scope.
func NewScope() *Scope {
	return &Scope{}
}

// Defer registers fn to run when the scope closes. On a closed scope fn runs
// immediately.
func (s *Scope) Defer(fn func()) {
	if fn == nil {
		return
	}
	if s.closed {
		fn()
		return
	}
	s.releases = append(s.releases, fn)
}

// Close runs every registered release in reverse order. It is idempotent.
func (s *Scope) Close() {
	if s.closed {
		return
	}
	s.closed = true
	for i := len(s.releases) - 1; i >= 0; i-- {
		s.releases[i]()
	}
	s.releases = nil
}

// Closed reports whether Close has run.
func (s *Scope) Closed() bool {
	return s.closed
}
