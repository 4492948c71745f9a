package app

// idSequence mints item ids for one store. The first id is 1.
type idSequence struct {
	last int
}

// Next advances the counter and returns the new id.
func (s *idSequence) Next() int {
	s.last++
	return s.last
}

// Current returns the most recently issued id.
func (s *idSequence) Current() int {
	return s.last
}

// Reset rewinds the counter so the next id is 1.
func (s *idSequence) Reset() {
	s.last = 0
}

// Seed raises the counter to n. Ids never go backwards.
func (s *idSequence) Seed(n int) {
	if n > s.last {
		s.last = n
	}
}
