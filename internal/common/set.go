package common

import "sort"

type Set[T comparable] struct {
	elements map[T]struct{}
}

// NewSet creates a new set holding the given values
func NewSet[T comparable](values ...T) *Set[T] {
	s := &Set[T]{
		elements: make(map[T]struct{}, len(values)),
	}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s *Set[T]) Add(value T) {
	s.elements[value] = struct{}{}
}

func (s *Set[T]) Remove(value T) {
	delete(s.elements, value)
}

func (s *Set[T]) Contains(value T) bool {
	_, found := s.elements[value]
	return found
}

func (s *Set[T]) Size() int {
	return len(s.elements)
}

// List returns all elements in the set in no particular order
func (s *Set[T]) List() []T {
	keys := make([]T, 0, len(s.elements))
	for key := range s.elements {
		keys = append(keys, key)
	}
	return keys
}

// SortedStrings returns the members of a string set in lexical order.
func SortedStrings(s *Set[string]) []string {
	out := s.List()
	sort.Strings(out)
	return out
}
