package util

import "slices"

// A Set represents a set of strings.
// The zero value represents an empty set, but a read-only one.
type Set map[string]struct{}

// NewSet returns a Set that contains all of elems
// but no other elements.
func NewSet(elems ...string) Set {
	set := make(Set, len(elems))
	for _, e := range elems {
		set[e] = struct{}{}
	}
	return set
}

// Contains reports whether e is an element of set.
func (set Set) Contains(e string) bool {
	_, found := set[e]
	return found
}

// ToSortedSlice returns a slice of set's elements sorted in lexicographical
// order.
func (set Set) ToSortedSlice() []string {
	res := make([]string, 0, len(set))
	for e := range set {
		res = append(res, e)
	}
	slices.Sort(res)
	return res
}
