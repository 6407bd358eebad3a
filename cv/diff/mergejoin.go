// Package diff computes create/delete decisions between two collections with a
// single sorted merge-join pass.
//
// MergeJoin is stateless: working copies and cursors are locals of one call,
// so a synchronizer can be reused across terms without leaking state.
package diff

import "slices"

// Result partitions the union of a local and a remote collection.
type Result[T any] struct {
	// Unchanged holds keys present on both sides.
	Unchanged []T
	// Created holds remote-only keys.
	Created []T
	// Deleted holds local-only keys that are not protected.
	Deleted []T
	// Protected holds local-only keys kept because protect returned true.
	Protected []T
}

// Empty reports whether nothing has to be created or deleted.
func (r Result[T]) Empty() bool {
	return len(r.Created) == 0 && len(r.Deleted) == 0
}

// MergeJoin walks local and remote in cmp order. Inputs need not be sorted;
// sorted copies are taken so callers keep their slices untouched. Duplicate
// keys on one side collapse: a second local copy of a key is deleted, a
// second remote copy is ignored.
//
// protect may be nil.
func MergeJoin[T any](local, remote []T, cmp func(a, b T) int, protect func(T) bool) Result[T] {
	l := slices.Clone(local)
	r := slices.Clone(remote)
	slices.SortStableFunc(l, cmp)
	slices.SortStableFunc(r, cmp)
	r = slices.CompactFunc(r, func(a, b T) bool { return cmp(a, b) == 0 })

	var res Result[T]
	leftOnly := func(v T) {
		if protect != nil && protect(v) {
			res.Protected = append(res.Protected, v)
			return
		}
		res.Deleted = append(res.Deleted, v)
	}

	i, j := 0, 0
	for i < len(l) && j < len(r) {
		switch c := cmp(l[i], r[j]); {
		case c == 0:
			res.Unchanged = append(res.Unchanged, l[i])
			i++
			// remaining local copies of the same key are surplus
			for i < len(l) && cmp(l[i], r[j]) == 0 {
				leftOnly(l[i])
				i++
			}
			j++
		case c < 0:
			leftOnly(l[i])
			i++
		default:
			res.Created = append(res.Created, r[j])
			j++
		}
	}
	for ; i < len(l); i++ {
		leftOnly(l[i])
	}
	for ; j < len(r); j++ {
		res.Created = append(res.Created, r[j])
	}
	return res
}
