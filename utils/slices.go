package utils

import (
	"slices"
	"strings"

	"github.com/NethermindEth/stark-state/core/felt"
)

func Map[T1, T2 any](slice []T1, f func(T1) T2) []T2 {
	if slice == nil {
		return nil
	}

	result := make([]T2, len(slice))
	for i, e := range slice {
		result[i] = f(e)
	}

	return result
}

// All returns true if all elements match the given predicate
func All[T any](slice []T, f func(T) bool) bool {
	return slices.IndexFunc(slice, func(e T) bool { return !f(e) }) == -1
}

// SortedKeys returns the keys of m ordered by cmpFn so iteration over diffs is reproducible.
func SortedKeys[K comparable, V any](m map[K]V, cmpFn func(a, b K) int) []K {
	keys := MapKeys(m)
	slices.SortFunc(keys, cmpFn)
	return keys
}

func CompareFelts(a, b felt.Felt) int {
	return a.Cmp(&b)
}

func FeltArrToString(arr []*felt.Felt) string {
	res := make([]string, len(arr))
	for i, f := range arr {
		res[i] = f.String()
	}
	return strings.Join(res, ", ")
}
