package utils

// HeapPtr allocates v on the heap and returns a pointer to it.
func HeapPtr[T any](v T) *T {
	return &v
}
