package collections

// SliceRemoveIndex returns a copy of slice without the element at i.
func SliceRemoveIndex[T any](slice []T, i int) []T {
	result := make([]T, 0, len(slice)-1)
	result = append(result, slice[:i]...)
	result = append(result, slice[i+1:]...)
	return result
}

// SliceInsertAt returns a copy of slice with value placed at index i.
func SliceInsertAt[T any](slice []T, i int, value T) []T {
	result := make([]T, 0, len(slice)+1)
	result = append(result, slice[:i]...)
	result = append(result, value)
	result = append(result, slice[i:]...)
	return result
}
