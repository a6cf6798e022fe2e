package locator

// MemoLen exposes the number of memoized queries of a snapshot.
func MemoLen(r *Registry) int {
	return r.memo.len()
}
