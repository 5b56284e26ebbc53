package db

// UpperBound returns the smallest key that is greater than every key with the
// given prefix, or nil if no such key exists.
func UpperBound(prefix []byte) []byte {
	var ub []byte
	for i := len(prefix) - 1; i >= 0; i-- {
		if prefix[i] == 0xff {
			continue
		}
		ub = make([]byte, i+1)
		copy(ub, prefix)
		ub[i]++
		return ub
	}
	return nil
}
