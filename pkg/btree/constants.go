package btree

// minDegree returns t = ceil(m/2), the minimum degree for order m.
func minDegree(order int32) int32 {
	return (order + 1) / 2
}

// maxKeys returns m-1, the maximum number of keys a node of order m holds.
func maxKeys(order int32) int32 {
	return order - 1
}

// minKeysNonRoot returns t-1, the minimum number of keys any non-root node
// must hold once an operation completes.
func minKeysNonRoot(order int32) int32 {
	return minDegree(order) - 1
}
