package protocol

// IsNew reports whether new is strictly ahead of last within the forward
// half-circle, wrapping at 2^16. Grounded on the teacher's SequenceWindow
// wrap-aware bookkeeping (internal/protocol/window.go in the teacher repo),
// generalized here from a 24-bit windowed receive buffer to the plain
// 16-bit half-circle comparator the spec names.
func IsNew(newSeq, last uint16) bool {
	if newSeq > last {
		return newSeq-last <= Half
	}
	if newSeq < last {
		return last-newSeq > Half
	}
	return false
}

// IsNext reports whether new is exactly last+1 modulo 2^16.
func IsNext(newSeq, last uint16) bool {
	return newSeq == last+1
}
