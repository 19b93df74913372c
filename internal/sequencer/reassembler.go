package sequencer

import "sync"

// chunkSet tracks the slices collected so far for one logical sequence.
type chunkSet struct {
	count  uint16
	slices map[uint16][]byte
}

// Reassembler holds, per peer, the in-progress chunked messages keyed by
// their logical sequence number. Grounded on the teacher's
// internal/protocol.SplitWindow (internal/protocol/window.go), which
// collects fragments in a map[uint32][]byte and reports completion once the
// map's length equals the declared fragment count; generalized here to also
// return the slices in ascending-index concatenated form, since this
// spec's reassembled payload crosses straight back into the sequencer
// instead of being handed to a message decoder directly.
type Reassembler struct {
	mu      sync.Mutex
	pending map[uint16]*chunkSet
}

// NewReassembler returns an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{pending: make(map[uint16]*chunkSet)}
}

// Receive records one slice of a chunked message. Once every slice in
// [0, sliceCount) has arrived, it returns the concatenated payload (slice 0
// through sliceCount-1, in order) and complete == true, and forgets the
// sequence. Partially collected sequences persist until completion or the
// Reassembler is discarded (spec.md §4.4: "no GC timer is specified").
func (r *Reassembler) Receive(seq, sliceIndex, sliceCount uint16, data []byte) (payload []byte, complete bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.pending[seq]
	if !ok {
		set = &chunkSet{count: sliceCount, slices: make(map[uint16][]byte, sliceCount)}
		r.pending[seq] = set
	}

	if sliceIndex >= set.count {
		return nil, false
	}

	set.slices[sliceIndex] = data

	if len(set.slices) != int(set.count) {
		return nil, false
	}

	out := make([]byte, 0, len(set.slices)*len(data))
	for i := uint16(0); i < set.count; i++ {
		out = append(out, set.slices[i]...)
	}

	delete(r.pending, seq)
	return out, true
}

// Drop discards any in-progress reassembly for seq without delivering it.
func (r *Reassembler) Drop(seq uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, seq)
}
