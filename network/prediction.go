package network

import "github.com/automoto/galaxia-mp/shared/gamemath"

const (
	moveHistorySize = 64
	// reconcileThreshold is how far the server may disagree with the local
	// position before the local player snaps back.
	reconcileThreshold = 24.0
)

// MoveRecord stores a sent move and the local pose after applying it.
type MoveRecord struct {
	Seq  uint32
	Pose gamemath.Pose
}

// MoveHistory is a ring buffer of the local player's recent moves.
type MoveHistory struct {
	history [moveHistorySize]MoveRecord
	nextSeq uint32
}

// Store saves a pose and returns the sequence number it was sent with.
// Sequence numbers start at 1.
func (h *MoveHistory) Store(pose gamemath.Pose) uint32 {
	h.nextSeq++
	h.history[h.nextSeq%moveHistorySize] = MoveRecord{Seq: h.nextSeq, Pose: pose}
	return h.nextSeq
}

// Get retrieves a stored record by sequence number. Returns false if not
// found or if the slot has been overwritten.
func (h *MoveHistory) Get(seq uint32) (MoveRecord, bool) {
	rec := h.history[seq%moveHistorySize]
	if seq == 0 || rec.Seq != seq {
		return MoveRecord{}, false
	}
	return rec, true
}

// LastSeq is the sequence number of the most recent move, zero if none.
func (h *MoveHistory) LastSeq() uint32 { return h.nextSeq }

// Since returns the stored moves after seq, oldest first.
func (h *MoveHistory) Since(seq uint32) []MoveRecord {
	var out []MoveRecord
	for s := seq + 1; s <= h.nextSeq; s++ {
		if rec, ok := h.Get(s); ok {
			out = append(out, rec)
		}
	}
	return out
}

// NeedsCorrection reports whether the server position is too far from the
// local one to keep the prediction.
func (h *MoveHistory) NeedsCorrection(local, server gamemath.Vec2) bool {
	return local.Sub(server).Len() > reconcileThreshold
}

// Reset forgets every stored move; the sequence keeps counting.
func (h *MoveHistory) Reset() {
	h.history = [moveHistorySize]MoveRecord{}
}
