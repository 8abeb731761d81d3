package board

import (
	"math/rand"

	"github.com/notnil/chess"
)

// pieceIndex maps (type, color) onto 0..11 for the Zobrist piece table.
func pieceIndex(t chess.PieceType, c chess.Color) int {
	idx := int(t) - int(chess.King) // chess.PieceType starts at King==1 in notnil/chess
	if idx < 0 {
		idx = 0
	}
	if c == chess.Black {
		idx += 6
	}
	return idx
}

const maxRule50Index = 101

// Zobrist is a fixed random table used to compute position and full keys
// (spec §4.1). It is "random but fixed": seeded once, deterministically,
// so that the same build always produces the same keys (required for the
// round-trip property in §8 and for tree-reuse across think() calls).
type Zobrist struct {
	piece    [12][64]uint64
	castling [16]uint64
	ep       [8]uint64
	side     uint64

	rule50      [maxRule50Index + 1]uint64
	repetitions [3]uint64

	// RULE50Scale quantizes the halfmove clock before indexing rule50: an
	// integer >= 1, configurable per spec §4.1.
	RULE50Scale int
}

// defaultZobristSeed is an arbitrary fixed constant — any seed works, as
// long as it never changes between builds that must agree on keys.
const defaultZobristSeed = 0x5a6f6272697374 // "Zobrist" in hex-ish

// NewZobrist builds the fixed random table.
func NewZobrist() *Zobrist {
	return NewZobristSeeded(defaultZobristSeed)
}

// NewZobristSeeded builds the table from an explicit seed, mainly for tests
// that want determinism independent of the package default.
func NewZobristSeeded(seed int64) *Zobrist {
	r := rand.New(rand.NewSource(seed))
	z := &Zobrist{RULE50Scale: 1}
	for i := 0; i < 12; i++ {
		for j := 0; j < 64; j++ {
			z.piece[i][j] = r.Uint64()
		}
	}
	for i := range z.castling {
		z.castling[i] = r.Uint64()
	}
	for i := range z.ep {
		z.ep[i] = r.Uint64()
	}
	z.side = r.Uint64()
	for i := range z.rule50 {
		z.rule50[i] = r.Uint64()
	}
	for i := range z.repetitions {
		z.repetitions[i] = r.Uint64()
	}
	return z
}

// PositionKey computes the hash that ignores history counters (rule-50,
// repetitions): piece placement, side to move, castling rights, and the
// en-passant file when the capture is actually available.
func (z *Zobrist) PositionKey(p *Position) uint64 {
	var h uint64
	for sq := Square(0); sq < 64; sq++ {
		pc := p.Piece(sq)
		if pc.Type == chess.NoPieceType {
			continue
		}
		h ^= z.piece[pieceIndex(pc.Type, pc.Color)][sq]
	}
	h ^= z.castling[p.castle&0xF]
	if p.epFile >= 0 && epCapturable(p) {
		h ^= z.ep[p.epFile]
	}
	if p.sideToMove == chess.Black {
		h ^= z.side
	}
	return h
}

// FullKey computes the cache key: PositionKey XOR the (quantized) rule-50
// counter XOR the clamped repetition count. This is the key the evaluation
// cache is indexed by (spec §4.1, §4.2).
func (z *Zobrist) FullKey(p *Position) uint64 {
	h := z.PositionKey(p)

	scale := z.RULE50Scale
	if scale < 1 {
		scale = 1
	}
	idx := p.halfmove / scale
	if idx > maxRule50Index {
		idx = maxRule50Index
	}
	h ^= z.rule50[idx]

	reps := p.repetitions
	if reps > 2 {
		reps = 2
	}
	h ^= z.repetitions[reps]
	return h
}

// epCapturable reports whether at least one enemy pawn could actually
// execute the en-passant capture onto p.epFile — otherwise the e.p. file
// is search-irrelevant and is deliberately excluded from the key (spec
// §4.1: "the position is equivalent to one without the e.p. file").
func epCapturable(p *Position) bool {
	file := p.epFile
	// The pawn that just advanced two squares sits one rank behind the
	// e.p. target, on the mover's fourth rank relative to them. A capturing
	// enemy pawn of the side to move must stand on that same rank, on an
	// adjacent file.
	// White to move: the capturing white pawns stand on rank 5 (index 4).
	// Black to move: the capturing black pawns stand on rank 4 (index 3).
	rank := 3
	if p.sideToMove == chess.White {
		rank = 4
	}
	for _, df := range []int{-1, 1} {
		f := file + df
		if f < 0 || f > 7 {
			continue
		}
		sq := Square(rank*8 + f)
		pc := p.Piece(sq)
		if pc.Type == chess.Pawn && pc.Color == p.sideToMove {
			return true
		}
	}
	return false
}
