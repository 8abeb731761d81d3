// Package moveindex builds the fixed move-id enumeration the network and
// the batching evaluator agree on (spec §6 "Move-id space").
//
// The source engine this was ported from carried two conflicting
// enumerations — 1924 entries (legacy, used by v2 training data) and 1858
// entries (live). Per spec §9 this rewrite fixes the 1858-entry mapping as
// the only one the core understands; converting v2 training data is an
// explicit one-shot migration left out of core scope.
package moveindex

import "github.com/corvid-chess/azcore/board"

// Colors understood by the move index; kept independent of chess.Color to
// avoid this package depending on notnil/chess at all.
const (
	White = 0
	Black = 1
)

type templateKind uint8

const (
	kindQueenOrKnight templateKind = iota
	kindUnderpromo
)

// moveTemplate is a from-square-relative move shape: 56 queen-move
// templates (8 directions * 7 distances) + 8 knight templates + 9
// underpromotion templates (3 files * 3 under-promoting pieces) = 73
// templates per square. Not every template is legal from every square —
// most run off the board, and underpromotions only ever apply from the
// 7th rank — so the live id space packs only the templates that actually
// land on the board from their square, dropping the rest (see New).
type moveTemplate struct {
	dFile, dRank int
	kind         templateKind
	underPromo   int // 0=knight,1=bishop,2=rook; meaningless unless kind==kindUnderpromo
}

// Size is the fixed move-id space size the engine and the network agree
// on: summing, over all 64 from-squares, the queen/knight templates that
// land on the board plus the underpromotion templates available from the
// 7th rank, comes to exactly 1858 — the same count the live engine's
// packed policy head uses (spec §6, §9).
const Size = 1858

// templatesPerSquare is 56 queen-move + 8 knight + 9 underpromotion = 73,
// the dense per-square template count before board-edge/rank packing.
const templatesPerSquare = 73

// underpromoRank is the 0-indexed rank (the 7th rank) from which a pawn's
// one-step-forward move can be an underpromotion.
const underpromoRank = 6

// Index maps legal moves (from the perspective of the side to move) to a
// fixed move-id in [0,Size) and back. Built once at startup, immutable
// thereafter.
type Index struct {
	templates [templatesPerSquare]moveTemplate

	// compact[sq][t] is the packed id for template t from square sq, or -1
	// if that template never lands on the board (or is an underpromotion
	// from a square other than the 7th rank).
	compact [64][templatesPerSquare]int

	// idSquare/idTemplate invert compact: idSquare[id]/idTemplate[id]
	// recover the (square, template) pair a packed id was assigned to.
	idSquare   [Size]board.Square
	idTemplate [Size]int
}

// New builds the fixed move-id mapping.
func New() *Index {
	idx := &Index{}
	n := 0

	dirs := [8][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
	for _, d := range dirs {
		for dist := 1; dist <= 7; dist++ {
			idx.templates[n] = moveTemplate{dFile: d[0] * dist, dRank: d[1] * dist, kind: kindQueenOrKnight}
			n++
		}
	}
	knight := [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	for _, d := range knight {
		idx.templates[n] = moveTemplate{dFile: d[0], dRank: d[1], kind: kindQueenOrKnight}
		n++
	}
	for _, dFile := range []int{-1, 0, 1} {
		for piece := 0; piece < 3; piece++ {
			idx.templates[n] = moveTemplate{dFile: dFile, dRank: 1, kind: kindUnderpromo, underPromo: piece}
			n++
		}
	}

	id := 0
	for sq := 0; sq < 64; sq++ {
		from := board.Square(sq)
		for t := 0; t < templatesPerSquare; t++ {
			if !idx.validForSquare(from, idx.templates[t]) {
				idx.compact[sq][t] = -1
				continue
			}
			idx.compact[sq][t] = id
			idx.idSquare[id] = from
			idx.idTemplate[id] = t
			id++
		}
	}
	return idx
}

// validForSquare reports whether tmpl produces an on-board destination
// from from, and — for underpromotion templates — whether from is on the
// 7th rank, the only rank an underpromotion can originate from.
func (idx *Index) validForSquare(from board.Square, tmpl moveTemplate) bool {
	if tmpl.kind == kindUnderpromo && from.Rank() != underpromoRank {
		return false
	}
	toFile := from.File() + tmpl.dFile
	toRank := from.Rank() + tmpl.dRank
	return toFile >= 0 && toFile <= 7 && toRank >= 0 && toRank <= 7
}

// underPromoIndex maps a board.Move's 2-bit promo code (0=N,1=B,2=R,3=Q)
// onto the 3-slot underpromotion template index, or -1 for queen
// promotions and non-promoting moves (queen promotions reuse the plain
// queen-move template, matching AlphaZero's plane layout).
func underPromoIndex(m board.Move) int {
	if m.Flag() != board.FlagPromotion {
		return -1
	}
	if m.PromoIndex() == 3 { // queen
		return -1
	}
	return int(m.PromoIndex())
}

// Lookup returns the move-id for move m as seen by color c. Black's moves
// are looked up after flipping the board vertically, so the network always
// evaluates "from the side to move's perspective" (spec §6).
func (idx *Index) Lookup(m board.Move, c int) (int, bool) {
	from, to := m.From(), m.To()
	if c == Black {
		from, to = flipSquare(from), flipSquare(to)
	}
	dFile := to.File() - from.File()
	dRank := to.Rank() - from.Rank()
	wantUnder := underPromoIndex(m)

	for t := 0; t < templatesPerSquare; t++ {
		tmpl := idx.templates[t]
		if tmpl.dFile != dFile || tmpl.dRank != dRank {
			continue
		}
		if tmpl.kind == kindUnderpromo {
			if wantUnder != tmpl.underPromo {
				continue
			}
		} else if wantUnder >= 0 {
			continue // an underpromotion must land on an underpromo template
		}
		id := idx.compact[from][t]
		if id < 0 {
			continue
		}
		return id, true
	}
	return 0, false
}

// ReverseLookup decodes a move-id back into a board.Move, given the color
// to move.
func (idx *Index) ReverseLookup(id int, c int) (board.Move, bool) {
	if id < 0 || id >= Size {
		return board.NoMove, false
	}
	from := idx.idSquare[id]
	tmpl := idx.templates[idx.idTemplate[id]]

	toFile := from.File() + tmpl.dFile
	toRank := from.Rank() + tmpl.dRank
	if toFile < 0 || toFile > 7 || toRank < 0 || toRank > 7 {
		return board.NoMove, false
	}
	to := board.Square(toRank*8 + toFile)

	origin, dest := from, to
	if c == Black {
		origin, dest = flipSquare(from), flipSquare(to)
	}

	flag := board.FlagNormal
	promo := byte(0)
	if tmpl.kind == kindUnderpromo {
		flag = board.FlagPromotion
		promo = byte(tmpl.underPromo)
	}
	return board.NewMoveRaw(origin, dest, promo, flag), true
}

func flipSquare(sq board.Square) board.Square {
	return board.Square((7-sq.Rank())*8 + sq.File())
}
