package network

import (
	"github.com/corvid-chess/azcore/board"
	"github.com/notnil/chess"
	"gorgonia.org/tensor"
)

const (
	framesPerPosition = 8
	planesPerFrame    = 13 // 6 own + 6 opponent + 1 repetition indicator
	metaPlanes        = 8
	// TotalPlanes is 112 = 8*13 + 8 (spec §6 "Input planes layout").
	TotalPlanes = framesPerPosition*planesPerFrame + metaPlanes
	boardDim    = 8
)

// Planes is the 112x8x8 network input tensor for one position, built from
// up to the last 8 history frames (spec §6, §9).
type Planes struct {
	Tensor *tensor.Dense
}

// Encode builds the input planes for the current position of h, from the
// perspective of the side to move (vertically flipped for black, per
// spec §6).
func Encode(h *board.History) *Planes {
	data := make([]float32, TotalPlanes*boardDim*boardDim)
	frames := h.Frames()
	stm := frames[len(frames)-1].Turn()
	flip := stm == chess.Black

	// Most recent frame first, oldest last; missing history frames (early
	// in the game) are left as all-zero planes.
	for slot := 0; slot < framesPerPosition; slot++ {
		fi := len(frames) - 1 - slot
		planeBase := slot * planesPerFrame
		if fi < 0 {
			continue
		}
		writeFrame(data, planeBase, frames[fi], stm, flip)
	}

	metaBase := framesPerPosition * planesPerFrame
	writeMeta(data, metaBase, frames[len(frames)-1], flip)

	t := tensor.New(tensor.WithShape(TotalPlanes, boardDim, boardDim), tensor.WithBacking(data))
	return &Planes{Tensor: t}
}

func writeFrame(data []float32, planeBase int, pos *board.Position, stm chess.Color, flip bool) {
	for sq := board.Square(0); sq < 64; sq++ {
		pc := pos.Piece(sq)
		if pc.Type == chess.NoPieceType {
			continue
		}
		pieceSlot := int(pc.Type) - int(chess.King)
		if pieceSlot < 0 {
			pieceSlot = 0
		}
		plane := planeBase
		if pc.Color == stm {
			plane += pieceSlot
		} else {
			plane += 6 + pieceSlot
		}
		idx := planeIndex(plane, sq, flip)
		data[idx] = 1
	}
	if pos.Repetitions() > 0 {
		repPlane := planeBase + 12
		for sq := board.Square(0); sq < 64; sq++ {
			data[planeIndex(repPlane, sq, flip)] = 1
		}
	}
}

func writeMeta(data []float32, base int, pos *board.Position, flip bool) {
	own := pos.CastleRights()
	fillPlane := func(plane int, v float32) {
		for sq := board.Square(0); sq < 64; sq++ {
			data[planeIndex(plane, sq, flip)] = v
		}
	}

	var ownKS, ownQS, theirKS, theirQS bool
	if pos.Turn() == chess.White {
		ownKS, ownQS = own.Has(board.WhiteKingSide), own.Has(board.WhiteQueenSide)
		theirKS, theirQS = own.Has(board.BlackKingSide), own.Has(board.BlackQueenSide)
	} else {
		ownKS, ownQS = own.Has(board.BlackKingSide), own.Has(board.BlackQueenSide)
		theirKS, theirQS = own.Has(board.WhiteKingSide), own.Has(board.WhiteQueenSide)
	}
	fillPlane(base+0, boolF(ownKS))
	fillPlane(base+1, boolF(ownQS))
	fillPlane(base+2, boolF(theirKS))
	fillPlane(base+3, boolF(theirQS))
	fillPlane(base+4, boolF(pos.Turn() == chess.Black))
	fillPlane(base+5, float32(pos.Rule50()))
	fillPlane(base+6, float32(pos.FullMoveNumber()))
	fillPlane(base+7, 1)
}

func boolF(b bool) float32 {
	if b {
		return 1
	}
	return 0
}

func planeIndex(plane int, sq board.Square, flip bool) int {
	rank, file := sq.Rank(), sq.File()
	if flip {
		rank = 7 - rank
	}
	return plane*boardDim*boardDim + rank*boardDim + file
}
