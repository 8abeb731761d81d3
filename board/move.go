package board

import (
	"fmt"

	"github.com/notnil/chess"
)

// Flag distinguishes the four move shapes the 16-bit encoding can carry.
type Flag uint8

const (
	FlagNormal Flag = iota
	FlagPromotion
	FlagEnPassant
	FlagCastle
)

// Move is the engine's 16-bit move encoding: destination (6 bits), origin
// (6 bits), promotion piece (2 bits), special flag (2 bits). Square is a
// 0-63 board index (a1=0 ... h8=63), matching chess.Square's ordering.
type Move uint16

const (
	toShift    = 0
	fromShift  = 6
	promoShift = 12
	flagShift  = 14

	squareMask = 0x3F
	promoMask  = 0x3
	flagMask   = 0x3
)

// NoMove and NullMove are sentinels that share origin == destination (a1a1)
// so they can never collide with a legal move (no legal move starts and
// ends on the same square).
const (
	NoMove   Move = 0
	NullMove Move = 1 << promoShift // same squares, promo bits set to distinguish from NoMove
)

// NewMove packs a move from its components.
func NewMove(from, to Square, promo chess.PieceType, flag Flag) Move {
	var p uint16
	switch promo {
	case chess.Knight:
		p = 0
	case chess.Bishop:
		p = 1
	case chess.Rook:
		p = 2
	case chess.Queen:
		p = 3
	}
	return Move(uint16(to&squareMask)<<toShift |
		uint16(from&squareMask)<<fromShift |
		p<<promoShift |
		uint16(flag&flagMask)<<flagShift)
}

// NewMoveRaw packs a move from a raw 2-bit promotion index (0=knight,
// 1=bishop, 2=rook, 3=queen) instead of a chess.PieceType — used by
// moveindex, which has no reason to depend on notnil/chess.
func NewMoveRaw(from, to Square, promoIdx byte, flag Flag) Move {
	return Move(uint16(to&squareMask)<<toShift |
		uint16(from&squareMask)<<fromShift |
		uint16(promoIdx&promoMask)<<promoShift |
		uint16(flag&flagMask)<<flagShift)
}

// To returns the destination square.
func (m Move) To() Square { return Square((m >> toShift) & squareMask) }

// From returns the origin square.
func (m Move) From() Square { return Square((m >> fromShift) & squareMask) }

// PromoIndex returns the packed 2-bit promotion code (knight/bishop/rook/queen).
func (m Move) PromoIndex() uint8 { return uint8((m >> promoShift) & promoMask) }

// Promo returns the promotion piece type, or chess.NoPieceType if this is
// not a promoting move.
func (m Move) Promo() chess.PieceType {
	if m.Flag() != FlagPromotion {
		return chess.NoPieceType
	}
	switch m.PromoIndex() {
	case 0:
		return chess.Knight
	case 1:
		return chess.Bishop
	case 2:
		return chess.Rook
	default:
		return chess.Queen
	}
}

// Flag returns the special-move flag.
func (m Move) Flag() Flag { return Flag((m >> flagShift) & flagMask) }

// IsNone reports whether m is the NoMove sentinel.
func (m Move) IsNone() bool { return m == NoMove }

func (m Move) String() string {
	if m == NoMove {
		return "(none)"
	}
	if m == NullMove {
		return "0000"
	}
	s := m.From().String() + m.To().String()
	if m.Flag() == FlagPromotion {
		s += promoLetter(m.Promo())
	}
	return s
}

func promoLetter(p chess.PieceType) string {
	switch p {
	case chess.Knight:
		return "n"
	case chess.Bishop:
		return "b"
	case chess.Rook:
		return "r"
	case chess.Queen:
		return "q"
	default:
		return ""
	}
}

// fromChessMove converts a legal chess.Move (obtained from Position.ValidMoves)
// into the engine's compact encoding. The move-generator is assumed correct
// per spec; this is pure re-encoding, not re-validation.
func fromChessMove(cm *chess.Move) Move {
	flag := FlagNormal
	switch {
	case cm.HasTag(chess.EnPassant):
		flag = FlagEnPassant
	case cm.HasTag(chess.KingSideCastle), cm.HasTag(chess.QueenSideCastle):
		flag = FlagCastle
	case cm.Promo() != chess.NoPieceType:
		flag = FlagPromotion
	}
	return NewMove(Square(cm.S1()), Square(cm.S2()), cm.Promo(), flag)
}

// Square is a 0-63 board index, a1=0 through h8=63, matching chess.Square.
type Square uint8

func (s Square) File() int { return int(s) % 8 }
func (s Square) Rank() int { return int(s) / 8 }

func (s Square) String() string {
	return fmt.Sprintf("%c%c", 'a'+rune(s.File()), '1'+rune(s.Rank()))
}
