package board

import (
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

// Piece is a placed piece: a colored piece type, or NoPiece on an empty
// square.
type Piece struct {
	Type  chess.PieceType
	Color chess.Color
}

// NoPiece marks an empty square.
var NoPiece = Piece{Type: chess.NoPieceType, Color: chess.NoColor}

// CastleRights packs the four castling flags into 4 bits: white-kingside,
// white-queenside, black-kingside, black-queenside (bit 0..3).
type CastleRights uint8

const (
	WhiteKingSide CastleRights = 1 << iota
	WhiteQueenSide
	BlackKingSide
	BlackQueenSide
)

func (c CastleRights) Has(f CastleRights) bool { return c&f != 0 }

// Position is a single chess position: piece placement plus the state
// needed to compute both the position key and the full key (spec §4.1).
// It is a thin, read-only projection of chess.Position obtained by parsing
// the FEN chess.Position.String() emits — the move generator itself
// (chess.Position.ValidMoves) remains the source of truth for legality.
type Position struct {
	pieces      [64]Piece
	sideToMove  chess.Color
	castle      CastleRights
	epFile      int // 0-7, or -1 if no en-passant target
	halfmove    int // rule-50 counter
	fullmove    int
	repetitions int // 0, 1, or 2+ — set by History, not derivable from FEN alone

	raw *chess.Position // underlying position, used for move generation/outcome
}

// FromChessPosition builds a Position from a notnil/chess position.
func FromChessPosition(pos *chess.Position) (*Position, error) {
	fen := pos.String()
	fields := strings.Fields(fen)
	if len(fields) < 6 {
		return nil, InvalidFen(fen)
	}

	p := &Position{raw: pos, epFile: -1}
	if err := p.parsePlacement(fields[0]); err != nil {
		return nil, err
	}

	switch fields[1] {
	case "w":
		p.sideToMove = chess.White
	case "b":
		p.sideToMove = chess.Black
	default:
		return nil, InvalidFen(fen)
	}

	p.castle = parseCastleField(fields[2])

	if fields[3] != "-" && len(fields[3]) >= 1 {
		file := int(fields[3][0] - 'a')
		if file >= 0 && file < 8 {
			p.epFile = file
		}
	}

	if hm, err := strconv.Atoi(fields[4]); err == nil {
		p.halfmove = hm
	}
	if fm, err := strconv.Atoi(fields[5]); err == nil {
		p.fullmove = fm
	}
	return p, nil
}

func (p *Position) parsePlacement(field string) error {
	ranks := strings.Split(field, "/")
	if len(ranks) != 8 {
		return InvalidFen(field)
	}
	for r := 0; r < 8; r++ {
		rank := ranks[7-r] // FEN rank 8 first; our rank index 0 is rank "1"
		file := 0
		for _, ch := range rank {
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			if file >= 8 {
				return InvalidFen(field)
			}
			pt, col := pieceFromFEN(ch)
			if pt == chess.NoPieceType {
				return InvalidFen(field)
			}
			p.pieces[r*8+file] = Piece{Type: pt, Color: col}
			file++
		}
		if file != 8 {
			return InvalidFen(field)
		}
	}
	return nil
}

func pieceFromFEN(ch rune) (chess.PieceType, chess.Color) {
	col := chess.White
	lower := ch
	if ch >= 'a' && ch <= 'z' {
		col = chess.Black
	} else {
		lower = ch + ('a' - 'A')
	}
	switch lower {
	case 'p':
		return chess.Pawn, col
	case 'n':
		return chess.Knight, col
	case 'b':
		return chess.Bishop, col
	case 'r':
		return chess.Rook, col
	case 'q':
		return chess.Queen, col
	case 'k':
		return chess.King, col
	default:
		return chess.NoPieceType, chess.NoColor
	}
}

func parseCastleField(field string) CastleRights {
	var c CastleRights
	if field == "-" {
		return c
	}
	for _, ch := range field {
		switch ch {
		case 'K':
			c |= WhiteKingSide
		case 'Q':
			c |= WhiteQueenSide
		case 'k':
			c |= BlackKingSide
		case 'q':
			c |= BlackQueenSide
		}
	}
	return c
}

// Piece returns the piece on sq, or NoPiece.
func (p *Position) Piece(sq Square) Piece { return p.pieces[sq] }

// Turn returns the side to move.
func (p *Position) Turn() chess.Color { return p.sideToMove }

// CastleRights returns the castling-rights bitmask.
func (p *Position) CastleRights() CastleRights { return p.castle }

// EPFile returns the en-passant target file (0-7), or -1 if none is set
// in the FEN. Note this does not yet check whether the capture is
// actually legal — see epCapturable in zobrist.go.
func (p *Position) EPFile() int { return p.epFile }

// Rule50 returns the halfmove clock.
func (p *Position) Rule50() int { return p.halfmove }

// FullMoveNumber returns the FEN fullmove counter.
func (p *Position) FullMoveNumber() int { return p.fullmove }

// Repetitions returns how many times this exact position (by position key)
// has previously occurred in the game, as tracked by History.
func (p *Position) Repetitions() int { return p.repetitions }

// ValidMoves returns the legal moves from this position, re-encoded as
// engine Move values.
func (p *Position) ValidMoves() []Move {
	cms := p.raw.ValidMoves()
	moves := make([]Move, len(cms))
	for i, cm := range cms {
		moves[i] = fromChessMove(cm)
	}
	return moves
}

// FEN returns the FEN representation of this position.
func (p *Position) FEN() string { return p.raw.String() }

// chessMoveFor finds the chess.Move matching m among the legal moves, or
// nil if m is not legal here.
func (p *Position) chessMoveFor(m Move) *chess.Move {
	for _, cm := range p.raw.ValidMoves() {
		if fromChessMove(cm) == m {
			return cm
		}
	}
	return nil
}
