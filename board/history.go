package board

import (
	"github.com/notnil/chess"
)

// networkHistoryFrames is N in "shallow_clone(keep-last-N)": the number of
// past positions the network input encoding actually needs (spec §3, §9).
const networkHistoryFrames = 8

// History is an ordered sequence of positions from the root of play. Per
// the open question in spec §9, it deliberately does not keep full
// StateInfo back-links: it tracks only the last networkHistoryFrames
// positions plus a position-key occurrence count for repetition detection,
// so a "deep" clone can never observe a dangling link.
type History struct {
	game *chess.Game
	z    *Zobrist

	frames []*Position // most recent networkHistoryFrames positions, oldest first
	counts map[uint64]int
}

// NewHistory starts a history at the standard starting position.
func NewHistory(z *Zobrist) (*History, error) {
	g := chess.NewGame(chess.UseNotation(chess.UCINotation{}))
	return newHistoryFromGame(g, z)
}

// NewHistoryFromFEN starts a history at the given FEN.
func NewHistoryFromFEN(fen string, z *Zobrist) (*History, error) {
	opt, err := chess.FEN(fen)
	if err != nil {
		return nil, InvalidFen(fen)
	}
	g := chess.NewGame(opt, chess.UseNotation(chess.UCINotation{}))
	return newHistoryFromGame(g, z)
}

func newHistoryFromGame(g *chess.Game, z *Zobrist) (*History, error) {
	h := &History{game: g, z: z, counts: make(map[uint64]int)}
	pos, err := FromChessPosition(g.Position())
	if err != nil {
		return nil, err
	}
	h.recordFrame(pos)
	return h, nil
}

// Current returns the current (most recent) position.
func (h *History) Current() *Position { return h.frames[len(h.frames)-1] }

// DoMove applies m to the current position. m must be one of
// Current().ValidMoves(); applying an illegal move is a programmer error
// (spec §7: the search never produces ill-formed positions itself).
func (h *History) DoMove(m Move) error {
	cur := h.Current()
	cm := cur.chessMoveFor(m)
	if cm == nil {
		return InvalidFen("move not legal in current position: " + m.String())
	}
	if err := h.game.Move(cm); err != nil {
		return err
	}
	pos, err := FromChessPosition(h.game.Position())
	if err != nil {
		return err
	}
	h.recordFrame(pos)
	return nil
}

// UndoMove undoes the last applied move. It does nothing once a single
// position frame remains: since only the last networkHistoryFrames frames
// are kept, at most networkHistoryFrames-1 consecutive undos take effect.
func (h *History) UndoMove() {
	if len(h.frames) <= 1 {
		return
	}
	last := h.frames[len(h.frames)-1]
	h.counts[h.z.PositionKey(last)]--
	h.frames = h.frames[:len(h.frames)-1]
	// The underlying chess.Game is rebuilt by replaying every move but the
	// last from the game's starting position.
	h.game = undoOnce(h.game)
}

func undoOnce(g *chess.Game) *chess.Game {
	moves := g.Moves()
	if len(moves) == 0 {
		return g
	}
	ng := chess.NewGame(chess.UseNotation(chess.UCINotation{}))
	if opt, err := chess.FEN(g.Positions()[0].String()); err == nil {
		ng = chess.NewGame(opt, chess.UseNotation(chess.UCINotation{}))
	}
	for _, m := range moves[:len(moves)-1] {
		_ = ng.Move(m)
	}
	return ng
}

func (h *History) recordFrame(pos *Position) {
	key := h.z.PositionKey(pos)
	h.counts[key]++
	pos.repetitions = h.counts[key] - 1 // this occurrence doesn't count itself
	h.frames = append(h.frames, pos)
	if len(h.frames) > networkHistoryFrames {
		h.frames = h.frames[len(h.frames)-networkHistoryFrames:]
	}
}

// FullKey returns the cache key (full key) of the current position.
func (h *History) FullKey() uint64 { return h.z.FullKey(h.Current()) }

// RepetitionsCount returns how many times the current position has been
// seen before in this game (0 = first occurrence).
func (h *History) RepetitionsCount() int { return h.Current().repetitions }

// Frames returns up to the last networkHistoryFrames positions, oldest
// first — exactly what the network input encoder needs.
func (h *History) Frames() []*Position { return h.frames }

// AllMoves returns every move played so far, re-encoded as engine Moves,
// oldest first. Unlike Frames (bounded to networkHistoryFrames), this
// reflects notnil/chess.Game's full move log — a plain move list, not the
// StateInfo back-links spec §9 says not to retain — so the controller can
// diff it against a previous call to drive tree reuse (spec §4.4, §4.6).
func (h *History) AllMoves() []Move {
	cms := h.game.Moves()
	moves := make([]Move, len(cms))
	for i, cm := range cms {
		moves[i] = fromChessMove(cm)
	}
	return moves
}

// ShallowClone returns an independent History sharing no mutable state,
// keeping only the last networkHistoryFrames positions — "deep" clones
// that would need StateInfo links further back are intentionally
// unsupported (spec §9).
func (h *History) ShallowClone() *History {
	clone := &History{
		z:      h.z,
		game:   h.game.Clone(),
		frames: make([]*Position, len(h.frames)),
		counts: make(map[uint64]int, len(h.counts)),
	}
	copy(clone.frames, h.frames)
	for k, v := range h.counts {
		clone.counts[k] = v
	}
	return clone
}

// PGN renders the played game in PGN notation (for human-readable logging
// of a finished or in-progress search line).
func (h *History) PGN() string { return h.game.String() }

// Ended reports whether the game is over, and who (if anyone) won.
func (h *History) Ended() (ended bool, winner chess.Color) {
	outcome := h.game.Outcome()
	if outcome == chess.NoOutcome {
		return false, chess.NoColor
	}
	switch outcome {
	case chess.WhiteWon:
		return true, chess.White
	case chess.BlackWon:
		return true, chess.Black
	default:
		return true, chess.NoColor
	}
}

// IsDraw reports whether the current position is drawn by the 50-move
// rule, insufficient material, or threefold repetition (spec §8 scenario 4,
// §4.5 terminal handling).
func (h *History) IsDraw() bool {
	if ended, winner := h.Ended(); ended {
		return winner == chess.NoColor
	}
	return h.Current().Rule50() >= 100 || h.RepetitionsCount() >= 2
}
