package board

import "github.com/pkg/errors"

// InvalidFen is returned when a FEN string (or a position serialized back
// to FEN by the move generator) cannot be parsed into a Position — the one
// fallible operation in the fingerprint component (spec §4.1, §7).
type InvalidFen string

func (e InvalidFen) Error() string {
	return errors.Errorf("invalid fen: %q", string(e)).Error()
}
