package network

import (
	"testing"

	"github.com/corvid-chess/azcore/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestEncodeShapeIs112x8x8(t *testing.T) {
	h, err := board.NewHistory(board.NewZobristSeeded(1))
	require.NoError(t, err)

	p := Encode(h)
	assert.Equal(t, tensor.Shape{TotalPlanes, boardDim, boardDim}, p.Tensor.Shape())
}

func TestEncodePaddingPlaneIsAllOnes(t *testing.T) {
	h, err := board.NewHistory(board.NewZobristSeeded(1))
	require.NoError(t, err)

	p := Encode(h)
	data := p.Tensor.Data().([]float32)
	paddingPlane := TotalPlanes - 1
	for sq := 0; sq < 64; sq++ {
		assert.Equal(t, float32(1), data[planeIndex(paddingPlane, board.Square(sq), false)])
	}
}

func TestEncodeSideToMovePlaneFlagsBlack(t *testing.T) {
	z := board.NewZobristSeeded(1)
	h, err := board.NewHistory(z)
	require.NoError(t, err)
	moves := h.Current().ValidMoves()
	require.NoError(t, h.DoMove(moves[0])) // now black to move

	p := Encode(h)
	data := p.Tensor.Data().([]float32)
	sideToMovePlane := framesPerPosition*planesPerFrame + 4
	assert.Equal(t, float32(1), data[planeIndex(sideToMovePlane, board.Square(0), false)])
}
