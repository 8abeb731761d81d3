package timectl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeMoveTimeIsExact(t *testing.T) {
	m := NewManager()
	b := m.Compute(Limits{MoveTime: 500 * time.Millisecond}, White, 10)
	assert.Equal(t, 500*time.Millisecond-m.LagBuffer, b.Target)
	assert.Equal(t, b.Target, b.Max)
}

func TestComputeInfiniteHasNoUsefulCeiling(t *testing.T) {
	m := NewManager()
	b := m.Compute(Limits{Infinite: true}, White, 1)
	assert.Greater(t, b.Target, time.Hour)
	assert.Greater(t, b.Max, time.Hour)
}

func TestComputeTargetNeverExceedsMax(t *testing.T) {
	m := NewManager()
	lim := Limits{TimeWhite: 60 * time.Second, IncWhite: 500 * time.Millisecond}
	for ply := 0; ply < 80; ply += 10 {
		b := m.Compute(lim, White, ply)
		assert.LessOrEqual(t, b.Target, b.Max, "target budget must never exceed the hard max at ply %d", ply)
	}
}

func TestComputeRespectsMovesToGo(t *testing.T) {
	m := NewManager()
	lim := Limits{TimeWhite: 10 * time.Second, MovesToGo: 5}
	b := m.Compute(lim, White, 0)
	assert.Greater(t, b.Target, time.Duration(0))
	assert.LessOrEqual(t, b.Target, lim.TimeWhite)
}

func TestComputeUsesBlackClockForBlackToMove(t *testing.T) {
	m := NewManager()
	lim := Limits{TimeWhite: 60 * time.Second, TimeBlack: 1 * time.Second}
	white := m.Compute(lim, White, 20)
	black := m.Compute(lim, Black, 20)
	assert.Greater(t, white.Target, black.Target)
}

func TestElapsedAdvancesAfterStart(t *testing.T) {
	m := NewManager()
	m.Start()
	time.Sleep(2 * time.Millisecond)
	assert.Greater(t, m.Elapsed(), time.Duration(0))
}

func TestComputeNeverReturnsNegativeBudget(t *testing.T) {
	m := NewManager()
	lim := Limits{TimeWhite: 10 * time.Millisecond, MovesToGo: 1}
	b := m.Compute(lim, White, 0)
	assert.GreaterOrEqual(t, b.Target, time.Duration(0))
	assert.GreaterOrEqual(t, b.Max, time.Duration(0))
}
