package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScoreFor(t *testing.T) {
	assert.Equal(t, 0, ScoreFor(0, 3))
	assert.Equal(t, 100, ScoreFor(1, 0))
	assert.Equal(t, 900, ScoreFor(2, 2))
	assert.Equal(t, 2400, ScoreFor(4, 2))
}

func TestAttackFor(t *testing.T) {
	assert.Equal(t, 0, AttackFor(1))
	assert.Equal(t, 1, AttackFor(2))
	assert.Equal(t, 2, AttackFor(3))
	assert.Equal(t, 4, AttackFor(4))
}

func TestLevelAndDropInterval(t *testing.T) {
	assert.Equal(t, 0, LevelFor(9))
	assert.Equal(t, 1, LevelFor(10))
	assert.Equal(t, 800*time.Millisecond, DropInterval(0))
	assert.Equal(t, 717*time.Millisecond, DropInterval(1))
	assert.Equal(t, 33*time.Millisecond, DropInterval(99))
	assert.Equal(t, 800*time.Millisecond, DropInterval(-1))

	for lvl := 1; lvl < 30; lvl++ {
		assert.LessOrEqual(t, DropInterval(lvl), DropInterval(lvl-1))
	}
}
