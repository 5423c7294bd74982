package domain

import "time"

// base points per landing, multiplied by (level + 1)
var lineClearPoints = map[int]int{
	1: 100,
	2: 300,
	3: 500,
	4: 800,
}

// garbage lines sent to every opponent per landing
var attackTable = map[int]int{
	1: 0,
	2: 1,
	3: 2,
	4: 4,
}

var dropIntervalsMs = []int{800, 717, 633, 550, 467, 383, 300, 217, 133, 100, 83, 83, 83, 67, 67, 67, 50, 50, 50, 33, 33}

const LinesPerLevel = 10

func ScoreFor(linesCleared, level int) int {
	return lineClearPoints[linesCleared] * (level + 1)
}

func AttackFor(linesCleared int) int {
	return attackTable[linesCleared]
}

func LevelFor(lines int) int {
	return lines / LinesPerLevel
}

// DropInterval clamps to the last entry past the end of the curve.
func DropInterval(level int) time.Duration {
	if level < 0 {
		level = 0
	}
	if level >= len(dropIntervalsMs) {
		level = len(dropIntervalsMs) - 1
	}
	return time.Duration(dropIntervalsMs[level]) * time.Millisecond
}
