package rewards

import "math"

// LevelThreshold returns the cumulative points needed to reach level n.
// Increments start at 100 and grow by 100 per level, so the thresholds are
// 0, 100, 300, 600, 1000, ... i.e. 50*n*(n-1).
func LevelThreshold(n int) int64 {
	if n <= 1 {
		return 0
	}
	k := int64(n)
	return 50 * k * (k - 1)
}

// LevelForPoints returns the largest level whose threshold is <= points.
func LevelForPoints(points int64) int {
	if points <= 0 {
		return 1
	}
	// Solve 50n(n-1) <= p for n, then correct for float error.
	n := int((1 + math.Sqrt(1+float64(points)/12.5)) / 2)
	if n < 1 {
		n = 1
	}
	for LevelThreshold(n+1) <= points {
		n++
	}
	for n > 1 && LevelThreshold(n) > points {
		n--
	}
	return n
}

// PointsForNextLevel returns the cumulative threshold of the level after the
// one points resolves to.
func PointsForNextLevel(points int64) int64 {
	return LevelThreshold(LevelForPoints(points) + 1)
}

// LevelProgress is the fraction of the way from the current level's
// threshold to the next one, in [0, 1).
func LevelProgress(points int64) float64 {
	level := LevelForPoints(points)
	start := LevelThreshold(level)
	span := LevelThreshold(level+1) - start
	if span <= 0 || points <= start {
		return 0
	}
	return float64(points-start) / float64(span)
}

// DetectLevelUp resolves the level for newPoints and reports whether it is
// strictly above the previously stored level.
func DetectLevelUp(prevLevel int, newPoints int64) (int, bool) {
	level := LevelForPoints(newPoints)
	return level, level > prevLevel
}
