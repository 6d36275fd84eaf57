package domain

import "sort"

const (
	MinAnswer = 1
	MaxAnswer = 5
)

// levelThresholds are the inclusive upper bounds of the average for levels 1..8.
// Anything above the last bound is level 9.
var levelThresholds = [...]struct {
	max   float64
	level string
}{
	{1.5, "1"},
	{2.0, "2"},
	{2.5, "3"},
	{3.0, "4"},
	{3.5, "5"},
	{4.0, "6"},
	{4.5, "7"},
	{4.8, "8"},
}

// Levels lists every level string in ascending order.
var Levels = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}

// ValidAnswer reports whether v is on the 1..5 scale.
func ValidAnswer(v int) bool {
	return v >= MinAnswer && v <= MaxAnswer
}

// Average returns the mean of the answers.
func Average(answers []int) (float64, error) {
	if len(answers) == 0 {
		return 0, ErrNoAnswers
	}
	sum := 0
	for _, v := range answers {
		if !ValidAnswer(v) {
			return 0, ErrInvalidAnswer
		}
		sum += v
	}
	return float64(sum) / float64(len(answers)), nil
}

// LevelForAverage buckets an average into one of the nine levels.
func LevelForAverage(avg float64) string {
	for _, t := range levelThresholds {
		if avg <= t.max {
			return t.level
		}
	}
	return "9"
}

// Level scores an answer list.
func Level(answers []int) (string, error) {
	avg, err := Average(answers)
	if err != nil {
		return "", err
	}
	return LevelForAverage(avg), nil
}

// Breakdown computes per-category averages for the answered questions,
// ordered by category name.
func Breakdown(questions []Question, answers map[string]int) []CategoryScore {
	byCategory := make(map[string][]int)
	for _, q := range questions {
		v, ok := answers[q.ID]
		if !ok || !ValidAnswer(v) {
			continue
		}
		byCategory[q.Category] = append(byCategory[q.Category], v)
	}

	scores := make([]CategoryScore, 0, len(byCategory))
	for category, values := range byCategory {
		avg, err := Average(values)
		if err != nil {
			continue
		}
		scores = append(scores, CategoryScore{
			Category: category,
			Average:  avg,
			Level:    LevelForAverage(avg),
			Answered: len(values),
		})
	}
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].Category < scores[j].Category
	})
	return scores
}
