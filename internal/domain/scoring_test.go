package domain

import "testing"

func TestLevelThresholds(t *testing.T) {
	cases := []struct {
		name    string
		answers []int
		want    string
	}{
		{"all ones", []int{1, 1, 1}, "1"},
		{"exactly 1.5", []int{1, 2}, "1"},
		{"exactly 2.0", []int{2, 2}, "2"},
		{"2.5", []int{2, 3}, "3"},
		{"3.0", []int{3, 3}, "4"},
		{"3.5", []int{3, 4}, "5"},
		{"4.0", []int{4, 4}, "6"},
		{"4.5", []int{4, 5}, "7"},
		{"4.6", []int{5, 5, 5, 4, 4}, "8"},
		{"4.8", []int{5, 5, 5, 5, 4}, "8"},
		{"all fives", []int{5, 5, 5}, "9"},
	}
	for _, c := range cases {
		got, err := Level(c.answers)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s: Level(%v)=%s, want %s", c.name, c.answers, got, c.want)
		}
	}
}

func TestLevelRejectsEmptyAndOutOfRange(t *testing.T) {
	if _, err := Level(nil); err != ErrNoAnswers {
		t.Fatalf("expected ErrNoAnswers, got %v", err)
	}
	if _, err := Level([]int{3, 6}); err != ErrInvalidAnswer {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
	if _, err := Level([]int{0}); err != ErrInvalidAnswer {
		t.Fatalf("expected ErrInvalidAnswer, got %v", err)
	}
}

func TestLevelIsMonotonic(t *testing.T) {
	prev := 0
	for tenths := 10; tenths <= 50; tenths++ {
		level := LevelForAverage(float64(tenths) / 10)
		n := int(level[0] - '0')
		if n < prev {
			t.Fatalf("level decreased at avg %.1f: %d < %d", float64(tenths)/10, n, prev)
		}
		if n < 1 || n > 9 {
			t.Fatalf("level out of range: %s", level)
		}
		prev = n
	}
}

func TestBreakdownGroupsByCategory(t *testing.T) {
	questions := []Question{
		{ID: "q1", Category: "empathy"},
		{ID: "q2", Category: "empathy"},
		{ID: "q3", Category: "justice"},
		{ID: "q4", Category: "justice"},
	}
	answers := map[string]int{"q1": 5, "q2": 4, "q3": 1, "q4": 9}

	got := Breakdown(questions, answers)
	if len(got) != 2 {
		t.Fatalf("expected 2 categories, got %+v", got)
	}
	if got[0].Category != "empathy" || got[0].Average != 4.5 || got[0].Level != "7" {
		t.Fatalf("unexpected empathy score %+v", got[0])
	}
	if got[1].Category != "justice" || got[1].Answered != 1 || got[1].Level != "1" {
		t.Fatalf("invalid answers should be skipped, got %+v", got[1])
	}
}
