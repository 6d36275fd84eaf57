package domain

import "sort"

// Runner steps through an ordered question list, one answer at a time.
// It is not safe for concurrent use.
type Runner struct {
	questions []Question
	index     int
	answers   map[string]int
}

// NewRunner starts a quiz, optionally resuming from saved progress.
// Answers for questions no longer in the catalog are dropped.
func NewRunner(questions []Question, progress *Progress) *Runner {
	ordered := SortQuestions(questions)
	r := &Runner{
		questions: ordered,
		answers:   make(map[string]int),
	}
	if progress == nil {
		return r
	}
	known := make(map[string]struct{}, len(ordered))
	for _, q := range ordered {
		known[q.ID] = struct{}{}
	}
	for id, v := range progress.Answers {
		if _, ok := known[id]; ok && ValidAnswer(v) {
			r.answers[id] = v
		}
	}
	r.index = progress.CurrentIndex
	if r.index < 0 {
		r.index = 0
	}
	if r.index > len(ordered) {
		r.index = len(ordered)
	}
	return r
}

// Current returns the question at the cursor, or false once every question is passed.
func (r *Runner) Current() (Question, bool) {
	if r.index >= len(r.questions) {
		return Question{}, false
	}
	return r.questions[r.index], true
}

// Index is the cursor position.
func (r *Runner) Index() int {
	return r.index
}

// Total is the number of questions.
func (r *Runner) Total() int {
	return len(r.questions)
}

// Answer records value for the current question and advances.
func (r *Runner) Answer(value int) error {
	q, ok := r.Current()
	if !ok {
		return ErrQuestionNotFound
	}
	if !ValidAnswer(value) {
		return ErrInvalidAnswer
	}
	r.answers[q.ID] = value
	r.index++
	return nil
}

// AnswerQuestion records value for a specific question and moves the cursor past it.
func (r *Runner) AnswerQuestion(questionID string, value int) error {
	for i, q := range r.questions {
		if q.ID != questionID {
			continue
		}
		if !ValidAnswer(value) {
			return ErrInvalidAnswer
		}
		r.answers[q.ID] = value
		if i+1 > r.index {
			r.index = i + 1
		}
		return nil
	}
	return ErrQuestionNotFound
}

// Back moves the cursor one question back.
func (r *Runner) Back() {
	if r.index > 0 {
		r.index--
	}
}

// Progress is the percentage of questions answered, 0..100.
func (r *Runner) Progress() float64 {
	if len(r.questions) == 0 {
		return 0
	}
	return float64(len(r.answers)) / float64(len(r.questions)) * 100
}

// Done reports whether every question has an answer.
func (r *Runner) Done() bool {
	return len(r.questions) > 0 && len(r.answers) == len(r.questions)
}

// Answers returns a copy of the recorded answers keyed by question ID.
func (r *Runner) Answers() map[string]int {
	out := make(map[string]int, len(r.answers))
	for k, v := range r.answers {
		out[k] = v
	}
	return out
}

// Ordered returns the recorded answer values in question order.
func (r *Runner) Ordered() []int {
	out := make([]int, 0, len(r.answers))
	for _, q := range r.questions {
		if v, ok := r.answers[q.ID]; ok {
			out = append(out, v)
		}
	}
	return out
}

// Snapshot captures the runner state for persistence.
func (r *Runner) Snapshot(userID string) Progress {
	return Progress{
		UserID:       userID,
		CurrentIndex: r.index,
		Answers:      r.Answers(),
	}
}

// SortQuestions returns a copy of questions ordered by position.
func SortQuestions(questions []Question) []Question {
	ordered := make([]Question, len(questions))
	copy(ordered, questions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})
	return ordered
}
