package config

import (
	"fmt"
	"os"
	"strings"

	"moral-quiz-service/internal/domain"
	"gopkg.in/yaml.v3"
)

type questionFile struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadQuestions reads a YAML question catalog. Questions without a position
// take their place in the file.
func LoadQuestions(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file questionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse questions %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(file.Questions))
	for i := range file.Questions {
		q := &file.Questions[i]
		q.ID = strings.TrimSpace(q.ID)
		if q.ID == "" || strings.TrimSpace(q.Text) == "" {
			return nil, fmt.Errorf("question %d: id and text are required", i+1)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("question %s: duplicate id", q.ID)
		}
		seen[q.ID] = struct{}{}
		if q.Position == 0 {
			q.Position = i + 1
		}
	}
	return file.Questions, nil
}
