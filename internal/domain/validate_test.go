package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateFoldsLegacySubject(t *testing.T) {
	cfg, err := TestConfig{
		Subject:        "Physics",
		Subjects:       []string{"Chemistry", "Physics"},
		TotalQuestions: 5,
		Duration:       1,
		Difficulty:     "Medium",
	}.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := strings.Join(cfg.Subjects, ","); got != "Physics,Chemistry" {
		t.Fatalf("expected primary subject first, got %s", got)
	}
	if cfg.PrimarySubject() != "Physics" || cfg.Difficulty != DifficultyMedium {
		t.Fatalf("unexpected normalized config %+v", cfg)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := map[string]TestConfig{
		"no subjects":   {TotalQuestions: 5, Duration: 1, Difficulty: "easy"},
		"zero duration": {Subjects: []string{"Physics"}, TotalQuestions: 5, Difficulty: "easy"},
		"too many":      {Subjects: []string{"Physics"}, TotalQuestions: 101, Duration: 1, Difficulty: "easy"},
		"difficulty":    {Subjects: []string{"Physics"}, TotalQuestions: 5, Duration: 1, Difficulty: "brutal"},
	}
	for name, cfg := range cases {
		if _, err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestValidateDefaultsDifficulty(t *testing.T) {
	cfg, err := TestConfig{Subject: "Physics", TotalQuestions: 5, Duration: 1}.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Difficulty != DifficultyMedium || len(cfg.Subjects) != 1 {
		t.Fatalf("unexpected normalized config %+v", cfg)
	}
}
