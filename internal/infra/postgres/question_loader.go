package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"mocktest-client/internal/domain"
)

// QuestionLoader loads question JSONB rows from the question_bank table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, subject string) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT data FROM question_bank WHERE lower(subject) = lower($1) ORDER BY id`, subject)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("subject %s: %w", subject, domain.ErrNotFound)
	}
	return questions, nil
}

// SeedQuestions upserts questions into the bank.
func SeedQuestions(ctx context.Context, pool *pgxpool.Pool, questions []domain.Question) error {
	for _, q := range questions {
		data, err := json.Marshal(q)
		if err != nil {
			return fmt.Errorf("marshal question %s: %w", q.ID, err)
		}
		_, err = pool.Exec(ctx, `
			INSERT INTO question_bank (id, subject, data) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET subject = EXCLUDED.subject, data = EXCLUDED.data`,
			q.ID, q.Subject, data)
		if err != nil {
			return fmt.Errorf("seed question %s: %w", q.ID, err)
		}
	}
	return nil
}
