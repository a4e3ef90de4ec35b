package pgletters

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS letters (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL,
  status TEXT NOT NULL,
  final BOOLEAN NOT NULL DEFAULT FALSE,
  updated TIMESTAMPTZ NOT NULL,
  UNIQUE (tracking_number)
)`,
		`CREATE INDEX IF NOT EXISTS idx_letters_final ON letters(final)`,
		`CREATE INDEX IF NOT EXISTS idx_letters_updated ON letters(updated)`,
		`
CREATE TABLE IF NOT EXISTS status_history (
  id BIGSERIAL PRIMARY KEY,
  letter_id BIGINT NOT NULL REFERENCES letters(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  timestamp_tracked TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_status_history_letter_id ON status_history(letter_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
