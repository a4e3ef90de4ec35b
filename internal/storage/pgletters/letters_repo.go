package pgletters

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/LetterTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// PageSize — фиксированный размер страницы при постраничном обходе писем.
const PageSize = 100

func (s *Storage) GetLetterByTrackingNumber(ctx context.Context, trackingNumber string) (*models.Letter, error) {
	var l models.Letter
	err := s.db.QueryRow(ctx, `
SELECT id, tracking_number, status, final, updated
FROM letters
WHERE tracking_number = $1
`, trackingNumber).Scan(&l.ID, &l.TrackingNumber, &l.Status, &l.Final, &l.Updated)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select letter")
	}
	return &l, nil
}

// UpsertLetterStatus создаёт или обновляет письмо и добавляет ровно одну
// запись истории. Оба изменения коммитятся одной транзакцией.
// Снятый флаг финальности никогда не сбрасывает уже выставленный.
func (s *Storage) UpsertLetterStatus(ctx context.Context, trackingNumber, status string, isFinal bool) (*models.Letter, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var l models.Letter
	err = tx.QueryRow(ctx, `
INSERT INTO letters (tracking_number, status, final, updated)
VALUES ($1, $2, $3, now())
ON CONFLICT (tracking_number)
DO UPDATE SET
  status = EXCLUDED.status,
  final = letters.final OR EXCLUDED.final,
  updated = now()
RETURNING id, tracking_number, status, final, updated
`, trackingNumber, status, isFinal).Scan(&l.ID, &l.TrackingNumber, &l.Status, &l.Final, &l.Updated)
	if err != nil {
		return nil, errors.Wrap(err, "upsert letter")
	}

	_, err = tx.Exec(ctx, `
INSERT INTO status_history (letter_id, status, timestamp_tracked)
VALUES ($1, $2, now())
`, l.ID, status)
	if err != nil {
		return nil, errors.Wrap(err, "insert status update")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return &l, nil
}

// ListNonFinalLetters возвращает одну страницу нефинальных писем,
// упорядоченных по id по возрастанию. Нумерация страниц с единицы.
func (s *Storage) ListNonFinalLetters(ctx context.Context, page int, from, to *time.Time) ([]*models.Letter, error) {
	if page < 1 {
		page = 1
	}

	q := `
SELECT id, tracking_number, status, final, updated
FROM letters
WHERE final = FALSE`
	args := make([]any, 0, 4)
	if from != nil {
		args = append(args, from.UTC())
		q += fmt.Sprintf(" AND updated >= $%d", len(args))
	}
	if to != nil {
		args = append(args, to.UTC())
		q += fmt.Sprintf(" AND updated <= $%d", len(args))
	}
	args = append(args, PageSize, (page-1)*PageSize)
	q += fmt.Sprintf(" ORDER BY id ASC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return s.queryLetters(ctx, q, args)
}

// ListLetters возвращает письма без фильтра финальности,
// упорядоченные по updated по убыванию. Используется для снапшотов.
func (s *Storage) ListLetters(ctx context.Context, from, to *time.Time) ([]*models.Letter, error) {
	q := `
SELECT id, tracking_number, status, final, updated
FROM letters
WHERE TRUE`
	args := make([]any, 0, 2)
	if from != nil {
		args = append(args, from.UTC())
		q += fmt.Sprintf(" AND updated >= $%d", len(args))
	}
	if to != nil {
		args = append(args, to.UTC())
		q += fmt.Sprintf(" AND updated <= $%d", len(args))
	}
	q += " ORDER BY updated DESC"

	return s.queryLetters(ctx, q, args)
}

func (s *Storage) ListStatusUpdates(ctx context.Context, letterID uint64) ([]*models.StatusUpdate, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, letter_id, status, timestamp_tracked
FROM status_history
WHERE letter_id = $1
ORDER BY timestamp_tracked ASC, id ASC
`, letterID)
	if err != nil {
		return nil, errors.Wrap(err, "select status updates")
	}
	defer rows.Close()

	var out []*models.StatusUpdate
	for rows.Next() {
		var u models.StatusUpdate
		if err := rows.Scan(&u.ID, &u.LetterID, &u.Status, &u.TimestampTracked); err != nil {
			return nil, errors.Wrap(err, "scan status update")
		}
		out = append(out, &u)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) queryLetters(ctx context.Context, q string, args []any) ([]*models.Letter, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select letters")
	}
	defer rows.Close()

	out := make([]*models.Letter, 0)
	for rows.Next() {
		var l models.Letter
		if err := rows.Scan(&l.ID, &l.TrackingNumber, &l.Status, &l.Final, &l.Updated); err != nil {
			return nil, errors.Wrap(err, "scan letter")
		}
		out = append(out, &l)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
