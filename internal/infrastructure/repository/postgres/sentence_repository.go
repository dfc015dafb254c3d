package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmosk/agro-evidence-qa/internal/core/domain"
)

// SentenceRepository persists the sentence corpus. Sentences are
// append-only; the serial id doubles as the vector point id.
type SentenceRepository struct {
	db *sql.DB
}

func NewSentenceRepository(db *sql.DB) *SentenceRepository {
	return &SentenceRepository{db: db}
}

func (r *SentenceRepository) InsertSentences(ctx context.Context, sentences []domain.Sentence) ([]int, error) {
	if len(sentences) == 0 {
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO sentences (doc_id, start_offset, end_offset, text, crop, practice)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`)
	if err != nil {
		return nil, fmt.Errorf("prepare sentence insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]int, 0, len(sentences))
	for _, s := range sentences {
		var id int
		if err := stmt.QueryRowContext(ctx, s.DocID, s.Start, s.End, s.Text, s.Tags.Crop, s.Tags.Practice).Scan(&id); err != nil {
			return nil, fmt.Errorf("insert sentence: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sentence insert: %w", err)
	}
	return ids, nil
}

func (r *SentenceRepository) GetByID(ctx context.Context, id int) (domain.Sentence, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, doc_id, start_offset, end_offset, text, crop, practice
FROM sentences
WHERE id = $1
`, id)

	s, err := scanSentence(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Sentence{}, domain.WrapError(domain.ErrSentenceNotFound, "get sentence", err)
		}
		return domain.Sentence{}, fmt.Errorf("scan sentence: %w", err)
	}
	return s, nil
}

func (r *SentenceRepository) GetByIDs(ctx context.Context, ids []int) (map[int]domain.Sentence, error) {
	out := make(map[int]domain.Sentence, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, doc_id, start_offset, end_offset, text, crop, practice
FROM sentences
WHERE id = ANY($1)
`, intArray(ids))
	if err != nil {
		return nil, fmt.Errorf("query sentences by ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSentence(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan sentence row: %w", err)
		}
		out[s.ID] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sentence rows: %w", err)
	}
	return out, nil
}

func (r *SentenceRepository) ListAll(ctx context.Context) ([]domain.Sentence, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, doc_id, start_offset, end_offset, text, crop, practice
FROM sentences
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("query all sentences: %w", err)
	}
	defer rows.Close()

	var out []domain.Sentence
	for rows.Next() {
		s, err := scanSentence(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan sentence row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sentence rows: %w", err)
	}
	return out, nil
}

func scanSentence(scan func(dest ...any) error) (domain.Sentence, error) {
	var s domain.Sentence
	err := scan(&s.ID, &s.DocID, &s.Start, &s.End, &s.Text, &s.Tags.Crop, &s.Tags.Practice)
	return s, err
}

// intArray renders ids as a postgres array literal. The stdlib pgx
// driver handles the string form for ANY() without an array codec.
func intArray(ids []int) string {
	out := "{"
	for i, id := range ids {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%d", id)
	}
	return out + "}"
}
