package content

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const recordColumns = `id, title, description, url, thumbnail_url, channel_id, channel_name, validation_hash, published_at, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into content_record(id, title, description, url, thumbnail_url, channel_id, channel_name, published_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.Title, rec.Description, rec.URL, rec.ThumbnailURL, rec.ChannelID, rec.ChannelName, rec.PublishedAt,
	)
	return err
}

func (s *PGStore) Find(ctx context.Context, id uuid.UUID) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+recordColumns+` from content_record where id=$1`, id)
	rec, err := scanRecord(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *PGStore) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`select `+recordColumns+` from content_record where id = any($1) order by published_at desc nulls last`,
		ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGStore) SetValidationHash(ctx context.Context, id uuid.UUID, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`update content_record set validation_hash=$2, updated_at=now() where id=$1`, id, hash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecord(scan func(dest ...any) error) (*Record, error) {
	var (
		rec            Record
		description    sql.NullString
		thumbnail      sql.NullString
		channelName    sql.NullString
		validationHash sql.NullString
		publishedAt    sql.NullTime
	)
	err := scan(&rec.ID, &rec.Title, &description, &rec.URL, &thumbnail,
		&rec.ChannelID, &channelName, &validationHash, &publishedAt,
		&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.Description = description.String
	rec.ThumbnailURL = thumbnail.String
	rec.ChannelName = channelName.String
	rec.ValidationHash = validationHash.String
	if publishedAt.Valid {
		t := publishedAt.Time
		rec.PublishedAt = &t
	}
	return &rec, nil
}
