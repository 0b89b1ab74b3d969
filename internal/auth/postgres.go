package auth

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

var _ UserStore = (*PGUserStore)(nil)

// PGUserStore implements UserStore using PostgreSQL.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

const userColumns = `id, name, surname, email, password_hash, role, channel_id, channel_title, created_at, updated_at, deleted_at`

func (s *PGUserStore) Create(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into app_user(id, name, surname, email, password_hash, role, channel_id, channel_title)
		 values($1,$2,$3,$4,$5,$6,$7,$8)`,
		u.ID, u.Name, u.Surname, u.Email, u.PasswordHash, string(u.Role), nullString(u.ChannelID), nullString(u.ChannelTitle),
	)
	return err
}

func (s *PGUserStore) Find(ctx context.Context, id uuid.UUID) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from app_user where id=$1`, id)
	return scanUser(row)
}

func (s *PGUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from app_user where email=$1 and deleted_at is null`, email)
	return scanUser(row)
}

func (s *PGUserStore) SetChannel(ctx context.Context, id uuid.UUID, channelID, channelTitle string) error {
	res, err := s.db.ExecContext(ctx,
		`update app_user set channel_id=$2, channel_title=$3, updated_at=now() where id=$1 and deleted_at is null`,
		id, nullString(channelID), nullString(channelTitle))
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGUserStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`update app_user set deleted_at=now(), updated_at=now() where id=$1 and deleted_at is null`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGUserStore) Restore(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`update app_user set deleted_at=null, updated_at=now() where id=$1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func scanUser(row *sql.Row) (*User, error) {
	var (
		u            User
		role         string
		channelID    sql.NullString
		channelTitle sql.NullString
		passwordHash sql.NullString
		deletedAt    sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Surname, &u.Email, &passwordHash, &role,
		&channelID, &channelTitle, &u.CreatedAt, &u.UpdatedAt, &deletedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	u.PasswordHash = passwordHash.String
	u.ChannelID = channelID.String
	u.ChannelTitle = channelTitle.String
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return &u, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
