package chat

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

const messagesTable = "chat_messages"

var messageColumns = []string{
	"id",
	"username",
	"content",
	"created_at",
	"message_type",
	"message_color",
	"user_uuid",
}

// Repository is the Postgres-backed message log. It also answers the
// aggregate stats queries, which are recomputed from the table every time.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: sqlx.NewDb(db, "pgx")}
}

func (r *Repository) Append(ctx context.Context, m NewMessage) (*Message, error) {
	query, args, err := appendQuery(m).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build insert: %w", ErrStorage, err)
	}

	stored := &Message{}
	if err := r.db.QueryRowxContext(ctx, query, args...).StructScan(stored); err != nil {
		return nil, fmt.Errorf("%w: append message: %w", ErrStorage, err)
	}
	return stored, nil
}

// RecentHistory returns at most limit messages, newest first.
func (r *Repository) RecentHistory(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultHistory
	}
	query, args, err := historyQuery(limit).ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: build history query: %w", ErrStorage, err)
	}

	messages := []Message{}
	if err := r.db.SelectContext(ctx, &messages, query, args...); err != nil {
		return nil, fmt.Errorf("%w: recent history: %w", ErrStorage, err)
	}
	return messages, nil
}

// DeleteByID reports whether a row was removed.
func (r *Repository) DeleteByID(ctx context.Context, id int64) (bool, error) {
	query, args, err := deleteQuery(id).ToSql()
	if err != nil {
		return false, fmt.Errorf("%w: build delete: %w", ErrStorage, err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%w: delete message %d: %w", ErrStorage, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: delete message %d: %w", ErrStorage, id, err)
	}
	return n > 0, nil
}

// RenameAuthor rewrites the username on every row of authorUUID. Bridged
// discord rows keep their name.
func (r *Repository) RenameAuthor(ctx context.Context, authorUUID, username string) error {
	query, args, err := renameQuery(authorUUID, username).ToSql()
	if err != nil {
		return fmt.Errorf("%w: build rename: %w", ErrStorage, err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: rename author: %w", ErrStorage, err)
	}
	return nil
}

// Compute counts every row and the distinct non-admin authors.
func (r *Repository) Compute(ctx context.Context) (Stats, error) {
	query, args, err := statsQuery().ToSql()
	if err != nil {
		return Stats{}, fmt.Errorf("%w: build stats query: %w", ErrStorage, err)
	}

	var stats Stats
	if err := r.db.GetContext(ctx, &stats, query, args...); err != nil {
		return Stats{}, fmt.Errorf("%w: aggregate stats: %w", ErrStorage, err)
	}
	return stats, nil
}

// ---------------------------------------------
// Query builders
// ---------------------------------------------

func appendQuery(m NewMessage) sq.InsertBuilder {
	return sq.Insert(messagesTable).
		Columns("username", "content", "message_type", "message_color", "user_uuid").
		Values(m.Username, m.Content, m.Type, m.Color, nullable(m.AuthorUUID)).
		Suffix("RETURNING " + strings.Join(messageColumns, ", ")).
		PlaceholderFormat(sq.Dollar)
}

func historyQuery(limit int) sq.SelectBuilder {
	return sq.Select(messageColumns...).
		From(messagesTable).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar)
}

func deleteQuery(id int64) sq.DeleteBuilder {
	return sq.Delete(messagesTable).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar)
}

// renameQuery leaves bridged discord rows alone.
func renameQuery(authorUUID, username string) sq.UpdateBuilder {
	return sq.Update(messagesTable).
		Set("username", username).
		Where(sq.Eq{"user_uuid": authorUUID}).
		Where(sq.NotEq{"message_type": TypeDiscord}).
		PlaceholderFormat(sq.Dollar)
}

// statsQuery excludes the admin sentinel from the poster count.
func statsQuery() sq.SelectBuilder {
	return sq.Select("COUNT(*) AS total_messages").
		Column(sq.Expr("COUNT(DISTINCT user_uuid) FILTER (WHERE user_uuid <> ?) AS unique_posters", AdminUUID)).
		From(messagesTable).
		PlaceholderFormat(sq.Dollar)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
