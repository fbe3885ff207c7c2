package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/eventhub/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用したイベントリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

const eventSelect = `SELECT e.id, e.title, e.description, e.date, e.category, e.created_by,
	        e.created_at, e.updated_at,
	        u.first_name, u.last_name, u.email
	 FROM events e
	 LEFT JOIN users u ON u.id = e.created_by`

func scanEvent(row rowScanner) (*model.Event, error) {
	event := &model.Event{}
	var description, category sql.NullString
	var firstName, lastName, email sql.NullString

	err := row.Scan(
		&event.ID, &event.Title, &description, &event.Date, &category, &event.CreatedBy,
		&event.CreatedAt, &event.UpdatedAt,
		&firstName, &lastName, &email,
	)
	if err != nil {
		return nil, err
	}

	event.Description = nullStringValue(description)
	event.Category = model.Category(nullStringValue(category))
	if email.Valid {
		event.Owner = &model.OwnerSummary{
			FirstName: nullStringValue(firstName),
			LastName:  nullStringValue(lastName),
			Email:     email.String,
		}
	}
	return event, nil
}

// FindByID は指定IDのイベントを取得する。見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByID(ctx context.Context, id string) (*model.Event, error) {
	if !validUUID(id) {
		return nil, nil
	}

	event, err := scanEvent(r.db.QueryRowContext(ctx, eventSelect+` WHERE e.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event by ID: %w", err)
	}

	return event, nil
}

// List はフィルタ条件に一致するイベントを開催日時の昇順で返す。
// フィルタに使えるのはcategoryとcreated_byのみで、値はプレースホルダで渡す。
func (r *PostgresEventRepo) List(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	var conds []string
	var args []any

	if filter.Category != "" {
		args = append(args, string(filter.Category))
		conds = append(conds, fmt.Sprintf("e.category = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		if !validUUID(filter.CreatedBy) {
			return []*model.Event{}, nil
		}
		args = append(args, filter.CreatedBy)
		conds = append(conds, fmt.Sprintf("e.created_by = $%d", len(args)))
	}

	query := eventSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY e.date ASC, e.id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*model.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// Create はイベントを作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, event *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, title, description, date, category, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Title, nullString(event.Description), event.Date,
		nullString(string(event.Category)), event.CreatedBy, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// Update はタイトル・説明・開催日時・カテゴリを更新する。
func (r *PostgresEventRepo) Update(ctx context.Context, event *model.Event) error {
	if !validUUID(event.ID) {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE events
		 SET title = $2, description = $3, date = $4, category = $5, updated_at = $6
		 WHERE id = $1`,
		event.ID, event.Title, nullString(event.Description), event.Date,
		nullString(string(event.Category)), event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	return checkRowsAffected(result)
}

// Delete は指定IDのイベントを削除する。
func (r *PostgresEventRepo) Delete(ctx context.Context, id string) error {
	if !validUUID(id) {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return checkRowsAffected(result)
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
