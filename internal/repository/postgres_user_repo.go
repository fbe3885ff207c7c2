package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/eventhub/internal/model"
)

// bootstrapLockKey はブートストラップ管理者判定で使用するアドバイザリロックのキー。
const bootstrapLockKey = 7_340_211

const userColumns = `id, first_name, last_name, middle_name, email, password_hash,
	gender, birth_date, role, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var firstName, lastName, middleName, gender sql.NullString
	var birthDate sql.NullTime

	err := row.Scan(
		&user.ID, &firstName, &lastName, &middleName, &user.Email, &user.PasswordHash,
		&gender, &birthDate, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.FirstName = nullStringValue(firstName)
	user.LastName = nullStringValue(lastName)
	user.MiddleName = nullStringValue(middleName)
	user.Gender = model.Gender(nullStringValue(gender))
	user.BirthDate = nullTimeValue(birthDate)
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !validUUID(id) {
		return nil, nil
	}

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// List は全ユーザーを作成日時の昇順で返す。
func (r *PostgresUserRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// CreateBootstrapped はユーザー数の確認と作成を同一トランザクションで行う。
// pg_advisory_xact_lockで同時登録を直列化するため、最初のユーザーとして
// 管理者になるのは常に1人だけとなる。
func (r *PostgresUserRepo) CreateBootstrapped(ctx context.Context, user *model.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, bootstrapLockKey); err != nil {
		return fmt.Errorf("failed to acquire bootstrap lock: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}

	user.Role = model.RoleUser
	if count == 0 {
		user.Role = model.RoleAdmin
	}

	if err := insertUser(ctx, tx, user); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Create はuser.Roleをそのまま使ってユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	return insertUser(ctx, r.db, user)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertUser(ctx context.Context, db execer, user *model.User) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		user.ID, nullString(user.FirstName), nullString(user.LastName), nullString(user.MiddleName),
		user.Email, user.PasswordHash, nullString(string(user.Gender)), nullTime(user.BirthDate),
		user.Role, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return model.NewDuplicateEmailError()
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateRole はユーザーのロールを更新する。
func (r *PostgresUserRepo) UpdateRole(ctx context.Context, id string, role model.Role) error {
	if !validUUID(id) {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1`,
		id, role,
	)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	return checkRowsAffected(result)
}

// UpdateProfile は氏名・性別・生年月日を更新する。
func (r *PostgresUserRepo) UpdateProfile(ctx context.Context, user *model.User) error {
	if !validUUID(user.ID) {
		return ErrNotFound
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET first_name = $2, last_name = $3, middle_name = $4,
		     gender = $5, birth_date = $6, updated_at = $7
		 WHERE id = $1`,
		user.ID, nullString(user.FirstName), nullString(user.LastName), nullString(user.MiddleName),
		nullString(string(user.Gender)), nullTime(user.BirthDate), user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user profile: %w", err)
	}
	return checkRowsAffected(result)
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
