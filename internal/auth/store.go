package auth

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Kvisus/micronotes-back/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ストレージ層のセンチネルエラー。サービス層でドメインエラーに変換される。
var (
	// ErrUserExists は同じメールアドレスのユーザーが既に存在することを表す。
	ErrUserExists = errors.New("ユーザーが既に存在する")
	// ErrNotFound は対象のレコードが存在しないことを表す。
	ErrNotFound = errors.New("レコードが見つからない")
)

// User は認証用のユーザークレデンシャル。
// パスワードは平文では保持せず、bcryptハッシュのみを格納する。
type User struct {
	// ID はユーザーの一意識別子（UUID）。
	ID string
	// Email はユーザーのメールアドレス（一意）。
	Email string
	// PasswordHash はbcryptでハッシュ化されたパスワード。
	PasswordHash string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// RefreshToken は永続化されたリフレッシュトークンレコード。
// ログアウトやローテーションで削除される。
type RefreshToken struct {
	// ID はレコードの一意識別子（UUID）。
	ID string
	// UserID はトークンの所有者。
	UserID string
	// Token は署名済みリフレッシュトークンの値（一意）。
	Token string
	// ExpiresAt はトークンの有効期限。
	ExpiresAt time.Time
}

// Store はクレデンシャルとリフレッシュトークンの永続化を抽象化する。
// テストではフェイク実装に差し替えられる。
type Store interface {
	// CreateUser はユーザーを作成する。メールアドレス重複時はErrUserExistsを返す。
	CreateUser(ctx context.Context, u User) error
	// GetUserByEmail はメールアドレスでユーザーを検索する。
	GetUserByEmail(ctx context.Context, email string) (User, error)
	// GetUserByID はIDでユーザーを検索する。
	GetUserByID(ctx context.Context, id string) (User, error)
	// DeleteUser はユーザーと関連するリフレッシュトークンを削除する。
	DeleteUser(ctx context.Context, id string) error
	// CreateRefreshToken はリフレッシュトークンレコードを作成する。
	CreateRefreshToken(ctx context.Context, rec RefreshToken) error
	// GetRefreshToken はトークン値でレコードを検索する。
	GetRefreshToken(ctx context.Context, tokenValue string) (RefreshToken, error)
	// ConsumeRefreshToken はトークン値でレコードを削除する。
	// 削除対象が存在しない場合はErrNotFoundを返す。同じトークンの
	// 並行使用はどちらか一方だけが成功する（ローテーションの単一使用保証）。
	ConsumeRefreshToken(ctx context.Context, tokenValue string) error
	// DeleteRefreshTokensByUser は指定ユーザーの全リフレッシュトークンを削除する。
	DeleteRefreshTokensByUser(ctx context.Context, userID string) error
}

// sqliteStore はSQLiteを使用するStoreの実装。
type sqliteStore struct {
	db *sql.DB
}

// NewStore はSQLiteベースのStoreを生成し、マイグレーションを適用する。
func NewStore(db *sql.DB) (Store, error) {
	if err := migration.Run(db, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("authサービスのマイグレーションに失敗: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

// CreateUser はユーザーを作成する。
func (s *sqliteStore) CreateUser(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash) VALUES (?, ?, ?)",
		u.ID, u.Email, u.PasswordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return nil
}

// GetUserByEmail はメールアドレスでユーザーを検索する。
func (s *sqliteStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx,
		"SELECT id, email, password_hash, created_at, updated_at FROM users WHERE email = ?", email)
}

// GetUserByID はIDでユーザーを検索する。
func (s *sqliteStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.getUser(ctx,
		"SELECT id, email, password_hash, created_at, updated_at FROM users WHERE id = ?", id)
}

// getUser は単一ユーザーを取得する共通処理。
func (s *sqliteStore) getUser(ctx context.Context, query string, arg any) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// DeleteUser はユーザーと関連するリフレッシュトークンを削除する。
func (s *sqliteStore) DeleteUser(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// 外部キーのカスケードに頼らず明示的に削除する
	if _, err := tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id = ?", id); err != nil {
		return fmt.Errorf("リフレッシュトークンの削除に失敗: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

// CreateRefreshToken はリフレッシュトークンレコードを作成する。
func (s *sqliteStore) CreateRefreshToken(ctx context.Context, rec RefreshToken) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO refresh_tokens (id, user_id, token, expires_at) VALUES (?, ?, ?, ?)",
		rec.ID, rec.UserID, rec.Token, rec.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("リフレッシュトークンの作成に失敗: %w", err)
	}
	return nil
}

// GetRefreshToken はトークン値でレコードを検索する。
func (s *sqliteStore) GetRefreshToken(ctx context.Context, tokenValue string) (RefreshToken, error) {
	var rec RefreshToken
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, token, expires_at FROM refresh_tokens WHERE token = ?", tokenValue).
		Scan(&rec.ID, &rec.UserID, &rec.Token, &rec.ExpiresAt)
	if err == sql.ErrNoRows {
		return RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return RefreshToken{}, fmt.Errorf("リフレッシュトークンの取得に失敗: %w", err)
	}
	return rec, nil
}

// ConsumeRefreshToken はトークン値でレコードを削除する。
// DELETEの影響行数を確認することで、並行する同一トークンの消費を
// 高々1回に制限する。
func (s *sqliteStore) ConsumeRefreshToken(ctx context.Context, tokenValue string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token = ?", tokenValue)
	if err != nil {
		return fmt.Errorf("リフレッシュトークンの削除に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRefreshTokensByUser は指定ユーザーの全リフレッシュトークンを削除する。
func (s *sqliteStore) DeleteRefreshTokensByUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("リフレッシュトークンの削除に失敗: %w", err)
	}
	return nil
}

// isUniqueViolation はSQLiteの一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
