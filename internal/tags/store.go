package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ストレージ層のセンチネルエラー。
var (
	// ErrTagExists は同名のタグが既に存在することを表す。
	ErrTagExists = errors.New("タグが既に存在する")
	// ErrNotFound は対象のタグが存在しないことを表す。
	ErrNotFound = errors.New("タグが見つからない")
)

// Tag はユーザーが所有するタグ。
type Tag struct {
	// ID はタグの一意識別子（UUID）。
	ID string
	// UserID はタグを所有するユーザーのID。
	UserID string
	// Name はタグ名（ユーザーごとに一意）。
	Name string
	// Color は表示色（16進カラーコード、空可）。
	Color string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// Store はタグの永続化を抽象化する。テストではフェイク実装に差し替えられる。
type Store interface {
	// CreateTag はタグを作成する。同一ユーザー内の名前重複はErrTagExistsを返す。
	CreateTag(ctx context.Context, t Tag) error
	// GetTagByID はIDでタグを検索する。
	GetTagByID(ctx context.Context, id string) (Tag, error)
	// ListTags はユーザーのタグを名前順でページング取得する。
	// searchが空でない場合は名前の部分一致で絞り込む。
	ListTags(ctx context.Context, userID, search string, limit, offset int) ([]Tag, error)
	// CountTags はListTagsと同じ条件での総件数を返す。
	CountTags(ctx context.Context, userID, search string) (int, error)
	// UpdateTag はタグの名前と色を更新する。
	UpdateTag(ctx context.Context, t Tag) error
	// DeleteTag はタグを削除する。
	DeleteTag(ctx context.Context, id string) error
}

// sqliteStore はSQLiteを使用するStoreの実装。
type sqliteStore struct {
	db *sql.DB
}

// NewStore はSQLiteベースのStoreを生成し、スキーマを適用する。
func NewStore(db *sql.DB) (Store, error) {
	if err := initSchema(db); err != nil {
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// CreateTag はタグを作成する。
func (s *sqliteStore) CreateTag(ctx context.Context, t Tag) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tags (id, user_id, name, color) VALUES (?, ?, ?, ?)",
		t.ID, t.UserID, t.Name, t.Color,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrTagExists
		}
		return fmt.Errorf("タグの作成に失敗: %w", err)
	}
	return nil
}

// GetTagByID はIDでタグを検索する。
func (s *sqliteStore) GetTagByID(ctx context.Context, id string) (Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, name, color, created_at, updated_at FROM tags WHERE id = ?", id).
		Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return Tag{}, ErrNotFound
	}
	if err != nil {
		return Tag{}, fmt.Errorf("タグの取得に失敗: %w", err)
	}
	return t, nil
}

// ListTags はユーザーのタグを名前順でページング取得する。
func (s *sqliteStore) ListTags(ctx context.Context, userID, search string, limit, offset int) ([]Tag, error) {
	query := "SELECT id, user_id, name, color, created_at, updated_at FROM tags WHERE user_id = ?"
	args := []any{userID}
	if search != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY name ASC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("タグ一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Color, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("タグ行の読み取りに失敗: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// CountTags はListTagsと同じ条件での総件数を返す。
func (s *sqliteStore) CountTags(ctx context.Context, userID, search string) (int, error) {
	query := "SELECT COUNT(*) FROM tags WHERE user_id = ?"
	args := []any{userID}
	if search != "" {
		query += " AND name LIKE ?"
		args = append(args, "%"+search+"%")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("タグ件数の取得に失敗: %w", err)
	}
	return total, nil
}

// UpdateTag はタグの名前と色を更新する。
func (s *sqliteStore) UpdateTag(ctx context.Context, t Tag) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE tags SET name = ?, color = ?, updated_at = datetime('now') WHERE id = ?",
		t.Name, t.Color, t.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrTagExists
		}
		return fmt.Errorf("タグの更新に失敗: %w", err)
	}
	return nil
}

// DeleteTag はタグを削除する。
func (s *sqliteStore) DeleteTag(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("タグの削除に失敗: %w", err)
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
