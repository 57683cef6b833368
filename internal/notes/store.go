package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound は対象のノートが存在しないことを表す。
var ErrNotFound = errors.New("ノートが見つからない")

// Note はユーザーが所有するノート。
type Note struct {
	// ID はノートの一意識別子（UUID）。
	ID string
	// UserID はノートを所有するユーザーのID。
	UserID string
	// Title はノートのタイトル。
	Title string
	// Content はノートの本文。
	Content string
	// TagIDs はノートに付与されたタグのIDリスト。
	TagIDs []string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// Store はノートの永続化を抽象化する。テストではフェイク実装に差し替えられる。
type Store interface {
	// CreateNote はノートとタグ付けを1トランザクションで作成する。
	// タグ付けの挿入に失敗した場合、ノート本体も残らない。
	CreateNote(ctx context.Context, n Note, tagIDs []string) error
	// GetNoteByID は指定ユーザーの未削除ノートをタグ付きで取得する。
	GetNoteByID(ctx context.Context, id, userID string) (Note, error)
	// ListNotes はユーザーの未削除ノートを新しい順でページング取得する。
	// searchが空でない場合はタイトル・本文の部分一致で絞り込む。
	ListNotes(ctx context.Context, userID, search string, limit, offset int) ([]Note, error)
	// CountNotes はListNotesと同じ条件での総件数を返す。
	CountNotes(ctx context.Context, userID, search string) (int, error)
	// UpdateNote はノート本体を更新する。replaceTagsがtrueの場合は
	// タグ付けも同一トランザクションで入れ替える。
	UpdateNote(ctx context.Context, n Note, tagIDs []string, replaceTags bool) error
	// SoftDeleteNote はノートを論理削除する。
	SoftDeleteNote(ctx context.Context, id string) error
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

// CreateNote はノートとタグ付けを1トランザクションで作成する。
func (s *sqliteStore) CreateNote(ctx context.Context, n Note, tagIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO notes (id, user_id, title, content) VALUES (?, ?, ?, ?)",
		n.ID, n.UserID, n.Title, n.Content,
	); err != nil {
		return fmt.Errorf("ノートの作成に失敗: %w", err)
	}

	if err := insertNoteTags(ctx, tx, n.ID, tagIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// GetNoteByID は指定ユーザーの未削除ノートをタグ付きで取得する。
func (s *sqliteStore) GetNoteByID(ctx context.Context, id, userID string) (Note, error) {
	var n Note
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, content, created_at, updated_at
		 FROM notes WHERE id = ? AND user_id = ? AND is_deleted = 0`, id, userID).
		Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return Note{}, ErrNotFound
	}
	if err != nil {
		return Note{}, fmt.Errorf("ノートの取得に失敗: %w", err)
	}

	tagIDs, err := s.noteTagIDs(ctx, n.ID)
	if err != nil {
		return Note{}, err
	}
	n.TagIDs = tagIDs
	return n, nil
}

// ListNotes はユーザーの未削除ノートを新しい順でページング取得する。
func (s *sqliteStore) ListNotes(ctx context.Context, userID, search string, limit, offset int) ([]Note, error) {
	query := `SELECT id, user_id, title, content, created_at, updated_at
		FROM notes WHERE user_id = ? AND is_deleted = 0`
	args := []any{userID}
	if search != "" {
		query += " AND (title LIKE ? OR content LIKE ?)"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ノート一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ノート行の読み取りに失敗: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		tagIDs, err := s.noteTagIDs(ctx, result[i].ID)
		if err != nil {
			return nil, err
		}
		result[i].TagIDs = tagIDs
	}
	return result, nil
}

// CountNotes はListNotesと同じ条件での総件数を返す。
func (s *sqliteStore) CountNotes(ctx context.Context, userID, search string) (int, error) {
	query := "SELECT COUNT(*) FROM notes WHERE user_id = ? AND is_deleted = 0"
	args := []any{userID}
	if search != "" {
		query += " AND (title LIKE ? OR content LIKE ?)"
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("ノート件数の取得に失敗: %w", err)
	}
	return total, nil
}

// UpdateNote はノート本体を更新する。replaceTagsがtrueの場合は
// タグ付けも同一トランザクションで入れ替える。
func (s *sqliteStore) UpdateNote(ctx context.Context, n Note, tagIDs []string, replaceTags bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"UPDATE notes SET title = ?, content = ?, updated_at = datetime('now') WHERE id = ?",
		n.Title, n.Content, n.ID,
	); err != nil {
		return fmt.Errorf("ノートの更新に失敗: %w", err)
	}

	if replaceTags {
		if _, err := tx.ExecContext(ctx, "DELETE FROM note_tags WHERE note_id = ?", n.ID); err != nil {
			return fmt.Errorf("タグ付けの削除に失敗: %w", err)
		}
		if err := insertNoteTags(ctx, tx, n.ID, tagIDs); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SoftDeleteNote はノートを論理削除する。
func (s *sqliteStore) SoftDeleteNote(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE notes SET is_deleted = 1, updated_at = datetime('now') WHERE id = ? AND is_deleted = 0", id)
	if err != nil {
		return fmt.Errorf("ノートの削除に失敗: %w", err)
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

// noteTagIDs はノートに付与されたタグIDのリストを取得する。
func (s *sqliteStore) noteTagIDs(ctx context.Context, noteID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tag_id FROM note_tags WHERE note_id = ? ORDER BY tag_id", noteID)
	if err != nil {
		return nil, fmt.Errorf("タグ付けの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tagIDs := []string{}
	for rows.Next() {
		var tagID string
		if err := rows.Scan(&tagID); err != nil {
			return nil, fmt.Errorf("タグ付け行の読み取りに失敗: %w", err)
		}
		tagIDs = append(tagIDs, tagID)
	}
	return tagIDs, rows.Err()
}

// insertNoteTags はタグ付けレコードを挿入する。重複は無視する。
func insertNoteTags(ctx context.Context, tx *sql.Tx, noteID string, tagIDs []string) error {
	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO note_tags (note_id, tag_id) VALUES (?, ?)", noteID, tagID,
		); err != nil {
			return fmt.Errorf("タグ付けの作成に失敗: %w", err)
		}
	}
	return nil
}
