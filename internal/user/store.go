package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound は対象のプロファイルが存在しないことを表す。
var ErrNotFound = errors.New("プロファイルが見つからない")

// Profile はユーザーの表示用プロファイル。
type Profile struct {
	// UserID はプロファイルを所有するユーザーのID。
	UserID string
	// FirstName は名。
	FirstName string
	// LastName は姓。
	LastName string
	// Bio は自己紹介文。
	Bio string
	// AvatarURL はアバター画像のURL。
	AvatarURL string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
}

// Store はプロファイルの永続化を抽象化する。テストではフェイク実装に差し替えられる。
type Store interface {
	// GetProfile はユーザーIDでプロファイルを検索する。
	GetProfile(ctx context.Context, userID string) (Profile, error)
	// UpsertProfile はプロファイルを作成または更新する。
	UpsertProfile(ctx context.Context, p Profile) error
	// DeleteProfile はプロファイルを削除する。
	DeleteProfile(ctx context.Context, userID string) error
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

// GetProfile はユーザーIDでプロファイルを検索する。
func (s *sqliteStore) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, first_name, last_name, bio, avatar_url, created_at, updated_at
		 FROM user_profiles WHERE user_id = ?`, userID).
		Scan(&p.UserID, &p.FirstName, &p.LastName, &p.Bio, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("プロファイルの取得に失敗: %w", err)
	}
	return p, nil
}

// UpsertProfile はプロファイルを作成または更新する。
func (s *sqliteStore) UpsertProfile(ctx context.Context, p Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, first_name, last_name, bio, avatar_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			bio = excluded.bio,
			avatar_url = excluded.avatar_url,
			updated_at = datetime('now')`,
		p.UserID, p.FirstName, p.LastName, p.Bio, p.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("プロファイルの保存に失敗: %w", err)
	}
	return nil
}

// DeleteProfile はプロファイルを削除する。
func (s *sqliteStore) DeleteProfile(ctx context.Context, userID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM user_profiles WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("プロファイルの削除に失敗: %w", err)
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
