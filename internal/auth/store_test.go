package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Kvisus/micronotes-back/pkg/sqlitedb"
)

// newTestStore はテスト用のインメモリストアを生成する。
func newTestStore(t *testing.T) Store {
	t.Helper()

	db, err := sqlitedb.Open(":memory:")
	if err != nil {
		t.Fatalf("インメモリDB接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db)
	if err != nil {
		t.Fatalf("ストア初期化に失敗: %v", err)
	}
	return store
}

// seedTestUser はテスト用のユーザーレコードを作成する。
func seedTestUser(t *testing.T, store Store, email string) User {
	t.Helper()

	u := User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: "$2a$04$dummyhashdummyhashdummyha",
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("テスト用ユーザー作成に失敗: %v", err)
	}
	return u
}

// TestStoreCreateUser はユーザー作成のテスト。
func TestStoreCreateUser(t *testing.T) {
	t.Parallel()

	t.Run("作成したユーザーをメールアドレスとIDで取得できる", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()
		u := seedTestUser(t, store, "store@example.com")

		byEmail, err := store.GetUserByEmail(ctx, "store@example.com")
		if err != nil {
			t.Fatalf("メールアドレスでの取得に失敗: %v", err)
		}
		if byEmail.ID != u.ID {
			t.Errorf("ID: got %q, want %q", byEmail.ID, u.ID)
		}
		if byEmail.CreatedAt.IsZero() {
			t.Error("created_atが設定されていない")
		}

		byID, err := store.GetUserByID(ctx, u.ID)
		if err != nil {
			t.Fatalf("IDでの取得に失敗: %v", err)
		}
		if byID.Email != "store@example.com" {
			t.Errorf("Email: got %q, want %q", byID.Email, "store@example.com")
		}
	})

	t.Run("メールアドレスが重複する場合はErrUserExistsを返す", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		seedTestUser(t, store, "dup-store@example.com")

		err := store.CreateUser(context.Background(), User{
			ID:           uuid.New().String(),
			Email:        "dup-store@example.com",
			PasswordHash: "hash",
		})
		if !errors.Is(err, ErrUserExists) {
			t.Errorf("エラー分類: got %v, want ErrUserExists", err)
		}
	})

	t.Run("存在しないユーザーの取得はErrNotFoundを返す", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)

		if _, err := store.GetUserByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("エラー分類: got %v, want ErrNotFound", err)
		}
		if _, err := store.GetUserByID(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
			t.Errorf("エラー分類: got %v, want ErrNotFound", err)
		}
	})
}

// TestStoreRefreshToken はリフレッシュトークンレコードのテスト。
func TestStoreRefreshToken(t *testing.T) {
	t.Parallel()

	t.Run("作成したレコードをトークン値で取得できる", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()
		u := seedTestUser(t, store, "token@example.com")

		rec := RefreshToken{
			ID:        uuid.New().String(),
			UserID:    u.ID,
			Token:     "refresh-token-value",
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}
		if err := store.CreateRefreshToken(ctx, rec); err != nil {
			t.Fatalf("レコード作成に失敗: %v", err)
		}

		got, err := store.GetRefreshToken(ctx, "refresh-token-value")
		if err != nil {
			t.Fatalf("レコード取得に失敗: %v", err)
		}
		if got.UserID != u.ID {
			t.Errorf("UserID: got %q, want %q", got.UserID, u.ID)
		}
		if got.ExpiresAt.IsZero() {
			t.Error("expires_atが設定されていない")
		}
	})

	t.Run("Consumeは最初の1回だけ成功する", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()
		u := seedTestUser(t, store, "consume@example.com")

		rec := RefreshToken{
			ID:        uuid.New().String(),
			UserID:    u.ID,
			Token:     "consume-once",
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}
		if err := store.CreateRefreshToken(ctx, rec); err != nil {
			t.Fatalf("レコード作成に失敗: %v", err)
		}

		if err := store.ConsumeRefreshToken(ctx, "consume-once"); err != nil {
			t.Fatalf("1回目のConsumeに失敗: %v", err)
		}
		if err := store.ConsumeRefreshToken(ctx, "consume-once"); !errors.Is(err, ErrNotFound) {
			t.Errorf("2回目のConsume: got %v, want ErrNotFound", err)
		}
	})

	t.Run("ユーザー削除で関連するレコードも消える", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()
		u := seedTestUser(t, store, "cascade@example.com")

		rec := RefreshToken{
			ID:        uuid.New().String(),
			UserID:    u.ID,
			Token:     "cascade-token",
			ExpiresAt: time.Now().Add(24 * time.Hour),
		}
		if err := store.CreateRefreshToken(ctx, rec); err != nil {
			t.Fatalf("レコード作成に失敗: %v", err)
		}

		if err := store.DeleteUser(ctx, u.ID); err != nil {
			t.Fatalf("ユーザー削除に失敗: %v", err)
		}

		if _, err := store.GetRefreshToken(ctx, "cascade-token"); !errors.Is(err, ErrNotFound) {
			t.Errorf("削除後の取得: got %v, want ErrNotFound", err)
		}
	})

	t.Run("DeleteRefreshTokensByUserは対象ユーザーの全レコードを消す", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)
		ctx := context.Background()
		u := seedTestUser(t, store, "all-tokens@example.com")

		for _, tokenValue := range []string{"token-1", "token-2"} {
			rec := RefreshToken{
				ID:        uuid.New().String(),
				UserID:    u.ID,
				Token:     tokenValue,
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}
			if err := store.CreateRefreshToken(ctx, rec); err != nil {
				t.Fatalf("レコード作成に失敗: %v", err)
			}
		}

		if err := store.DeleteRefreshTokensByUser(ctx, u.ID); err != nil {
			t.Fatalf("一括削除に失敗: %v", err)
		}

		for _, tokenValue := range []string{"token-1", "token-2"} {
			if _, err := store.GetRefreshToken(ctx, tokenValue); !errors.Is(err, ErrNotFound) {
				t.Errorf("削除後の取得(%s): got %v, want ErrNotFound", tokenValue, err)
			}
		}
	})

	t.Run("存在しないユーザーの削除はErrNotFoundを返す", func(t *testing.T) {
		t.Parallel()

		store := newTestStore(t)

		if err := store.DeleteUser(context.Background(), "no-such-user"); !errors.Is(err, ErrNotFound) {
			t.Errorf("エラー分類: got %v, want ErrNotFound", err)
		}
	})
}
