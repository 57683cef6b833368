// Package config は環境変数からプロセス起動時に読み込む設定を提供する。
//
// 設定は起動時に一度だけ読み込まれ、プロセス存続期間中は不変として扱う。
// リクエスト間で共有される可変状態はこの設定以外に存在しない。
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config は全サービス共通の環境変数設定。
// 各サービスは自分に必要なフィールドだけを参照する。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string `env:"PORT" env-default:"8080"`

	// JWTSecret はアクセストークンの署名用秘密鍵。
	// gatewayと全内部サービスで共有する（gatewayがローカル検証するための信頼前提）。
	JWTSecret string `env:"JWT_SECRET"`
	// JWTRefreshSecret はリフレッシュトークンの署名用秘密鍵。
	// アクセストークンの鍵とは独立しており、相互に検証できない。
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET"`
	// AccessTokenTTL はアクセストークンの有効期間。
	AccessTokenTTL time.Duration `env:"JWT_EXPIRES_IN" env-default:"15m"`
	// RefreshTokenTTL はリフレッシュトークンの有効期間。
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_EXPIRES_IN" env-default:"168h"`
	// BcryptCost はパスワードハッシュのコストファクタ。
	BcryptCost int `env:"BCRYPT_ROUNDS" env-default:"10"`

	// DBPath はSQLiteデータベースファイルのパス。
	DBPath string `env:"DB_PATH" env-default:""`

	// AuthServiceURL はauthサービスのベースURL。
	AuthServiceURL string `env:"AUTH_SERVICE_URL" env-default:"http://localhost:3001"`
	// UserServiceURL はuserサービスのベースURL。
	UserServiceURL string `env:"USER_SERVICE_URL" env-default:"http://localhost:3002"`
	// NotesServiceURL はnotesサービスのベースURL。
	NotesServiceURL string `env:"NOTES_SERVICE_URL" env-default:"http://localhost:3003"`
	// TagsServiceURL はtagsサービスのベースURL。
	TagsServiceURL string `env:"TAGS_SERVICE_URL" env-default:"http://localhost:3004"`

	// CORSOrigin はCORSで許可するフロントエンドのオリジン。
	CORSOrigin string `env:"CORS_ORIGIN" env-default:"http://localhost:3000"`
}

// Load は環境変数から設定を読み込む。
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("環境変数の読み込みに失敗: %w", err)
	}
	return &cfg, nil
}
