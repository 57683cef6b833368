package user

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Kvisus/micronotes-back/internal/config"
	"github.com/Kvisus/micronotes-back/pkg/middleware"
	"github.com/Kvisus/micronotes-back/pkg/response"
	"github.com/Kvisus/micronotes-back/pkg/sqlitedb"
)

// Server はユーザープロファイルサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はプロファイルの永続化先。
	store Store
	// authValidator はauthサービスへの検証クライアント。
	authValidator AuthValidator
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はアクセストークン検証用の共有秘密鍵。
	jwtSecret string
}

// NewServer は新しいユーザープロファイルサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg *config.Config) (*Server, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "/data/user.db"
	}
	sqlDB, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	store, err := NewStore(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("ストアの初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:        router,
		port:          cfg.Port,
		store:         store,
		authValidator: NewAuthServiceClient(cfg.AuthServiceURL),
		db:            sqlDB,
		jwtSecret:     cfg.JWTSecret,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// gatewayがプロキシ前にトークンを検証するが、直接アクセスに備えて
// このサービスも自らBearerトークンを再検証する。
func (s *Server) setupRoutes() {
	userGroup := s.router.Group("/user")
	userGroup.Use(middleware.JWTAuth(s.jwtSecret))
	{
		// プロファイル取得
		userGroup.GET("/profile", s.handleGetProfile())
		// プロファイル作成・更新
		userGroup.PUT("/profile", s.handleUpsertProfile())
		// プロファイル削除
		userGroup.DELETE("/profile", s.handleDeleteProfile())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "user"})
	})
}

// updateProfileRequest はプロファイル更新リクエストのJSON構造。
type updateProfileRequest struct {
	// FirstName は名。
	FirstName string `json:"firstName"`
	// LastName は姓。
	LastName string `json:"lastName"`
	// Bio は自己紹介文。
	Bio string `json:"bio"`
	// AvatarURL はアバター画像のURL。
	AvatarURL string `json:"avatarUrl"`
}

// profileResponse はプロファイルのJSONレスポンス構造。
type profileResponse struct {
	// UserID はプロファイルを所有するユーザーのID。
	UserID string `json:"userId"`
	// FirstName は名。
	FirstName string `json:"firstName"`
	// LastName は姓。
	LastName string `json:"lastName"`
	// Bio は自己紹介文。
	Bio string `json:"bio"`
	// AvatarURL はアバター画像のURL。
	AvatarURL string `json:"avatarUrl"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"createdAt"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updatedAt"`
}

// toProfileResponse はDB行をJSONレスポンスに変換する。
func toProfileResponse(p Profile) profileResponse {
	return profileResponse{
		UserID:    p.UserID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Bio:       p.Bio,
		AvatarURL: p.AvatarURL,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: p.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// handleGetProfile はプロファイル取得を処理するハンドラを返す。
func (s *Server) handleGetProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		profile, err := s.store.GetProfile(c.Request.Context(), userID)
		if errors.Is(err, ErrNotFound) {
			response.Fail(c, http.StatusNotFound, "プロファイルが見つかりません")
			return
		}
		if err != nil {
			log.Printf("プロファイル取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "プロファイルの取得に失敗しました")
			return
		}

		response.OK(c, http.StatusOK, toProfileResponse(profile))
	}
}

// handleUpsertProfile はプロファイルの作成・更新を処理するハンドラを返す。
// 書き込み前にauthサービスでトークンを再検証し、削除済みアカウントの
// プロファイルが作成されないようにする。
func (s *Server) handleUpsertProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		var req updateProfileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, fmt.Sprintf("リクエストが不正です: %v", err))
			return
		}

		bearerToken, _ := middleware.BearerToken(c)
		if err := s.authValidator.ValidateToken(c.Request.Context(), bearerToken); err != nil {
			log.Printf("トークン帯域外検証エラー: %v", err)
			response.FailFromError(c, err)
			return
		}

		profile := Profile{
			UserID:    userID,
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			Bio:       strings.TrimSpace(req.Bio),
			AvatarURL: strings.TrimSpace(req.AvatarURL),
		}
		if err := s.store.UpsertProfile(c.Request.Context(), profile); err != nil {
			log.Printf("プロファイル保存エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "プロファイルの保存に失敗しました")
			return
		}

		saved, err := s.store.GetProfile(c.Request.Context(), userID)
		if err != nil {
			log.Printf("プロファイル取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "保存後のプロファイルの取得に失敗しました")
			return
		}

		response.OK(c, http.StatusOK, toProfileResponse(saved))
	}
}

// handleDeleteProfile はプロファイル削除を処理するハンドラを返す。
func (s *Server) handleDeleteProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		if err := s.store.DeleteProfile(c.Request.Context(), userID); err != nil {
			if errors.Is(err, ErrNotFound) {
				response.Fail(c, http.StatusNotFound, "プロファイルが見つかりません")
				return
			}
			log.Printf("プロファイル削除エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "プロファイルの削除に失敗しました")
			return
		}

		response.OKWithMessage(c, http.StatusOK, "プロファイルを削除しました", nil)
	}
}
