package auth

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kvisus/micronotes-back/internal/config"
	"github.com/Kvisus/micronotes-back/pkg/middleware"
	"github.com/Kvisus/micronotes-back/pkg/response"
	"github.com/Kvisus/micronotes-back/pkg/sqlitedb"
	"github.com/Kvisus/micronotes-back/pkg/token"
)

// tokenIssuer はこのサービスが発行するトークンのissクレーム。
const tokenIssuer = "micronotes-auth"

// Server は認証サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// service は認証プロトコルのオーケストレータ。
	service *Service
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はアクセストークン検証用の共有秘密鍵。
	jwtSecret string
}

// NewServer は新しい認証サーバーを生成する。
// SQLiteデータベースの初期化とマイグレーション適用を行う。
func NewServer(cfg *config.Config) (*Server, error) {
	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return nil, fmt.Errorf("JWT_SECRETとJWT_REFRESH_SECRETの設定が必要")
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "/data/auth.db"
	}
	sqlDB, err := sqlitedb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	store, err := NewStore(sqlDB)
	if err != nil {
		return nil, fmt.Errorf("ストアの初期化に失敗: %w", err)
	}

	accessCodec := token.NewCodec(cfg.JWTSecret, cfg.AccessTokenTTL, tokenIssuer)
	refreshCodec := token.NewCodec(cfg.JWTRefreshSecret, cfg.RefreshTokenTTL, tokenIssuer)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:    router,
		port:      cfg.Port,
		service:   NewService(store, accessCodec, refreshCodec, cfg.BcryptCost),
		db:        sqlDB,
		jwtSecret: cfg.JWTSecret,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	authGroup := s.router.Group("/auth")
	{
		// 認証不要のエンドポイント
		authGroup.POST("/register", s.handleRegister())
		authGroup.POST("/login", s.handleLogin())
		authGroup.POST("/refresh", s.handleRefresh())
		authGroup.POST("/logout", s.handleLogout())

		// 他サービス向けのトークン検証エンドポイント
		authGroup.GET("/validate", s.handleValidate())

		// 認証必須のエンドポイント
		authGroup.GET("/profile", middleware.JWTAuth(s.jwtSecret), s.handleProfile())
		authGroup.DELETE("/delete", middleware.JWTAuth(s.jwtSecret), s.handleDeleteAccount())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "auth"})
	})
}

// registerRequest は登録リクエストのJSON構造。
type registerRequest struct {
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
	// Password は平文のパスワード。ログには出力しない。
	Password string `json:"password"`
}

// refreshRequest はリフレッシュ・ログアウトリクエストのJSON構造。
type refreshRequest struct {
	// RefreshToken はリフレッシュトークンの値。
	RefreshToken string `json:"refreshToken"`
}

// handleRegister はユーザー登録を処理するハンドラを返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, "リクエストボディが不正です")
			return
		}

		if fieldErrors := validateRegister(req.Email, req.Password); fieldErrors != nil {
			response.FailValidation(c, fieldErrors)
			return
		}

		pair, err := s.service.Register(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			response.FailFromError(c, err)
			return
		}

		response.OK(c, http.StatusCreated, pair)
	}
}

// handleLogin はログインを処理するハンドラを返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, "リクエストボディが不正です")
			return
		}
		fieldErrors := make(map[string][]string)
		if req.Email == "" {
			fieldErrors["email"] = []string{"メールアドレスは必須です"}
		}
		if req.Password == "" {
			fieldErrors["password"] = []string{"パスワードは必須です"}
		}
		if len(fieldErrors) > 0 {
			response.FailValidation(c, fieldErrors)
			return
		}

		pair, err := s.service.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			response.FailFromError(c, err)
			return
		}

		response.OK(c, http.StatusOK, pair)
	}
}

// handleRefresh はトークン更新を処理するハンドラを返す。
// 使用されたリフレッシュトークンは失効し、新しいペアが発行される。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
			response.Fail(c, http.StatusBadRequest, "リフレッシュトークンが必要です")
			return
		}

		pair, err := s.service.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			response.FailFromError(c, err)
			return
		}

		response.OK(c, http.StatusOK, pair)
	}
}

// handleLogout はログアウトを処理するハンドラを返す。
// 存在しないトークンを指定しても成功として扱う（冪等）。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
			response.Fail(c, http.StatusBadRequest, "リフレッシュトークンが必要です")
			return
		}

		if err := s.service.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			response.FailFromError(c, err)
			return
		}

		response.OKWithMessage(c, http.StatusOK, "ログアウトしました", nil)
	}
}

// handleValidate はアクセストークンの帯域外検証を処理するハンドラを返す。
// userサービス等がgatewayを経由しない経路でトークンを再検証するために呼び出す。
func (s *Server) handleValidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := middleware.BearerToken(c)
		if !ok {
			response.Fail(c, http.StatusUnauthorized, "アクセストークンが必要です")
			return
		}

		claims, err := s.service.Validate(c.Request.Context(), tokenString)
		if err != nil {
			response.FailFromError(c, err)
			return
		}

		response.OK(c, http.StatusOK, gin.H{
			"userId": claims.UserID,
			"email":  claims.Email,
			"iat":    claims.IssuedAt.Unix(),
			"exp":    claims.ExpiresAt.Unix(),
		})
	}
}

// handleProfile は認証済みユーザーのプロファイル取得を処理するハンドラを返す。
func (s *Server) handleProfile() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		profile, err := s.service.GetProfile(c.Request.Context(), userID)
		if err != nil {
			response.FailFromError(c, err)
			return
		}

		response.OK(c, http.StatusOK, profile)
	}
}

// handleDeleteAccount はアカウント削除を処理するハンドラを返す。
func (s *Server) handleDeleteAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		if err := s.service.DeleteAccount(c.Request.Context(), userID); err != nil {
			response.FailFromError(c, err)
			return
		}

		response.OKWithMessage(c, http.StatusOK, "アカウントを削除しました", nil)
	}
}
