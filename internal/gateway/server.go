package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Kvisus/micronotes-back/internal/config"
	"github.com/Kvisus/micronotes-back/pkg/middleware"
	"github.com/Kvisus/micronotes-back/pkg/response"
)

// proxyTimeout は内部サービスへのプロキシ転送のタイムアウト。
// これを超えたリクエストは503で失敗させ、応答しないサービスが
// リクエストスロットを占有し続けることを防ぐ。
const proxyTimeout = 30 * time.Second

// Server はAPI GatewayサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// jwtSecret はアクセストークン検証用の共有秘密鍵。
	jwtSecret string
	// serviceURLs は内部サービスのURL。
	serviceURLs serviceURLConfig
	// httpClient はプロキシ転送用のHTTPクライアント。
	httpClient *http.Client
}

// serviceURLConfig は内部サービスのURL設定。
// プロセス起動時に確定し、以後変更されない。
type serviceURLConfig struct {
	Auth  string
	User  string
	Notes string
	Tags  string
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(cfg *config.Config) (*Server, error) {
	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{cfg.CORSOrigin}))

	s := &Server{
		router:    router,
		port:      cfg.Port,
		jwtSecret: cfg.JWTSecret,
		serviceURLs: serviceURLConfig{
			Auth:  cfg.AuthServiceURL,
			User:  cfg.UserServiceURL,
			Notes: cfg.NotesServiceURL,
			Tags:  cfg.TagsServiceURL,
		},
		httpClient: &http.Client{
			Timeout: proxyTimeout,
		},
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 認証ミドルウェアを全ルートに適用した後、外部プレフィックスを
// 内部サービスのパスに書き換えてプロキシする。
func (s *Server) setupRoutes() {
	s.router.Use(s.authenticate())

	// 内部サービスへのプロキシ（静的なプレフィックス→ベースURLの対応）
	s.proxyPrefix("/api/auth", s.serviceURLs.Auth, "/auth")
	s.proxyPrefix("/api/user", s.serviceURLs.User, "/user")
	s.proxyPrefix("/api/notes", s.serviceURLs.Notes, "/notes")
	s.proxyPrefix("/api/tags", s.serviceURLs.Tags, "/tags")

	// gateway自身が応答する公開エンドポイント
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
	s.router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"service": "micronotes-gateway"})
	})
}

// authenticate はgatewayの認証ミドルウェアを返す。
// 公開ルートは素通しし、それ以外はアクセストークンをローカルで検証する。
// 秘密鍵が未設定の場合はフェイルクローズして全リクエストに500を返す。
func (s *Server) authenticate() gin.HandlerFunc {
	verify := middleware.JWTAuth(s.jwtSecret)
	return func(c *gin.Context) {
		if isPublicRoute(c.Request.URL.Path) {
			c.Next()
			return
		}
		verify(c)
	}
}

// proxyPrefix は外部プレフィックス配下の全リクエストを内部サービスに転送する
// ルートを登録する。パスは外部プレフィックスを内部プレフィックスに
// 書き換えて転送する（例: /api/notes/123 → {notes}/notes/123）。
func (s *Server) proxyPrefix(externalPrefix, baseURL, internalPrefix string) {
	handler := func(c *gin.Context) {
		proxyURL := baseURL + internalPrefix + c.Param("path")
		if q := c.Request.URL.RawQuery; q != "" {
			proxyURL += "?" + q
		}
		s.doProxy(c, proxyURL)
	}
	s.router.Any(externalPrefix, func(c *gin.Context) {
		proxyURL := baseURL + internalPrefix
		if q := c.Request.URL.RawQuery; q != "" {
			proxyURL += "?" + q
		}
		s.doProxy(c, proxyURL)
	})
	s.router.Any(externalPrefix+"/*path", handler)
}

// doProxy はリクエストを内部サービスにプロキシする共通処理。
// メソッドとボディを転送し、検証済みの識別情報をX-User-ID/X-User-Email
// ヘッダーとして付与する。クライアントが直接指定した同名ヘッダーは
// 転送されない（新規リクエストに必要なヘッダーだけを設定するため）。
func (s *Server) doProxy(c *gin.Context, url string) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), proxyTimeout)
	defer cancel()

	var bodyReader io.Reader
	if c.Request.Body != nil {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, "リクエストボディの読み取りに失敗しました")
			return
		}
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, c.Request.Method, url, bodyReader)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, "プロキシリクエストの作成に失敗しました")
		return
	}

	if contentType := c.GetHeader("Content-Type"); contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.GetHeader("Authorization"); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	// 検証済みトークン由来の識別情報だけを転送する
	if userID := middleware.GetUserID(c); userID != "" {
		req.Header.Set(middleware.HeaderUserID, userID)
		req.Header.Set(middleware.HeaderUserEmail, middleware.GetUserEmail(c))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("プロキシエラー: url=%s, error=%v", url, err)
		response.Fail(c, http.StatusServiceUnavailable, "サービスが利用できません")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, "レスポンスの読み取りに失敗しました")
		return
	}

	// 内部サービスのレスポンスをステータスごとそのまま返す
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}
