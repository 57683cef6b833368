package notes

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kvisus/micronotes-back/internal/config"
	"github.com/Kvisus/micronotes-back/pkg/middleware"
	"github.com/Kvisus/micronotes-back/pkg/response"
	"github.com/Kvisus/micronotes-back/pkg/sqlitedb"
)

// Server はノートサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はノートの永続化先。
	store Store
	// tagValidator はtagsサービスへの検証クライアント。
	tagValidator TagValidator
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はアクセストークン検証用の共有秘密鍵。
	jwtSecret string
}

// NewServer は新しいノートサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg *config.Config) (*Server, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "/data/notes.db"
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
		router:       router,
		port:         cfg.Port,
		store:        store,
		tagValidator: NewTagServiceClient(cfg.TagsServiceURL),
		db:           sqlDB,
		jwtSecret:    cfg.JWTSecret,
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
	notesGroup := s.router.Group("/notes")
	notesGroup.Use(middleware.JWTAuth(s.jwtSecret))
	{
		// ノート作成
		notesGroup.POST("", s.handleCreate())
		// ノート一覧取得
		notesGroup.GET("", s.handleList())
		// ノート詳細取得
		notesGroup.GET("/:id", s.handleGetByID())
		// ノート更新
		notesGroup.PUT("/:id", s.handleUpdate())
		notesGroup.PATCH("/:id", s.handleUpdate())
		// ノート削除（論理削除）
		notesGroup.DELETE("/:id", s.handleDelete())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notes"})
	})
}

// createNoteRequest はノート作成リクエストのJSON構造。
type createNoteRequest struct {
	// Title はノートのタイトル。
	Title string `json:"title" binding:"required"`
	// Content はノートの本文。
	Content string `json:"content"`
	// TagIDs はノートに付与するタグのIDリスト（省略可）。
	TagIDs []string `json:"tagIds"`
}

// updateNoteRequest はノート更新リクエストのJSON構造。
// nilのフィールドは変更しない。
type updateNoteRequest struct {
	// Title はノートのタイトル。
	Title *string `json:"title"`
	// Content はノートの本文。
	Content *string `json:"content"`
	// TagIDs はノートに付与するタグのIDリスト。指定時は全入れ替え。
	TagIDs *[]string `json:"tagIds"`
}

// noteResponse はノートのJSONレスポンス構造。
type noteResponse struct {
	// ID はノートの一意識別子。
	ID string `json:"id"`
	// UserID はノートを所有するユーザーのID。
	UserID string `json:"userId"`
	// Title はノートのタイトル。
	Title string `json:"title"`
	// Content はノートの本文。
	Content string `json:"content"`
	// TagIDs はノートに付与されたタグのIDリスト。
	TagIDs []string `json:"tagIds"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"createdAt"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updatedAt"`
}

// toNoteResponse はDB行をJSONレスポンスに変換する。
func toNoteResponse(n Note) noteResponse {
	tagIDs := n.TagIDs
	if tagIDs == nil {
		tagIDs = []string{}
	}
	return noteResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Title:     n.Title,
		Content:   n.Content,
		TagIDs:    tagIDs,
		CreatedAt: n.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: n.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// handleCreate はノート作成を処理するハンドラを返す。
// タグIDが指定された場合はtagsサービスで検証し、1つでも無効なら
// ノート本体も作成しない。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		var req createNoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, fmt.Sprintf("リクエストが不正です: %v", err))
			return
		}

		if len(req.TagIDs) > 0 {
			if !s.validateTagsOrFail(c, req.TagIDs) {
				return
			}
		}

		note := Note{
			ID:      uuid.New().String(),
			UserID:  userID,
			Title:   strings.TrimSpace(req.Title),
			Content: strings.TrimSpace(req.Content),
		}
		if err := s.store.CreateNote(c.Request.Context(), note, req.TagIDs); err != nil {
			log.Printf("ノート作成エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "ノートの作成に失敗しました")
			return
		}

		created, err := s.store.GetNoteByID(c.Request.Context(), note.ID, userID)
		if err != nil {
			log.Printf("ノート取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "作成したノートの取得に失敗しました")
			return
		}

		response.OK(c, http.StatusCreated, toNoteResponse(created))
	}
}

// handleList はユーザーのノート一覧取得を処理するハンドラを返す。
// page/limitクエリでページングし、searchでタイトル・本文の部分一致検索を行う。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		page, limit := paginationParams(c)
		search := c.Query("search")

		noteList, err := s.store.ListNotes(c.Request.Context(), userID, search, limit, (page-1)*limit)
		if err != nil {
			log.Printf("ノート一覧取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "ノート一覧の取得に失敗しました")
			return
		}
		total, err := s.store.CountNotes(c.Request.Context(), userID, search)
		if err != nil {
			log.Printf("ノート件数取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "ノート一覧の取得に失敗しました")
			return
		}

		responses := make([]noteResponse, 0, len(noteList))
		for _, n := range noteList {
			responses = append(responses, toNoteResponse(n))
		}

		response.OK(c, http.StatusOK, gin.H{
			"notes":      responses,
			"total":      total,
			"page":       page,
			"totalPages": totalPages(total, limit),
		})
	}
}

// handleGetByID はノート詳細取得を処理するハンドラを返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		note, err := s.store.GetNoteByID(c.Request.Context(), c.Param("id"), userID)
		if errors.Is(err, ErrNotFound) {
			response.Fail(c, http.StatusNotFound, "ノートが見つかりません")
			return
		}
		if err != nil {
			log.Printf("ノート取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "ノートの取得に失敗しました")
			return
		}

		response.OK(c, http.StatusOK, toNoteResponse(note))
	}
}

// handleUpdate はノート更新を処理するハンドラを返す。
// tagIdsが指定された場合はtagsサービスで検証してから全入れ替えする。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		note, err := s.store.GetNoteByID(c.Request.Context(), c.Param("id"), userID)
		if errors.Is(err, ErrNotFound) {
			response.Fail(c, http.StatusNotFound, "ノートが見つかりません")
			return
		}
		if err != nil {
			log.Printf("ノート取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "ノートの取得に失敗しました")
			return
		}

		var req updateNoteRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, fmt.Sprintf("リクエストが不正です: %v", err))
			return
		}

		if req.Title != nil {
			note.Title = strings.TrimSpace(*req.Title)
		}
		if req.Content != nil {
			note.Content = strings.TrimSpace(*req.Content)
		}

		replaceTags := req.TagIDs != nil
		var tagIDs []string
		if replaceTags {
			tagIDs = *req.TagIDs
			if len(tagIDs) > 0 && !s.validateTagsOrFail(c, tagIDs) {
				return
			}
		}

		if err := s.store.UpdateNote(c.Request.Context(), note, tagIDs, replaceTags); err != nil {
			log.Printf("ノート更新エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "ノートの更新に失敗しました")
			return
		}

		updated, err := s.store.GetNoteByID(c.Request.Context(), note.ID, userID)
		if err != nil {
			log.Printf("ノート取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "更新後のノートの取得に失敗しました")
			return
		}

		response.OK(c, http.StatusOK, toNoteResponse(updated))
	}
}

// handleDelete はノートの論理削除を処理するハンドラを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		note, err := s.store.GetNoteByID(c.Request.Context(), c.Param("id"), userID)
		if errors.Is(err, ErrNotFound) {
			response.Fail(c, http.StatusNotFound, "ノートが見つかりません")
			return
		}
		if err != nil {
			log.Printf("ノート取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "ノートの取得に失敗しました")
			return
		}

		if err := s.store.SoftDeleteNote(c.Request.Context(), note.ID); err != nil {
			log.Printf("ノート削除エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "ノートの削除に失敗しました")
			return
		}

		response.OKWithMessage(c, http.StatusOK, "ノートを削除しました", nil)
	}
}

// validateTagsOrFail はtagsサービスでタグIDを検証する。
// 無効なタグがあればエラーレスポンスを書き込んでfalseを返す。
// 検証呼び出しには元のリクエストのBearerトークンを転送する。
func (s *Server) validateTagsOrFail(c *gin.Context, tagIDs []string) bool {
	bearerToken, _ := middleware.BearerToken(c)

	invalidTags, err := s.tagValidator.ValidateTags(c.Request.Context(), tagIDs, bearerToken)
	if err != nil {
		log.Printf("タグ検証エラー: %v", err)
		response.FailFromError(c, err)
		return false
	}
	if len(invalidTags) > 0 {
		response.Fail(c, http.StatusBadRequest,
			fmt.Sprintf("無効なタグIDが含まれています: %s", strings.Join(invalidTags, ", ")))
		return false
	}
	return true
}

// paginationParams はpage/limitクエリパラメータを解釈する。
func paginationParams(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 100 {
		limit = 50
	}
	return page, limit
}

// totalPages は総件数とページサイズから総ページ数を計算する。
func totalPages(total, limit int) int {
	if total == 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
