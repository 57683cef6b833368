package tags

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kvisus/micronotes-back/internal/config"
	"github.com/Kvisus/micronotes-back/pkg/middleware"
	"github.com/Kvisus/micronotes-back/pkg/response"
	"github.com/Kvisus/micronotes-back/pkg/sqlitedb"
)

// hexColorPattern はタグの表示色として許可する16進カラーコード形式。
var hexColorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// Server はタグサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// store はタグの永続化先。
	store Store
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はアクセストークン検証用の共有秘密鍵。
	jwtSecret string
}

// NewServer は新しいタグサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(cfg *config.Config) (*Server, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "/data/tags.db"
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
		router:    router,
		port:      cfg.Port,
		store:     store,
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
// gatewayがプロキシ前にトークンを検証するが、直接アクセスに備えて
// このサービスも自らBearerトークンを再検証する。
func (s *Server) setupRoutes() {
	tagsGroup := s.router.Group("/tags")
	tagsGroup.Use(middleware.JWTAuth(s.jwtSecret))
	{
		// タグ作成
		tagsGroup.POST("", s.handleCreate())
		// タグ一覧取得
		tagsGroup.GET("", s.handleList())
		// notesサービス向けのタグID検証
		tagsGroup.POST("/validate", s.handleValidate())
		// タグ詳細取得
		tagsGroup.GET("/:id", s.handleGetByID())
		// タグ更新
		tagsGroup.PUT("/:id", s.handleUpdate())
		tagsGroup.PATCH("/:id", s.handleUpdate())
		// タグ削除
		tagsGroup.DELETE("/:id", s.handleDelete())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "tags"})
	})
}

// createTagRequest はタグ作成・更新リクエストのJSON構造。
type createTagRequest struct {
	// Name はタグ名。
	Name string `json:"name" binding:"required"`
	// Color は表示色（16進カラーコード、省略可）。
	Color string `json:"color"`
}

// validateTagsRequest はタグID検証リクエストのJSON構造。
type validateTagsRequest struct {
	// TagIDs は検証対象のタグIDのリスト。
	TagIDs []string `json:"tagIds" binding:"required"`
}

// tagResponse はタグのJSONレスポンス構造。
type tagResponse struct {
	// ID はタグの一意識別子。
	ID string `json:"id"`
	// UserID はタグを所有するユーザーのID。
	UserID string `json:"userId"`
	// Name はタグ名。
	Name string `json:"name"`
	// Color は表示色。
	Color string `json:"color,omitempty"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"createdAt"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updatedAt"`
}

// toTagResponse はDB行をJSONレスポンスに変換する。
func toTagResponse(t Tag) tagResponse {
	return tagResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		Name:      t.Name,
		Color:     t.Color,
		CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: t.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// handleCreate はタグ作成を処理するハンドラを返す。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		var req createTagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, fmt.Sprintf("リクエストが不正です: %v", err))
			return
		}

		if req.Color != "" && !hexColorPattern.MatchString(req.Color) {
			response.Fail(c, http.StatusBadRequest, "色の形式が不正です（例: #572115 または #f73）")
			return
		}

		tag := Tag{
			ID:     uuid.New().String(),
			UserID: userID,
			Name:   req.Name,
			Color:  req.Color,
		}
		if err := s.store.CreateTag(c.Request.Context(), tag); err != nil {
			if errors.Is(err, ErrTagExists) {
				response.Fail(c, http.StatusConflict, "同じ名前のタグが既に存在します")
				return
			}
			log.Printf("タグ作成エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "タグの作成に失敗しました")
			return
		}

		created, err := s.store.GetTagByID(c.Request.Context(), tag.ID)
		if err != nil {
			log.Printf("タグ取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "作成したタグの取得に失敗しました")
			return
		}

		response.OK(c, http.StatusCreated, toTagResponse(created))
	}
}

// handleList はユーザーのタグ一覧取得を処理するハンドラを返す。
// page/limitクエリでページングし、searchで名前の部分一致検索を行う。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		page, limit := paginationParams(c)
		search := c.Query("search")

		tagList, err := s.store.ListTags(c.Request.Context(), userID, search, limit, (page-1)*limit)
		if err != nil {
			log.Printf("タグ一覧取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "タグ一覧の取得に失敗しました")
			return
		}
		total, err := s.store.CountTags(c.Request.Context(), userID, search)
		if err != nil {
			log.Printf("タグ件数取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "タグ一覧の取得に失敗しました")
			return
		}

		responses := make([]tagResponse, 0, len(tagList))
		for _, t := range tagList {
			responses = append(responses, toTagResponse(t))
		}

		response.OK(c, http.StatusOK, gin.H{
			"tags":       responses,
			"total":      total,
			"page":       page,
			"totalPages": totalPages(total, limit),
		})
	}
}

// handleGetByID はタグ詳細取得を処理するハンドラを返す。
// 他のユーザーのタグは存在を隠すため404を返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		tag, ok := s.ownedTag(c, userID)
		if !ok {
			return
		}

		response.OK(c, http.StatusOK, toTagResponse(tag))
	}
}

// handleUpdate はタグ更新を処理するハンドラを返す。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		tag, ok := s.ownedTag(c, userID)
		if !ok {
			return
		}

		var req createTagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, fmt.Sprintf("リクエストが不正です: %v", err))
			return
		}
		if req.Color != "" && !hexColorPattern.MatchString(req.Color) {
			response.Fail(c, http.StatusBadRequest, "色の形式が不正です（例: #572115 または #f73）")
			return
		}

		tag.Name = req.Name
		tag.Color = req.Color
		if err := s.store.UpdateTag(c.Request.Context(), tag); err != nil {
			if errors.Is(err, ErrTagExists) {
				response.Fail(c, http.StatusConflict, "同じ名前のタグが既に存在します")
				return
			}
			log.Printf("タグ更新エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "タグの更新に失敗しました")
			return
		}

		updated, err := s.store.GetTagByID(c.Request.Context(), tag.ID)
		if err != nil {
			log.Printf("タグ取得エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "更新後のタグの取得に失敗しました")
			return
		}

		response.OK(c, http.StatusOK, toTagResponse(updated))
	}
}

// handleDelete はタグ削除を処理するハンドラを返す。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		tag, ok := s.ownedTag(c, userID)
		if !ok {
			return
		}

		if err := s.store.DeleteTag(c.Request.Context(), tag.ID); err != nil {
			log.Printf("タグ削除エラー: %v", err)
			response.Fail(c, http.StatusInternalServerError, "タグの削除に失敗しました")
			return
		}

		response.OKWithMessage(c, http.StatusOK, "タグを削除しました", nil)
	}
}

// validateTagsResponse はタグID検証のレスポンス構造。
// 呼び出し元はinvalidTagsが1件でもあれば操作全体を拒否する。
type validateTagsResponse struct {
	// ValidTags は呼び出し元ユーザーが所有する有効なタグ。
	ValidTags []tagResponse `json:"validTags"`
	// InvalidTags は存在しない・所有していない・形式不正のタグID。
	InvalidTags []string `json:"invalidTags"`
}

// handleValidate はタグIDのリストを有効・無効に分類するハンドラを返す。
// notesサービスがノートへのタグ付与前に同期的に呼び出す。
func (s *Server) handleValidate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			response.Fail(c, http.StatusUnauthorized, "ユーザーIDが取得できません")
			return
		}

		var req validateTagsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, fmt.Sprintf("リクエストが不正です: %v", err))
			return
		}

		result := validateTagsResponse{
			ValidTags:   []tagResponse{},
			InvalidTags: []string{},
		}
		for _, tagID := range req.TagIDs {
			// UUID形式でないIDはDBを引かずに無効と判定する
			if _, err := uuid.Parse(tagID); err != nil {
				result.InvalidTags = append(result.InvalidTags, tagID)
				continue
			}

			tag, err := s.store.GetTagByID(c.Request.Context(), tagID)
			if err != nil || tag.UserID != userID {
				result.InvalidTags = append(result.InvalidTags, tagID)
				continue
			}
			result.ValidTags = append(result.ValidTags, toTagResponse(tag))
		}

		response.OK(c, http.StatusOK, result)
	}
}

// ownedTag はパスパラメータのタグを取得し、所有者を確認する。
// 見つからない場合や他ユーザーのタグの場合は404を返してfalseを返す。
func (s *Server) ownedTag(c *gin.Context, userID string) (Tag, bool) {
	tagID := c.Param("id")
	tag, err := s.store.GetTagByID(c.Request.Context(), tagID)
	if errors.Is(err, ErrNotFound) {
		response.Fail(c, http.StatusNotFound, "タグが見つかりません")
		return Tag{}, false
	}
	if err != nil {
		log.Printf("タグ取得エラー: %v", err)
		response.Fail(c, http.StatusInternalServerError, "タグの取得に失敗しました")
		return Tag{}, false
	}
	if tag.UserID != userID {
		response.Fail(c, http.StatusNotFound, "タグが見つかりません")
		return Tag{}, false
	}
	return tag, true
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
