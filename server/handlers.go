package server

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"vidstream/config"
	"vidstream/constant"
	"vidstream/dto"
	"vidstream/entities"
	"vidstream/repository"
	"vidstream/service"
	"vidstream/token"
)

func addRoutes(r *gin.Engine, media *service.MediaService, codec *token.Codec, cfg *config.Config) {
	v1 := r.Group("/api/v1")

	v1.POST("/auth/login", loginHandler(media))

	v1.POST("/media", uploadHandler(media, codec, cfg))
	v1.GET("/media", listHandler(media, codec))
	v1.GET("/media/stats", statsHandler(media, codec))
	v1.GET("/media/:id", getHandler(media, codec))
	v1.PUT("/media/:id", updateHandler(media, codec))
	v1.DELETE("/media/:id", deleteHandler(media, codec))
	v1.GET("/media/:id/progress", progressHandler(media, codec))
	v1.POST("/media/:id/token", streamTokenHandler(media, codec))
	v1.GET("/media/:id/thumbnail", thumbnailHandler(media, codec))
	v1.GET("/media/stream/:id", streamHandler(media, codec))
}

// authenticate resolves the caller's session from the Authorization header.
// Handlers call it explicitly so every protected route names its own gate.
func authenticate(c *gin.Context, codec *token.Codec) (token.Identity, bool) {
	raw := bearerToken(c)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return token.Identity{}, false
	}
	ident, err := codec.VerifySession(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return token.Identity{}, false
	}
	return ident, true
}

// sessionIdentity is the non-failing variant for routes that also accept a
// stream token.
func sessionIdentity(c *gin.Context, codec *token.Codec) *token.Identity {
	raw := bearerToken(c)
	if raw == "" {
		return nil
	}
	ident, err := codec.VerifySession(raw)
	if err != nil {
		return nil
	}
	return &ident
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, entities.ErrValidation), errors.Is(err, entities.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, entities.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, entities.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entities.ErrNotReady), errors.Is(err, entities.ErrDeleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func loginHandler(media *service.MediaService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}
		signed, expiresAt, err := media.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.LoginResponse{Token: signed, ExpiresAt: expiresAt})
	}
}

func uploadHandler(media *service.MediaService, codec *token.Codec, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, codec)
		if !ok {
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.Media.MaxUploadBytes+uploadFormOverhead)

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds size limit (%d bytes)", cfg.Media.MaxUploadBytes)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
			return
		}
		defer file.Close()

		item, err := media.Upload(c.Request.Context(), ident, service.UploadInput{
			Title:       c.PostForm("title"),
			Description: c.PostForm("description"),
			FileName:    header.Filename,
			Size:        header.Size,
			Reader:      file,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusAccepted, dto.UploadResponse{
			ExternalID: item.ExternalID,
			Title:      item.Title,
			Status:     item.Status,
			Progress:   item.Progress,
			Message:    "upload accepted, processing queued",
		})
	}
}

// uploadFormOverhead leaves room for the multipart framing and text fields
// around the file part.
const uploadFormOverhead = 1 << 20

func listHandler(media *service.MediaService, codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, codec)
		if !ok {
			return
		}

		params := repository.ListParams{
			Page:    queryInt(c, "page", 1),
			PerPage: queryInt(c, "per_page", 20),
		}
		if raw := c.Query("status"); raw != "" {
			status := constant.MediaStatus(strings.ToUpper(raw))
			if !status.Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + strconv.Quote(raw)})
				return
			}
			params.Status = status
		}

		items, total, err := media.List(c.Request.Context(), ident, params)
		if err != nil {
			abortWithError(c, err)
			return
		}

		resp := dto.MediaListResponse{
			Items:   make([]dto.MediaResponse, 0, len(items)),
			Total:   total,
			Page:    params.Page,
			PerPage: params.PerPage,
			Pages:   int((total + int64(params.PerPage) - 1) / int64(params.PerPage)),
		}
		for _, item := range items {
			resp.Items = append(resp.Items, dto.NewMediaResponse(item))
		}
		c.JSON(http.StatusOK, resp)
	}
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func statsHandler(media *service.MediaService, codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, codec)
		if !ok {
			return
		}
		stats, err := media.Stats(c.Request.Context(), ident)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func getHandler(media *service.MediaService, codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, codec)
		if !ok {
			return
		}
		item, err := media.Get(c.Request.Context(), ident, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewMediaResponse(item))
	}
}

func updateHandler(media *service.MediaService, codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, codec)
		if !ok {
			return
		}
		var req dto.UpdateMediaRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Title != nil && *req.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "title cannot be empty"})
			return
		}
		item, err := media.UpdateMetadata(c.Request.Context(), ident, c.Param("id"), req.Title, req.Description)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.NewMediaResponse(item))
	}
}

func deleteHandler(media *service.MediaService, codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, codec)
		if !ok {
			return
		}
		if err := media.Delete(c.Request.Context(), ident, c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "media item deleted"})
	}
}

func progressHandler(media *service.MediaService, codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, codec)
		if !ok {
			return
		}
		item, err := media.Get(c.Request.Context(), ident, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.ProgressResponse{
			ExternalID: item.ExternalID,
			Status:     item.Status,
			Progress:   item.Progress,
			Log:        item.LogEntries(),
			Error:      item.ErrorDetail,
		})
	}
}

func streamTokenHandler(media *service.MediaService, codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, codec)
		if !ok {
			return
		}
		signed, expiresAt, item, err := media.IssueStreamToken(c.Request.Context(), ident, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, dto.StreamTokenResponse{
			Token:        signed,
			ExpiresAt:    expiresAt,
			StreamingURL: fmt.Sprintf("/api/v1/media/stream/%s?token=%s", item.ExternalID, signed),
		})
	}
}

func thumbnailHandler(media *service.MediaService, codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := authenticate(c, codec)
		if !ok {
			return
		}
		reader, info, err := media.OpenThumbnail(c.Request.Context(), ident, c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		defer reader.Close()

		c.Header("Content-Type", "image/jpeg")
		http.ServeContent(c.Writer, c.Request, "thumbnail.jpg", info.ModTime, reader)
	}
}

func streamHandler(media *service.MediaService, codec *token.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident := sessionIdentity(c, codec)
		streamToken := c.Query("token")

		item, err := media.AuthorizeStream(c.Request.Context(), ident, c.Param("id"), streamToken)
		if err != nil {
			abortWithError(c, err)
			return
		}

		reader, info, err := media.OpenStored(c.Request.Context(), item)
		if err != nil {
			abortWithError(c, err)
			return
		}
		defer reader.Close()

		name := item.OriginalName
		if item.StoredPath != nil {
			name = filepath.Base(*item.StoredPath)
		}
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", item.OriginalName))
		http.ServeContent(c.Writer, c.Request, name, info.ModTime, reader)
	}
}
