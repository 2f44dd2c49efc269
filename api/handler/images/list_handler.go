package images

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/anoixa/image-scraper/api/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ImageListResponse 图片列表
type ImageListResponse struct {
	Query  string      `json:"query"`
	Images []*ImageDTO `json:"images"`
	Total  int64       `json:"total"`
	Limit  int         `json:"limit"`
}

// ListImages 返回查询词下最新的图片，GET /api/v1/images?query=&limit=
func (h *Handler) ListImages(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		common.RespondError(c, http.StatusBadRequest, "query is required")
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			common.RespondError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx := c.Request.Context()
	total, err := h.store.Count(ctx, query)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Failed to count images")
		common.RespondError(c, http.StatusInternalServerError, "Failed to get image list")
		return
	}

	records, err := h.store.ListRecent(ctx, query, limit)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("Failed to list images")
		common.RespondError(c, http.StatusInternalServerError, "Failed to get image list")
		return
	}

	common.RespondSuccess(c, ImageListResponse{
		Query:  query,
		Images: toImageDTOs(records),
		Total:  total,
		Limit:  limit,
	})
}
