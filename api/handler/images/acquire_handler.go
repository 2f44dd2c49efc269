package images

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anoixa/image-scraper/api/common"
	"github.com/anoixa/image-scraper/internal/scraper"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AcquireRequest 采集请求
type AcquireRequest struct {
	Query string `json:"query" binding:"required"`
	Num   int    `json:"num"`
}

// AcquireResponse 采集结果
type AcquireResponse struct {
	Images []*ImageDTO     `json:"images"`
	Report *scraper.Report `json:"report"`
}

// Acquire 确保查询词下有足够图片并返回，POST /api/v1/acquire
func (h *Handler) Acquire(c *gin.Context) {
	var body AcquireRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	query := strings.TrimSpace(body.Query)
	if query == "" {
		common.RespondError(c, http.StatusBadRequest, "query is required")
		return
	}
	num := body.Num
	if num <= 0 {
		num = defaultListLimit
	}
	if num > maxAcquireCount {
		common.RespondError(c, http.StatusBadRequest, "num is too large")
		return
	}

	res, err := h.acquirer.EnsureImages(c.Request.Context(), query, num)
	if err != nil {
		switch {
		case errors.Is(err, scraper.ErrDiscovery):
			log.Warn().Err(err).Str("query", query).Msg("Acquisition failed")
			common.RespondError(c, http.StatusBadGateway, "Image search is unavailable")
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			common.RespondError(c, http.StatusServiceUnavailable, "Request canceled")
		default:
			log.Error().Err(err).Str("query", query).Msg("Acquisition failed")
			common.RespondError(c, http.StatusInternalServerError, "Failed to acquire images")
		}
		return
	}

	common.RespondSuccess(c, AcquireResponse{
		Images: toImageDTOs(res.Records),
		Report: &res.Report,
	})
}
