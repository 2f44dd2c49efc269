package images

import (
	"errors"
	"net/http"
	"strings"

	"github.com/anoixa/image-scraper/api/common"
	"github.com/anoixa/image-scraper/database"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// GetRaw 返回入库时的原始字节，GET /api/v1/images/:checksum/raw
func (h *Handler) GetRaw(c *gin.Context) {
	checksum := strings.ToLower(c.Param("checksum"))
	if !isHexChecksum(checksum) {
		common.RespondError(c, http.StatusBadRequest, "invalid checksum")
		return
	}

	ctx := c.Request.Context()
	rec, err := h.store.FindByChecksum(ctx, checksum)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			common.RespondError(c, http.StatusNotFound, "Image not found")
			return
		}
		log.Error().Err(err).Str("checksum", checksum).Msg("Failed to find image")
		common.RespondError(c, http.StatusInternalServerError, "Failed to get image")
		return
	}

	rc, err := h.store.OpenBlob(ctx, rec)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			common.RespondError(c, http.StatusNotFound, "Image data not found")
			return
		}
		log.Error().Err(err).Str("checksum", checksum).Msg("Failed to open image data")
		common.RespondError(c, http.StatusInternalServerError, "Failed to get image")
		return
	}
	defer func() { _ = rc.Close() }()

	contentType := rec.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// 内容按 checksum 寻址，不会变化
	c.DataFromReader(http.StatusOK, rec.FileSize, contentType, rc, map[string]string{
		"Cache-Control": "public, max-age=31536000, immutable",
		"ETag":          `"` + checksum + `"`,
	})
}

func isHexChecksum(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
