package handler

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/campusconnect/campusconnect-api/pkg/errors"
	"github.com/campusconnect/campusconnect-api/pkg/response"
	"github.com/campusconnect/campusconnect-api/pkg/storage"
)

// ExportHandler serves stored export files behind signed tokens.
type ExportHandler struct {
	files  *storage.ExportStore
	signer *storage.SignedURLSigner
}

// NewExportHandler constructs the handler.
func NewExportHandler(files *storage.ExportStore, signer *storage.SignedURLSigner) *ExportHandler {
	return &ExportHandler{files: files, signer: signer}
}

// Download godoc
// @Summary Download an export via its signed token
// @Tags Exports
// @Param token path string true "Signed token"
// @Success 200
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	_, relPath, _, err := h.signer.Parse(c.Param("token"), false)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link"))
		return
	}

	file, err := h.files.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck

	contentType := "application/octet-stream"
	switch filepath.Ext(relPath) {
	case ".csv":
		contentType = "text/csv"
	case ".pdf":
		contentType = "application/pdf"
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", "attachment; filename=\""+filepath.Base(relPath)+"\"")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
