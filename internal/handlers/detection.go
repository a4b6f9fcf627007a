package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/grovia/internal/auth"
	"github.com/example/grovia/internal/logging"
	"github.com/example/grovia/internal/usecase"
)

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// multipartOverhead leaves room for form boundaries and headers on top of
// the file cap.
const multipartOverhead = 1 << 20

type detectionHandler struct {
	detector  Detector
	model     ModelDescriber
	knowledge KnowledgeService
	maxSize   int64
	logger    *zap.Logger
}

func (h *detectionHandler) detect(c *gin.Context) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxSize+multipartOverhead)
	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		respondError(c, http.StatusBadRequest, "image file is required")
		return
	}

	if status, detail := h.checkUpload(file); status != http.StatusOK {
		respondError(c, status, detail)
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "unable to open image")
		return
	}
	defer src.Close()

	result, err := h.detector.Detect(c.Request.Context(), usecase.Submission{
		UserID:   userID,
		Filename: file.Filename,
		Timezone: c.GetHeader("X-Timezone"),
		Content:  src,
	})
	if err != nil {
		h.writeDetectError(c, err)
		return
	}
	respondOK(c, result)
}

func (h *detectionHandler) checkUpload(file *multipart.FileHeader) (int, string) {
	if file.Size > h.maxSize {
		return http.StatusRequestEntityTooLarge, "File too large"
	}
	if file.Size == 0 {
		return http.StatusBadRequest, "Empty file"
	}
	contentType := strings.ToLower(file.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, "image/") {
		return http.StatusUnsupportedMediaType, "File must be an image"
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(file.Filename))] {
		return http.StatusBadRequest, "Invalid file type. Allowed: jpg, jpeg, png, webp"
	}
	return http.StatusOK, ""
}

func (h *detectionHandler) writeDetectError(c *gin.Context, err error) {
	var rejected *usecase.AdmissionError
	if errors.As(err, &rejected) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success":          false,
			"detail":           rejected.Verdict.Reason,
			"suggestion":       rejected.Verdict.Suggestion,
			"detected_content": rejected.Verdict.DetectedContent,
			"confidence":       rejected.Verdict.Confidence,
		})
		return
	}

	requestID := logging.RequestIDFromContext(c.Request.Context())
	stage, _ := logging.FailedOperation(err)
	logging.WithOperation(h.logger, "handlers.detect", requestID).Error("detection failed",
		zap.String("failed_operation", stage), logging.ErrorField(err))
	respondError(c, http.StatusInternalServerError, "Detection failed: "+err.Error())
}

func (h *detectionHandler) treatment(c *gin.Context) {
	respondOK(c, h.knowledge.Treatment(c.Request.Context(), c.Param("disease_id")))
}

func (h *detectionHandler) modelInfo(c *gin.Context) {
	respondOK(c, h.model.Info())
}
