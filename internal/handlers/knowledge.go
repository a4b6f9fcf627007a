package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/example/grovia/internal/usecase"
)

type knowledgeHandler struct {
	service KnowledgeService
}

func (h *knowledgeHandler) list(c *gin.Context) {
	search := strings.TrimSpace(c.Query("search"))
	category := strings.TrimSpace(c.Query("category"))

	result, err := h.service.Diseases(c.Request.Context(), search, category)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load diseases")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": result, "total": len(result)})
}

func (h *knowledgeHandler) detail(c *gin.Context) {
	result, err := h.service.Disease(c.Request.Context(), c.Param("disease_id"))
	if err != nil {
		if errors.Is(err, usecase.ErrDiseaseNotFound) {
			respondError(c, http.StatusNotFound, "Disease not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to load disease")
		return
	}
	respondOK(c, result)
}

func (h *knowledgeHandler) categories(c *gin.Context) {
	respondOK(c, usecase.Categories)
}

func (h *knowledgeHandler) severityLevels(c *gin.Context) {
	respondOK(c, usecase.SeverityLevels)
}
