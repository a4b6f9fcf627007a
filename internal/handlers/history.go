package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/example/grovia/internal/auth"
	"github.com/example/grovia/internal/usecase"
)

type historyHandler struct {
	service HistoryService
}

// historyListQuery leaves absent parameters nil so the service can apply
// its defaults. Present values must be in range.
type historyListQuery struct {
	Page  *int   `form:"page" binding:"omitempty,min=1"`
	Limit *int   `form:"limit" binding:"omitempty,min=1,max=100"`
	Sort  string `form:"sort" binding:"omitempty,oneof=newest oldest"`
}

func (q historyListQuery) toUsecase(timezone string) usecase.HistoryQuery {
	out := usecase.HistoryQuery{Sort: q.Sort, Timezone: timezone}
	if q.Page != nil {
		out.Page = *q.Page
	}
	if q.Limit != nil {
		out.Limit = *q.Limit
	}
	return out
}

func (h *historyHandler) list(c *gin.Context) {
	var query historyListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, http.StatusUnprocessableEntity, "invalid query: "+err.Error())
		return
	}
	userID, _ := auth.GetUserID(c.Request.Context())

	result, err := h.service.List(c.Request.Context(), userID, query.toUsecase(c.GetHeader("X-Timezone")))
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidHistoryQuery) {
			respondError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to load history")
		return
	}
	respondOK(c, result)
}

func (h *historyHandler) detail(c *gin.Context) {
	id, ok := historyID(c)
	if !ok {
		return
	}
	userID, _ := auth.GetUserID(c.Request.Context())

	result, err := h.service.Detail(c.Request.Context(), userID, id, c.GetHeader("X-Timezone"))
	if err != nil {
		writeHistoryError(c, err)
		return
	}
	respondOK(c, result)
}

func (h *historyHandler) delete(c *gin.Context) {
	id, ok := historyID(c)
	if !ok {
		return
	}
	userID, _ := auth.GetUserID(c.Request.Context())

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		writeHistoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "History deleted"})
}

func (h *historyHandler) stats(c *gin.Context) {
	userID, _ := auth.GetUserID(c.Request.Context())
	result, err := h.service.Stats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load statistics")
		return
	}
	respondOK(c, result)
}

func historyID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "invalid history id")
		return 0, false
	}
	return uint(id), true
}

func writeHistoryError(c *gin.Context, err error) {
	if errors.Is(err, usecase.ErrHistoryNotFound) {
		respondError(c, http.StatusNotFound, "History not found")
		return
	}
	respondError(c, http.StatusInternalServerError, "failed to access history")
}
