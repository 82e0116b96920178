package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	Session     string `json:"session"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storageStatus := "ok"
	if _, _, err := h.store.Get(ctx, h.cfg.Storage.ThemeKey); err != nil {
		storageStatus = "error"
		h.log.Error().Err(err).Msg("storage check failed")
	}

	snap := h.sessions.Snapshot()
	sessionStatus := "anonymous"
	switch {
	case snap.Loading:
		sessionStatus = "loading"
	case snap.IsLoggedIn:
		sessionStatus = "authenticated"
	}

	c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Storage:     storageStatus,
		Session:     sessionStatus,
		Environment: h.cfg.Environment,
	})
}
