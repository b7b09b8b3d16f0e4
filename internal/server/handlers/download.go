package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"github.com/nadimxht/stem/internal/core/job"
	"github.com/nadimxht/stem/internal/core/service"
	"github.com/rs/zerolog/log"
)

// DownloadHandler streams stem files for completed jobs. Registered as a
// plain echo route: huma adds nothing for raw file responses.
type DownloadHandler struct {
	svc *service.Service
}

func NewDownloadHandler(svc *service.Service) *DownloadHandler {
	return &DownloadHandler{svc: svc}
}

// RegisterRoutes mounts GET /download/:id/:stem.
func (h *DownloadHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/download/:id/:stem", h.ServeStem)
}

func (h *DownloadHandler) ServeStem(c echo.Context) error {
	jobID := c.Param("id")
	stem := c.Param("stem")

	path, err := h.svc.StemPath(c.Request().Context(), jobID, stem)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStemName) {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid stem name")
		}
		if errors.Is(err, job.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "stem not found")
		}
		log.Error().Err(err).Str("job_id", jobID).Str("stem", stem).Msg("stem lookup failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to resolve stem")
	}

	f, err := os.Open(path)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "stem not found")
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "stem not found")
	}

	name := filepath.Base(path)
	c.Response().Header().Set(echo.HeaderContentType, "audio/wav")
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))

	// ServeContent handles Range requests automatically.
	http.ServeContent(c.Response(), c.Request(), name, info.ModTime(), f)
	return nil
}
