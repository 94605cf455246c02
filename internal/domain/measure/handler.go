package measure

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler exposes the measure registry over HTTP.
type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/measures", h.ListMeasures)
	api.GET("/measures/:id", h.GetMeasure)
}

// ListMeasures returns all predefined measure definitions.
func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// GetMeasure returns a single measure definition by ID.
func (h *Handler) GetMeasure(c echo.Context) error {
	def := FindMeasure(c.Param("id"))
	if def == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}
	return c.JSON(http.StatusOK, def)
}
