package comparison

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/domain/measurereport"
	"github.com/cqm/cqm/internal/platform/store"
)

// Handler exposes dual-path comparison over HTTP.
type Handler struct {
	cmp *Comparator
}

func NewHandler(cmp *Comparator) *Handler {
	return &Handler{cmp: cmp}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/measures/:id/$compare", h.CompareMeasure)
}

// CompareRequest is the body of a compare call.
type CompareRequest struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

// partialFailureResponse keeps a one-sided failure distinguishable from a
// mismatch: "evaluation failed" carries the surviving report, while
// "results differ" is a 200 with populations_match=false.
type partialFailureResponse struct {
	Error           string                       `json:"error"`
	FailedPath      measurereport.Method         `json:"failed_path"`
	SurvivingReport *measurereport.MeasureReport `json:"surviving_report,omitempty"`
}

func (h *Handler) CompareMeasure(c echo.Context) error {
	def := measure.FindMeasure(c.Param("id"))
	if def == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	var req CompareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.cmp.Compare(c.Request().Context(),
		def, measure.Period{Start: req.PeriodStart, End: req.PeriodEnd})
	if err != nil {
		var partial *PartialEvaluationError
		switch {
		case errors.As(err, &partial):
			return c.JSON(http.StatusBadGateway, partialFailureResponse{
				Error:           partial.Error(),
				FailedPath:      partial.FailedPath,
				SurvivingReport: partial.Report,
			})
		case errors.Is(err, measure.ErrInvalidDefinition):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrUnavailable):
			return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, result)
}
