package measurereport

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cqm/cqm/internal/domain/measure"
	"github.com/cqm/cqm/internal/platform/store"
	"github.com/cqm/cqm/pkg/pagination"
)

// Handler exposes measure evaluation and report retrieval over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group, fhirGroup *echo.Group) {
	api.POST("/measures/:id/$evaluate", h.EvaluateMeasure)
	api.POST("/measures/$evaluate", h.EvaluateDefinition)
	api.GET("/measure-reports", h.ListReports)
	api.GET("/measure-reports/:id", h.GetReport)

	fhirGroup.GET("/MeasureReport/:id", h.GetReportFHIR)
}

// EvaluateRequest is the body of an evaluate call against a registered
// measure.
type EvaluateRequest struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Method      Method    `json:"method"`
}

// EvaluateDefinitionRequest carries an inline measure definition.
type EvaluateDefinitionRequest struct {
	Definition  measure.Definition `json:"definition"`
	PeriodStart time.Time          `json:"period_start"`
	PeriodEnd   time.Time          `json:"period_end"`
	Method      Method             `json:"method"`
}

func (h *Handler) EvaluateMeasure(c echo.Context) error {
	def := measure.FindMeasure(c.Param("id"))
	if def == nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure not found")
	}

	var req EvaluateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.evaluate(c, def, req.PeriodStart, req.PeriodEnd, req.Method)
}

func (h *Handler) EvaluateDefinition(c echo.Context) error {
	var req EvaluateDefinitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.evaluate(c, &req.Definition, req.PeriodStart, req.PeriodEnd, req.Method)
}

func (h *Handler) evaluate(c echo.Context, def *measure.Definition, start, end time.Time, method Method) error {
	if method == "" {
		method = MethodMemory
	}
	period := measure.Period{Start: start, End: end}

	report, err := h.svc.Evaluate(c.Request().Context(), def, period, method)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *Handler) ListReports(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListReports(c.Request().Context(),
		c.QueryParam("measure"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	mr, err := h.svc.GetReport(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure report not found")
	}
	return c.JSON(http.StatusOK, mr)
}

func (h *Handler) GetReportFHIR(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	mr, err := h.svc.GetReport(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "measure report not found")
	}
	return c.JSON(http.StatusOK, mr.ToFHIR())
}

// toHTTPError maps the evaluation error taxonomy onto HTTP statuses.
// Definition errors are the caller's fault; store outages are transient and
// retryable; invariant violations are server bugs.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, measure.ErrInvalidDefinition):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrInvariantViolation):
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
