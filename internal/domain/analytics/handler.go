package analytics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Handler exposes the engine over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

// Register mounts the analytics and alert routes.
func (h *Handler) Register(g *echo.Group) {
	an := g.Group("/analytics")
	an.GET("/summary", h.Summary)
	an.GET("/kpis", h.KPIs)
	an.GET("/trends", h.Trends)
	an.GET("/departments", h.CompareDepartments)
	an.GET("/branches", h.CompareBranches)
	an.GET("/peak-hours", h.PeakHours)
	an.GET("/peak-days", h.PeakWeekdays)
	an.GET("/forecast/admissions", h.ForecastAdmissions)
	an.GET("/forecast/occupancy", h.ForecastOccupancy)

	al := g.Group("/alerts")
	al.GET("/threshold", h.ThresholdAlerts)
	al.GET("/bottlenecks", h.Bottlenecks)
}

// parseFilter reads the shared query parameters. Invalid tokens are
// rejected with 400 before any computation.
func parseFilter(c echo.Context) (Filter, error) {
	var f Filter
	var err error
	if f.BranchIDs, err = parseIDs(c.QueryParam("branch_ids")); err != nil {
		return f, echo.NewHTTPError(http.StatusBadRequest, "invalid branch_ids: "+err.Error())
	}
	if f.DepartmentIDs, err = parseIDs(c.QueryParam("department_ids")); err != nil {
		return f, echo.NewHTTPError(http.StatusBadRequest, "invalid department_ids: "+err.Error())
	}
	if f.DateFrom, err = parseDate(c.QueryParam("date_from")); err != nil {
		return f, echo.NewHTTPError(http.StatusBadRequest, "invalid date_from: "+err.Error())
	}
	if f.DateTo, err = parseDate(c.QueryParam("date_to")); err != nil {
		return f, echo.NewHTTPError(http.StatusBadRequest, "invalid date_to: "+err.Error())
	}
	if f.Granularity, err = ParseGranularity(c.QueryParam("granularity")); err != nil {
		return f, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return f, nil
}

func parseIDs(raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parseWindow(c echo.Context) (int, error) {
	raw := c.QueryParam("window")
	if raw == "" {
		return DefaultMovingAverageWindow, nil
	}
	w, err := strconv.Atoi(raw)
	if err != nil || w < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "window must be a positive integer")
	}
	return w, nil
}

// respond wraps results with their warnings. An ErrInvalidRange from the
// engine maps to 400; anything else is a 500.
func respond(c echo.Context, data interface{}, warnings []Warning, err error) error {
	if err != nil {
		if errors.Is(err, ErrInvalidRange) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "analytics query failed")
	}
	body := map[string]interface{}{"data": data}
	if len(warnings) > 0 {
		body["warnings"] = warnings
	}
	return c.JSON(http.StatusOK, body)
}

func (h *Handler) Summary(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	out, warnings, err := h.svc.Summary(c.Request().Context(), f)
	return respond(c, out, warnings, err)
}

func (h *Handler) KPIs(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	rows, warnings, err := h.svc.KPIs(c.Request().Context(), f)
	return respond(c, rows, warnings, err)
}

func (h *Handler) Trends(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	metric := c.QueryParam("metric")
	if metric == "" {
		metric = "admissions"
	}
	points, warnings, err := h.svc.Trends(c.Request().Context(), f, metric)
	return respond(c, points, warnings, err)
}

func (h *Handler) CompareDepartments(c echo.Context) error {
	return h.comparison(c, h.svc.CompareDepartments)
}

func (h *Handler) CompareBranches(c echo.Context) error {
	return h.comparison(c, h.svc.CompareBranches)
}

func (h *Handler) comparison(c echo.Context, compare func(ctx context.Context, f Filter, metric string) ([]ComparisonRow, []Warning, error)) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	metric := c.QueryParam("metric")
	if metric == "" {
		metric = MetricAdmissionDischarges
	}
	rows, warnings, err := compare(c.Request().Context(), f, metric)
	return respond(c, rows, warnings, err)
}

func (h *Handler) PeakHours(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	buckets, warnings, err := h.svc.PeakHours(c.Request().Context(), f)
	return respond(c, buckets, warnings, err)
}

func (h *Handler) PeakWeekdays(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	buckets, warnings, err := h.svc.PeakWeekdays(c.Request().Context(), f)
	return respond(c, buckets, warnings, err)
}

func (h *Handler) ForecastAdmissions(c echo.Context) error {
	return h.forecast(c, h.svc.ForecastAdmissions)
}

func (h *Handler) ForecastOccupancy(c echo.Context) error {
	return h.forecast(c, h.svc.ForecastOccupancy)
}

func (h *Handler) forecast(c echo.Context, run func(ctx context.Context, f Filter, window int) (*ForecastResult, []Warning, error)) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	window, err := parseWindow(c)
	if err != nil {
		return err
	}
	res, warnings, err := run(c.Request().Context(), f, window)
	return respond(c, res, warnings, err)
}

func (h *Handler) ThresholdAlerts(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	alerts, warnings, err := h.svc.ThresholdAlerts(c.Request().Context(), f)
	return respond(c, alerts, warnings, err)
}

func (h *Handler) Bottlenecks(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	alerts, warnings, err := h.svc.Bottlenecks(c.Request().Context(), f)
	return respond(c, alerts, warnings, err)
}
