package adminapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/labstack/echo/v4"

	"github.com/oasis-iglesia/oasis/internal/channel"
	"github.com/oasis-iglesia/oasis/internal/webserver"
	"github.com/oasis-iglesia/oasis/pkg/metrics"
)

const csvExportLimit = 10000

func registerEventRoutes() {
	webserver.ApiGET("/channel/events", listChannelEvents)
	webserver.ApiGET("/channel/events.csv", exportChannelEvents)
	webserver.ApiGET("/channel/metrics", getChannelMetrics)
}

// @Summary list webhook audit events
// @Tags Events
// @Security BearerAuth
// @Param event query string false "Filter by event name"
// @Param page query int false "Page number"
// @Param pageSize query int false "Items per page"
// @Success 200 {object} map[string]interface{}
// @Router /channel/events [get]
func listChannelEvents(c echo.Context) error {
	page, pageSize := parsePagination(c)
	rows, total, err := GetAppContext(c).Events().List(c.Request().Context(), c.QueryParam("event"), page, pageSize)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query channel events", err.Error())
	}
	return paged(c, rows, total, page, pageSize)
}

// @Summary export webhook audit events as csv
// @Tags Events
// @Security BearerAuth
// @Produce text/csv
// @Param event query string false "Filter by event name"
// @Success 200 {file} file
// @Router /channel/events.csv [get]
func exportChannelEvents(c echo.Context) error {
	rows, _, err := GetAppContext(c).Events().List(c.Request().Context(), c.QueryParam("event"), 1, csvExportLimit)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to query channel events", err.Error())
	}
	data, err := gocsv.MarshalBytes(&rows)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "EXPORT_FAILED", "Failed to encode csv", err.Error())
	}
	name := "channel-events-" + time.Now().Format("20060102-150405") + ".csv"
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+name+`"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", data)
}

// getChannelMetrics sums dispatch counters over the last ?hours (default 24).
// @Summary dispatch counters
// @Tags Events
// @Security BearerAuth
// @Param hours query int false "Window in hours (default 24)"
// @Success 200 {object} map[string]interface{}
// @Router /channel/metrics [get]
func getChannelMetrics(c echo.Context) error {
	hours, _ := strconv.Atoi(c.QueryParam("hours"))
	if hours <= 0 || hours > 24*30 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	return ok(c, map[string]interface{}{
		"hours":        hours,
		"send_ok":      metrics.Sum(channel.MetricSendOK, since),
		"send_failed":  metrics.Sum(channel.MetricSendFailed, since),
		"send_blocked": metrics.Sum(channel.MetricSendBlocked, since),
	})
}
