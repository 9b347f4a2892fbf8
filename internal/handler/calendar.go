package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

const defaultWindowDays = 7

type fleetCalendar struct {
	WindowID string              `json:"windowID"`
	Months   []calendar.Month    `json:"months"`
	Days     []calendar.FleetDay `json:"days"`
}

type vehicleCalendar struct {
	WindowID      string               `json:"windowID"`
	VehicleNumber int32                `json:"vehicleNumber"`
	Months        []calendar.Month     `json:"months"`
	Days          []domain.ResolvedDay `json:"days"`
}

func (h *Handler) newWindow(from civil.Date, days int, branchID *int64) (calendar.Window, error) {
	if days > h.config.Calendar.MaxDays {
		return calendar.Window{}, fmt.Errorf("窗口最多 %d 天", h.config.Calendar.MaxDays)
	}
	return calendar.NewWindow(from, days, branchID)
}

// windowFromQuery 解析 from、days、branchId 参数，from 缺省为今天，days 缺省为 7
func (h *Handler) windowFromQuery(r *http.Request) (calendar.Window, error) {
	q := r.URL.Query()

	from := h.today()
	if s := q.Get("from"); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			return calendar.Window{}, errors.New("起始日期格式错误，应为 YYYY-MM-DD")
		}
		from = d
	}

	days := defaultWindowDays
	if s := q.Get("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return calendar.Window{}, errors.New("天数必须是整数")
		}
		days = n
	}

	var branchID *int64
	if s := q.Get("branchId"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return calendar.Window{}, errors.New("无效的分部 id")
		}
		branchID = &id
	}

	return h.newWindow(from, days, branchID)
}

// parseVehicles 解析以逗号分隔的车辆编号
func parseVehicles(s string) ([]int32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	var vehicles []int32
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 32)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("无效的车辆编号: %s", part)
		}
		vehicles = append(vehicles, int32(n))
	}
	return vehicles, nil
}

func (h *Handler) fleetSummary(w http.ResponseWriter, r *http.Request) (calendar.Window, *calendar.FleetSummary, bool) {
	window, err := h.windowFromQuery(r)
	if err != nil {
		h.badRequest(w, r, err)
		return calendar.Window{}, nil, false
	}
	vehicles, err := parseVehicles(r.URL.Query().Get("vehicles"))
	if err != nil {
		h.badRequest(w, r, err)
		return calendar.Window{}, nil, false
	}

	summary, err := h.aggregator.Fleet(r.Context(), window, calendar.Vehicles(vehicles...))
	if err != nil {
		h.internalServerError(w, r, err)
		return calendar.Window{}, nil, false
	}

	// 带有会话标识时合并这个会话已经查询过的实时状态
	if session, ok := sessionOf(r); ok {
		statuses, err := h.enricher(session).Cached(r.Context(), summary.WindowID, summary.Vehicles())
		if err != nil {
			slog.Warn("无法读取实时状态缓存", "session", session, "error", err)
		} else {
			calendar.ApplyLiveStatus(summary, statuses)
		}
	}

	return window, summary, true
}

func (h *Handler) GetFleetCalendar(w http.ResponseWriter, r *http.Request) {
	window, summary, ok := h.fleetSummary(w, r)
	if !ok {
		return
	}

	h.successResponse(w, r, "获取车队日历成功", fleetCalendar{
		WindowID: summary.WindowID,
		Months:   calendar.MonthGrid(window),
		Days:     summary.Days,
	})
}

func (h *Handler) ExportFleetCalendar(w http.ResponseWriter, r *http.Request) {
	window, summary, ok := h.fleetSummary(w, r)
	if !ok {
		return
	}

	rows := calendar.Flatten(summary)
	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Record())
	}

	filename := fmt.Sprintf("fleet-%s-%dd.csv", window.From, window.Days)
	h.writeCSV(w, r, filename, calendar.ExportHeader, records)
}

func (h *Handler) GetVehicleCalendar(w http.ResponseWriter, r *http.Request) {
	vehicle := r.Context().Value(VehicleNumberCtxKey).(int32)

	window, err := h.windowFromQuery(r)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	days, err := h.aggregator.Vehicle(r.Context(), window, vehicle)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	if session, ok := sessionOf(r); ok {
		statuses, err := h.enricher(session).Cached(r.Context(), window.ID(), []int32{vehicle})
		if err != nil {
			slog.Warn("无法读取实时状态缓存", "session", session, "error", err)
		} else {
			calendar.ApplyLiveStatusToDays(days, statuses)
		}
	}

	h.successResponse(w, r, "获取车辆日历成功", vehicleCalendar{
		WindowID:      window.ID(),
		VehicleNumber: vehicle,
		Months:        calendar.MonthGrid(window),
		Days:          days,
	})
}
