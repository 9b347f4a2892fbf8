package handler

import (
	"errors"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/livestatus"
)

func (h *Handler) enricher(session string) *livestatus.Enricher {
	opts := []livestatus.Option{
		livestatus.WithConcurrency(h.config.Tracking.Concurrency),
		livestatus.WithMetrics(h.metrics),
	}
	if len(h.config.Tracking.OnlineStatuses) > 0 {
		statuses := make([]domain.TrackingStatus, 0, len(h.config.Tracking.OnlineStatuses))
		for _, s := range h.config.Tracking.OnlineStatuses {
			statuses = append(statuses, domain.TrackingStatus(strings.ToUpper(strings.TrimSpace(s))))
		}
		opts = append(opts, livestatus.WithOnlineStatuses(statuses...))
	}

	return livestatus.New(h.lookup, h.caches(session), opts...)
}

func (h *Handler) AnnotateLiveStatus(w http.ResponseWriter, r *http.Request) {
	h.annotateLiveStatus(w, r, false)
}

// RefreshLiveStatus 清空会话缓存后重新查询
func (h *Handler) RefreshLiveStatus(w http.ResponseWriter, r *http.Request) {
	h.annotateLiveStatus(w, r, true)
}

func (h *Handler) annotateLiveStatus(w http.ResponseWriter, r *http.Request, refresh bool) {
	var req struct {
		From     string  `json:"from" validate:"required" label:"起始日期"`
		Days     int     `json:"days" validate:"required,gt=0" label:"天数"`
		BranchID *int64  `json:"branchId"`
		Vehicles []int32 `json:"vehicles" validate:"dive,gt=0" label:"车辆编号"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	from, err := civil.ParseDate(req.From)
	if err != nil {
		h.errorResponse(w, r, "起始日期格式错误，应为 YYYY-MM-DD")
		return
	}
	window, err := h.newWindow(from, req.Days, req.BranchID)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	// 没有指定车辆时查询窗口内有记录的所有车辆
	vehicles := req.Vehicles
	if len(vehicles) == 0 {
		summary, err := h.aggregator.Fleet(r.Context(), window, calendar.AllVehicles())
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}
		vehicles = summary.Vehicles()
	}

	session := r.Context().Value(SessionCtxKey).(string)
	enricher := h.enricher(session)
	if refresh {
		if err := enricher.Refresh(r.Context(), window.ID()); err != nil {
			h.internalServerError(w, r, err)
			return
		}
	}

	annotation, err := enricher.Annotate(r.Context(), window.ID(), vehicles)
	if err != nil {
		switch {
		case errors.Is(err, livestatus.ErrStaleWindow):
			h.errorResponse(w, r, err.Error())
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if annotation.Partial() {
		h.successResponse(w, r, "部分车辆的实时状态查询失败", annotation)
		return
	}
	h.successResponse(w, r, "查询实时状态成功", annotation)
}
