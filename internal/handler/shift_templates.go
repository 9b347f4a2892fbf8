package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/utils"
)

type shiftTemplateView struct {
	domain.ShiftTemplate
	Overnight       bool  `json:"overnight"`
	DurationMinutes int64 `json:"durationMinutes"`
}

func newShiftTemplateView(st domain.ShiftTemplate) shiftTemplateView {
	v := shiftTemplateView{
		ShiftTemplate: st,
		Overnight:     utils.IsOvernight(st.StartTime, st.EndTime),
	}
	if d, err := utils.ShiftDuration(st.StartTime, st.EndTime); err == nil {
		v.DurationMinutes = int64(d / time.Minute)
	}
	return v
}

func (h *Handler) GetShiftTemplates(w http.ResponseWriter, r *http.Request) {
	var branchID *int64
	if s := r.URL.Query().Get("branchId"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			h.errorResponse(w, r, "无效的分部 id")
			return
		}
		branchID = &id
	}

	templates, err := h.repository.FetchShiftTemplates(r.Context(), branchID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	views := make([]shiftTemplateView, 0, len(templates))
	for _, st := range templates {
		views = append(views, newShiftTemplateView(st))
	}

	h.successResponse(w, r, "获取班次模板成功", views)
}

func (h *Handler) CreateShiftTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BranchID      int64  `json:"branchID" validate:"required,gt=0" label:"分部"`
		Name          string `json:"name" validate:"required" label:"班次名称"`
		StartTime     string `json:"startTime" validate:"required" label:"开始时间"`
		EndTime       string `json:"endTime" validate:"required" label:"结束时间"`
		FreeDayOfWeek int32  `json:"freeDayOfWeek" validate:"required,gte=1,lte=7" label:"休息日"`
		AnexoSigned   bool   `json:"anexoSigned"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	st := &domain.ShiftTemplate{
		BranchID:      req.BranchID,
		Name:          req.Name,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		FreeDayOfWeek: req.FreeDayOfWeek,
		AnexoSigned:   req.AnexoSigned,
	}
	if err := utils.ValidateShiftTemplate(st); err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateShiftTemplate(r.Context(), st); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch pgErr.ConstraintName {
			case "shift_templates_branch_id_name_key":
				h.errorResponse(w, r, "该分部下已存在同名班次")
			case "shift_templates_branch_id_fkey":
				h.errorResponse(w, r, "分部不存在")
			default:
				h.internalServerError(w, r, err)
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "创建班次模板成功", newShiftTemplateView(*st))
}

func (h *Handler) GetAllStatusConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.repository.GetAllStatusConfigs(r.Context())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取所有状态配置成功", configs)
}
