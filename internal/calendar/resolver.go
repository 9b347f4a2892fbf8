package calendar

import (
	"cmp"
	"slices"

	"cloud.google.com/go/civil"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/utils"
)

// Resolve 计算某辆车在某一天的有效状态。
//
// 覆盖该日期的状态覆盖优先于任何班次；多个覆盖同时生效时取最早创建的。
// 其余情况下在覆盖该日期的班次分配中，排除当天恰好是其模板休息日的分配，
// 取优先级最高的一个，优先级相同时取最早创建的。所有分配都因休息日被排除时
// 返回休息日，没有任何分配时返回未分配。
func Resolve(vehicle int32, date civil.Date, overrides []domain.VehicleStatusOverride, assignments []domain.VehicleShiftAssignment) domain.DayState {
	var override *domain.VehicleStatusOverride
	for i := range overrides {
		o := &overrides[i]
		if !o.Covers(vehicle, date) {
			continue
		}
		if override == nil || createdBefore(o.CreatedAt.UnixNano(), o.ID, override.CreatedAt.UnixNano(), override.ID) {
			override = o
		}
	}
	if override != nil {
		return domain.OverrideState{
			OverrideID:     override.ID,
			StatusConfigID: override.StatusConfigID,
			Label:          override.Label,
			Color:          override.Color,
		}
	}

	weekday := utils.ISOWeekday(date)

	var active, excluded []*domain.VehicleShiftAssignment
	for i := range assignments {
		a := &assignments[i]
		if !a.Covers(vehicle, date) {
			continue
		}
		// 休息日按分配各自的模板判断，而不是全局判断
		if a.Template != nil && a.Template.FreeDayOfWeek == weekday {
			excluded = append(excluded, a)
		} else {
			active = append(active, a)
		}
	}

	if len(active) > 0 {
		best := slices.MinFunc(active, func(x, y *domain.VehicleShiftAssignment) int {
			if c := cmp.Compare(y.Priority, x.Priority); c != 0 {
				return c
			}
			return compareCreated(x.CreatedAt.UnixNano(), x.ID, y.CreatedAt.UnixNano(), y.ID)
		})
		return activeShift(best)
	}

	if len(excluded) > 0 {
		first := slices.MinFunc(excluded, func(x, y *domain.VehicleShiftAssignment) int {
			return compareCreated(x.CreatedAt.UnixNano(), x.ID, y.CreatedAt.UnixNano(), y.ID)
		})
		return domain.FreeDayState{TemplateID: first.ShiftTemplateID}
	}

	return domain.UnassignedState{}
}

func activeShift(a *domain.VehicleShiftAssignment) domain.ActiveShiftState {
	state := domain.ActiveShiftState{
		AssignmentID: a.ID,
		TemplateID:   a.ShiftTemplateID,
	}
	if a.Template != nil {
		state.Name = a.Template.Name
		state.StartTime = a.Template.StartTime
		state.EndTime = a.Template.EndTime
		state.TemplateKnown = true
	}
	return state
}

func compareCreated(xCreated, xID, yCreated, yID int64) int {
	if c := cmp.Compare(xCreated, yCreated); c != 0 {
		return c
	}
	return cmp.Compare(xID, yID)
}

func createdBefore(xCreated, xID, yCreated, yID int64) bool {
	return compareCreated(xCreated, xID, yCreated, yID) < 0
}
