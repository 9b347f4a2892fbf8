package calendar

import (
	"context"
	"slices"
	"time"

	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/metrics"
)

// Aggregator 把 Resolve 展开到一个窗口和一组车辆上。
// 每次调用只对存储做批量查询，不会按天查询。
type Aggregator struct {
	store   Store
	metrics *metrics.Metrics
}

func NewAggregator(store Store, m *metrics.Metrics) *Aggregator {
	return &Aggregator{
		store:   store,
		metrics: m,
	}
}

type records struct {
	vehicles    []int32
	overrides   map[int32][]domain.VehicleStatusOverride
	assignments map[int32][]domain.VehicleShiftAssignment
}

func (a *Aggregator) load(ctx context.Context, w Window, scope Scope) (*records, error) {
	if w.Days <= 0 {
		return nil, ErrInvalidWindow
	}

	assignments, err := a.store.FetchAssignments(ctx, scope, w.From, w.Last(), w.BranchID)
	if err != nil {
		return nil, &StoreError{Op: "班次分配", Err: err}
	}

	var overrides []domain.VehicleStatusOverride
	switch {
	case scope.All() && w.BranchID != nil:
		// 分支下的车辆由该分支的班次分配决定，没有分配就没有需要查询的车辆
		if vehicles := vehiclesOfAssignments(assignments); len(vehicles) > 0 {
			overrides, err = a.store.FetchOverrides(ctx, Vehicles(vehicles...), w.From, w.Last())
		}
	default:
		overrides, err = a.store.FetchOverrides(ctx, scope, w.From, w.Last())
	}
	if err != nil {
		return nil, &StoreError{Op: "状态覆盖", Err: err}
	}

	rec := &records{
		overrides:   make(map[int32][]domain.VehicleStatusOverride),
		assignments: make(map[int32][]domain.VehicleShiftAssignment),
	}
	for _, o := range overrides {
		rec.overrides[o.VehicleNumber] = append(rec.overrides[o.VehicleNumber], o)
	}
	for _, as := range assignments {
		rec.assignments[as.VehicleNumber] = append(rec.assignments[as.VehicleNumber], as)
	}

	if scope.All() {
		for v := range rec.assignments {
			rec.vehicles = append(rec.vehicles, v)
		}
		for v := range rec.overrides {
			rec.vehicles = append(rec.vehicles, v)
		}
	} else {
		rec.vehicles = append(rec.vehicles, scope.Vehicles...)
	}
	slices.Sort(rec.vehicles)
	rec.vehicles = slices.Compact(rec.vehicles)

	return rec, nil
}

// Fleet 返回窗口内每一天所有车辆的有效状态，未分配的车辆不会出现在结果中
func (a *Aggregator) Fleet(ctx context.Context, w Window, scope Scope) (*FleetSummary, error) {
	start := time.Now()
	defer func() {
		a.metrics.ObserveAggregation("fleet", time.Since(start))
	}()

	rec, err := a.load(ctx, w, scope)
	if err != nil {
		return nil, err
	}

	summary := &FleetSummary{
		WindowID: w.ID(),
		Days:     make([]FleetDay, 0, w.Days),
	}
	for _, date := range w.Dates() {
		day := FleetDay{
			Date:    date,
			Entries: make([]domain.ResolvedDay, 0),
		}
		for _, v := range rec.vehicles {
			state := Resolve(v, date, rec.overrides[v], rec.assignments[v])
			if state.Kind() == domain.DayStateUnassigned {
				continue
			}
			day.Entries = append(day.Entries, domain.ResolvedDay{
				VehicleNumber: v,
				Date:          date,
				State:         state,
			})
		}
		day.Groups = GroupEntries(day.Entries)
		summary.Days = append(summary.Days, day)
	}

	return summary, nil
}

// Vehicle 返回一辆车在窗口内按日期排序的有效状态，包括未分配的日期
func (a *Aggregator) Vehicle(ctx context.Context, w Window, vehicle int32) ([]domain.ResolvedDay, error) {
	start := time.Now()
	defer func() {
		a.metrics.ObserveAggregation("vehicle", time.Since(start))
	}()

	rec, err := a.load(ctx, w, Vehicles(vehicle))
	if err != nil {
		return nil, err
	}

	days := make([]domain.ResolvedDay, 0, w.Days)
	for _, date := range w.Dates() {
		days = append(days, domain.ResolvedDay{
			VehicleNumber: vehicle,
			Date:          date,
			State:         Resolve(vehicle, date, rec.overrides[vehicle], rec.assignments[vehicle]),
		})
	}

	return days, nil
}

func vehiclesOfAssignments(assignments []domain.VehicleShiftAssignment) []int32 {
	vehicles := make([]int32, 0, len(assignments))
	for _, as := range assignments {
		vehicles = append(vehicles, as.VehicleNumber)
	}
	slices.Sort(vehicles)
	return slices.Compact(vehicles)
}
