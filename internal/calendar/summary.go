package calendar

import (
	"cmp"
	"fmt"
	"slices"

	"cloud.google.com/go/civil"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

const (
	UnspecifiedShiftKey = "未指定班次"
	FreeDayKey          = "休息日"
)

type FleetSummary struct {
	WindowID string     `json:"windowID"`
	Days     []FleetDay `json:"days"`
}

type FleetDay struct {
	Date    civil.Date           `json:"date"`
	Entries []domain.ResolvedDay `json:"entries"` // 按车辆编号排序
	Groups  []Group              `json:"groups"`
}

// Group 是同一天内解析结果相同的车辆
type Group struct {
	Key      string              `json:"key"`
	Kind     domain.DayStateKind `json:"kind"`
	Color    string              `json:"color,omitempty"`
	Vehicles []int32             `json:"vehicles"`
}

// GroupKey 返回状态在日历上的分组键和颜色
func GroupKey(state domain.DayState) (string, string) {
	switch s := state.(type) {
	case domain.OverrideState:
		return s.Label, s.Color
	case domain.ActiveShiftState:
		if !s.TemplateKnown {
			return UnspecifiedShiftKey, ""
		}
		return fmt.Sprintf("%s (%s-%s)", s.Name, s.StartTime, s.EndTime), ""
	case domain.FreeDayState:
		return FreeDayKey, ""
	default:
		return "", ""
	}
}

var kindRank = map[domain.DayStateKind]int{
	domain.DayStateOverride:    0,
	domain.DayStateActiveShift: 1,
	domain.DayStateFreeDay:     2,
}

// GroupEntries 按分组键归并同一天的条目，组内车辆按编号升序
func GroupEntries(entries []domain.ResolvedDay) []Group {
	index := make(map[string]int)
	groups := make([]Group, 0)

	for _, e := range entries {
		if e.State.Kind() == domain.DayStateUnassigned {
			continue
		}
		key, color := GroupKey(e.State)
		// 不同种类的状态即使键相同也不能合并
		id := string(e.State.Kind()) + "\x00" + key
		i, exists := index[id]
		if !exists {
			i = len(groups)
			index[id] = i
			groups = append(groups, Group{Key: key, Kind: e.State.Kind(), Color: color})
		}
		groups[i].Vehicles = append(groups[i].Vehicles, e.VehicleNumber)
	}

	for i := range groups {
		slices.Sort(groups[i].Vehicles)
	}
	slices.SortFunc(groups, func(x, y Group) int {
		if c := cmp.Compare(kindRank[x.Kind], kindRank[y.Kind]); c != 0 {
			return c
		}
		return cmp.Compare(x.Key, y.Key)
	})

	return groups
}

// Vehicles 返回摘要中出现过的所有车辆编号
func (s *FleetSummary) Vehicles() []int32 {
	var vehicles []int32
	for _, day := range s.Days {
		for _, e := range day.Entries {
			vehicles = append(vehicles, e.VehicleNumber)
		}
	}
	slices.Sort(vehicles)
	return slices.Compact(vehicles)
}

// ApplyLiveStatus 把实时在线状态合并到摘要中，statuses 中没有的车辆保持原值
func ApplyLiveStatus(s *FleetSummary, statuses map[int32]domain.Online) {
	for i := range s.Days {
		ApplyLiveStatusToDays(s.Days[i].Entries, statuses)
	}
}

func ApplyLiveStatusToDays(days []domain.ResolvedDay, statuses map[int32]domain.Online) {
	for i := range days {
		if online, ok := statuses[days[i].VehicleNumber]; ok {
			days[i].Online = online
		}
	}
}
