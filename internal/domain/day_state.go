package domain

import (
	"encoding/json"

	"cloud.google.com/go/civil"
)

type DayStateKind string

const (
	DayStateOverride    DayStateKind = "override"
	DayStateActiveShift DayStateKind = "activeShift"
	DayStateFreeDay     DayStateKind = "freeDay"
	DayStateUnassigned  DayStateKind = "unassigned"
)

// DayState 是某辆车某一天的唯一有效状态，只有下面四种实现
type DayState interface {
	Kind() DayStateKind
	dayState()
}

type OverrideState struct {
	OverrideID     int64  `json:"overrideID"`
	StatusConfigID int64  `json:"statusConfigID"`
	Label          string `json:"label"`
	Color          string `json:"color"`
}

type ActiveShiftState struct {
	AssignmentID int64  `json:"assignmentID"`
	TemplateID   int64  `json:"templateID"`
	Name         string `json:"name"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	// 模板查询失败时为 false，此时只有 TemplateID 可用
	TemplateKnown bool `json:"templateKnown"`
}

type FreeDayState struct {
	TemplateID int64 `json:"templateID"`
}

type UnassignedState struct{}

func (OverrideState) Kind() DayStateKind    { return DayStateOverride }
func (ActiveShiftState) Kind() DayStateKind { return DayStateActiveShift }
func (FreeDayState) Kind() DayStateKind     { return DayStateFreeDay }
func (UnassignedState) Kind() DayStateKind  { return DayStateUnassigned }

func (OverrideState) dayState()    {}
func (ActiveShiftState) dayState() {}
func (FreeDayState) dayState()     {}
func (UnassignedState) dayState()  {}

// Online 是实时在线状态，空字符串表示尚未查询
type Online string

const (
	OnlineUnset   Online = ""
	OnlineUnknown Online = "unknown"
	OnlineYes     Online = "online"
	OnlineNo      Online = "offline"
)

func OnlineOf(online bool) Online {
	if online {
		return OnlineYes
	}
	return OnlineNo
}

type ResolvedDay struct {
	VehicleNumber int32
	Date          civil.Date
	State         DayState
	Online        Online
}

func (d ResolvedDay) MarshalJSON() ([]byte, error) {
	if d.State == nil {
		d.State = UnassignedState{}
	}
	return json.Marshal(struct {
		VehicleNumber int32        `json:"vehicleNumber"`
		Date          civil.Date   `json:"date"`
		Kind          DayStateKind `json:"kind"`
		State         DayState     `json:"state"`
		Online        Online       `json:"online,omitempty"`
	}{
		VehicleNumber: d.VehicleNumber,
		Date:          d.Date,
		Kind:          d.State.Kind(),
		State:         d.State,
		Online:        d.Online,
	})
}
