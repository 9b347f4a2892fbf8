package calendar

import (
	"fmt"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/utils"
)

// Month 是按月份切分后的日期，前导空白格由前端根据星期自行补齐
type Month struct {
	Label string       `json:"label"` // 2006-01
	Days  []civil.Date `json:"days"`
}

func MonthGrid(w Window) []Month {
	var months []Month
	for _, d := range w.Dates() {
		label := fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
		if len(months) == 0 || months[len(months)-1].Label != label {
			months = append(months, Month{Label: label})
		}
		months[len(months)-1].Days = append(months[len(months)-1].Days, d)
	}
	return months
}

var ExportHeader = []string{"date", "vehicle_number", "kind", "label", "start_time", "end_time", "overnight", "online"}

// ExportRow 是导出和截图用的扁平记录，每个 (日期, 车辆) 一行
type ExportRow struct {
	Date          civil.Date          `json:"date"`
	VehicleNumber int32               `json:"vehicleNumber"`
	Kind          domain.DayStateKind `json:"kind"`
	Label         string              `json:"label"`
	StartTime     string              `json:"startTime,omitempty"`
	EndTime       string              `json:"endTime,omitempty"`
	Overnight     bool                `json:"overnight"`
	Online        domain.Online       `json:"online,omitempty"`
}

func (r ExportRow) Record() []string {
	return []string{
		r.Date.String(),
		strconv.Itoa(int(r.VehicleNumber)),
		string(r.Kind),
		r.Label,
		r.StartTime,
		r.EndTime,
		strconv.FormatBool(r.Overnight),
		string(r.Online),
	}
}

func Flatten(s *FleetSummary) []ExportRow {
	var rows []ExportRow
	for _, day := range s.Days {
		for _, e := range day.Entries {
			rows = append(rows, exportRow(e))
		}
	}
	return rows
}

func FlattenDays(days []domain.ResolvedDay) []ExportRow {
	rows := make([]ExportRow, 0, len(days))
	for _, e := range days {
		rows = append(rows, exportRow(e))
	}
	return rows
}

func exportRow(e domain.ResolvedDay) ExportRow {
	label, _ := GroupKey(e.State)
	row := ExportRow{
		Date:          e.Date,
		VehicleNumber: e.VehicleNumber,
		Kind:          e.State.Kind(),
		Label:         label,
		Online:        e.Online,
	}
	if s, ok := e.State.(domain.ActiveShiftState); ok && s.TemplateKnown {
		row.StartTime = s.StartTime
		row.EndTime = s.EndTime
		row.Overnight = utils.IsOvernight(s.StartTime, s.EndTime)
	}
	return row
}
