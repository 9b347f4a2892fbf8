package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

type VehicleShiftAssignment struct {
	ID              int64      `json:"id"`
	VehicleNumber   int32      `json:"vehicleNumber"`
	ShiftTemplateID int64      `json:"shiftTemplateID"`
	StartDate       civil.Date `json:"startDate"` // 闭区间
	EndDate         civil.Date `json:"endDate"`
	Priority        int32      `json:"priority"` // 1-100，越大越优先
	CreatedAt       time.Time  `json:"createdAt"`

	// 连表查询得到的模板，模板不存在时为 nil
	Template *ShiftTemplate `json:"template,omitempty"`
}

// Covers 判断该分配是否覆盖某辆车的某一天
func (a *VehicleShiftAssignment) Covers(vehicle int32, date civil.Date) bool {
	return a.VehicleNumber == vehicle && !date.Before(a.StartDate) && !date.After(a.EndDate)
}
