package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

type StatusConfig struct {
	ID          int64  `json:"id"`
	Label       string `json:"label"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

type VehicleStatusOverride struct {
	ID             int64      `json:"id"`
	VehicleNumber  int32      `json:"vehicleNumber"`
	StatusConfigID int64      `json:"statusConfigID"`
	StartDate      civil.Date `json:"startDate"` // 闭区间
	EndDate        civil.Date `json:"endDate"`
	Comments       string     `json:"comments"`
	CreatedAt      time.Time  `json:"createdAt"`

	// 来自 status_configs
	Label string `json:"label"`
	Color string `json:"color"`
}

func (o *VehicleStatusOverride) Covers(vehicle int32, date civil.Date) bool {
	return o.VehicleNumber == vehicle && !date.Before(o.StartDate) && !date.After(o.EndDate)
}
