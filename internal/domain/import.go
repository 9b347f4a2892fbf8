package domain

import "time"

// RawAssignmentRow 是导入文件中的一行，所有字段都还没有经过解析
type RawAssignmentRow struct {
	VehicleNumber string `json:"vehicleNumber"`
	BranchName    string `json:"branchName"`
	ShiftName     string `json:"shiftName"`
	StartDate     string `json:"startDate"`
	EndDate       string `json:"endDate"`
	Priority      string `json:"priority"`
}

type ImportSummary struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors"`
}

type ImportProgress struct {
	JobID     string `json:"jobID"`
	Processed int    `json:"processed"`
	Done      bool   `json:"done"`
	ImportSummary
}

type ImportJob struct {
	ID          string             `json:"id"`
	Rows        []RawAssignmentRow `json:"rows"`
	NotifyEmail string             `json:"notifyEmail"`
	CreatedAt   time.Time          `json:"createdAt"`
}
