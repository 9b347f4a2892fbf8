package calendar

import (
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/civil"
)

var ErrInvalidWindow = errors.New("窗口天数必须为正整数")

// Window 是一个日历查询窗口：从 From 开始（包含）的 Days 天
type Window struct {
	BranchID *int64
	From     civil.Date
	Days     int
}

func NewWindow(from civil.Date, days int, branchID *int64) (Window, error) {
	if days <= 0 {
		return Window{}, ErrInvalidWindow
	}
	if !from.IsValid() {
		return Window{}, fmt.Errorf("起始日期不合法: %v", from)
	}
	return Window{BranchID: branchID, From: from, Days: days}, nil
}

// Last 返回窗口内的最后一天
func (w Window) Last() civil.Date {
	return w.From.AddDays(w.Days - 1)
}

func (w Window) Contains(d civil.Date) bool {
	return !d.Before(w.From) && d.Before(w.From.AddDays(w.Days))
}

func (w Window) Dates() []civil.Date {
	dates := make([]civil.Date, w.Days)
	for i := range dates {
		dates[i] = w.From.AddDays(i)
	}
	return dates
}

// ID 是窗口的标识，分支筛选或日期范围变化都会得到不同的标识
func (w Window) ID() string {
	branch := "all"
	if w.BranchID != nil {
		branch = strconv.FormatInt(*w.BranchID, 10)
	}
	return fmt.Sprintf("branch=%s;from=%s;days=%d", branch, w.From, w.Days)
}

// Scope 是查询涉及的车辆范围，Vehicles 为空表示分支下的所有车辆
type Scope struct {
	Vehicles []int32
}

func AllVehicles() Scope {
	return Scope{}
}

func Vehicles(numbers ...int32) Scope {
	return Scope{Vehicles: numbers}
}

func (s Scope) All() bool {
	return len(s.Vehicles) == 0
}
