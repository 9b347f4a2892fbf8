package utils

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

const ClockLayout = "15:04"

// ParseClock 解析 HH:MM 格式的墙上时间
func ParseClock(s string) (time.Time, error) {
	return time.Parse(ClockLayout, s)
}

// IsOvernight 结束时间早于开始时间即为跨夜班次
func IsOvernight(startTime, endTime string) bool {
	start, err := ParseClock(startTime)
	if err != nil {
		return false
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return false
	}
	return end.Before(start)
}

// ShiftDuration 计算班次时长，跨夜班次会加上一天
func ShiftDuration(startTime, endTime string) (time.Duration, error) {
	start, err := ParseClock(startTime)
	if err != nil {
		return 0, err
	}
	end, err := ParseClock(endTime)
	if err != nil {
		return 0, err
	}
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return end.Sub(start), nil
}

func ValidateShiftTemplate(st *domain.ShiftTemplate) error {
	if st.Name == "" {
		return errors.New("班次名称不能为空")
	}
	start, err := ParseClock(st.StartTime)
	if err != nil {
		return fmt.Errorf("班次 %s 的开始时间格式错误", st.Name)
	}
	end, err := ParseClock(st.EndTime)
	if err != nil {
		return fmt.Errorf("班次 %s 的结束时间格式错误", st.Name)
	}
	// 结束时间早于开始时间是合法的跨夜班次，但两者不能相同
	if start.Equal(end) {
		return fmt.Errorf("班次 %s 的开始时间和结束时间不能相同", st.Name)
	}
	if st.FreeDayOfWeek < 1 || st.FreeDayOfWeek > 7 {
		return fmt.Errorf("班次 %s 的休息日必须在 1 到 7 之间", st.Name)
	}

	return nil
}

func ValidateDateRange(start, end civil.Date) error {
	if !start.IsValid() || !end.IsValid() {
		return errors.New("日期不合法")
	}
	if end.Before(start) {
		return errors.New("结束日期不能早于开始日期")
	}
	return nil
}

// ISOWeekday 返回 1（周一）到 7（周日）
func ISOWeekday(d civil.Date) int32 {
	wd := d.In(time.UTC).Weekday()
	if wd == time.Sunday {
		return 7
	}
	return int32(wd)
}
