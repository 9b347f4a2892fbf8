package utils

import (
	"fmt"
	"math/rand"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

var letters = []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ")
var digits = "0123456789"

func GenerateRandomID(letterLength int, digitLength int) string {
	random_id := make([]rune, letterLength+digitLength)
	for i := range random_id {
		if i < letterLength {
			random_id[i] = letters[rand.Intn(len(letters))]
		} else {
			random_id[i] = rune(digits[rand.Intn(len(digits))])
		}
	}
	return string(random_id)
}

var shiftNames = []string{"早班", "中班", "晚班", "夜班", "全天班"}

func GenerateRandomShiftTemplate(branchID int64) *domain.ShiftTemplate {
	startHour := rand.Intn(24)
	// 时长 6~12 小时，超过 24 点即为跨夜班次
	endHour := (startHour + rand.Intn(7) + 6) % 24

	return &domain.ShiftTemplate{
		BranchID:      branchID,
		Name:          shiftNames[rand.Intn(len(shiftNames))] + GenerateRandomID(2, 2),
		StartTime:     fmt.Sprintf("%02d:%02d", startHour, rand.Intn(2)*30),
		EndTime:       fmt.Sprintf("%02d:%02d", endHour, rand.Intn(2)*30),
		FreeDayOfWeek: int32(rand.Intn(7) + 1),
		AnexoSigned:   rand.Intn(2) == 0,
	}
}

func GenerateRandomAssignment(vehicleNumber int32, templateID int64, from civil.Date, maxDays int) *domain.VehicleShiftAssignment {
	start := from.AddDays(rand.Intn(maxDays))
	return &domain.VehicleShiftAssignment{
		VehicleNumber:   vehicleNumber,
		ShiftTemplateID: templateID,
		StartDate:       start,
		EndDate:         start.AddDays(rand.Intn(maxDays) + 1),
		Priority:        int32(rand.Intn(100) + 1),
	}
}

func GenerateRandomOverride(vehicleNumber int32, statusConfigID int64, from civil.Date, maxDays int) *domain.VehicleStatusOverride {
	start := from.AddDays(rand.Intn(maxDays))
	return &domain.VehicleStatusOverride{
		VehicleNumber:  vehicleNumber,
		StatusConfigID: statusConfigID,
		StartDate:      start,
		EndDate:        start.AddDays(rand.Intn(5)),
		Comments:       "随机生成 " + GenerateRandomID(3, 3),
	}
}

func Today() civil.Date {
	return civil.DateOf(time.Now())
}
