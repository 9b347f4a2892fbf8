package calendar

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

// Store 提供原始的区间记录，每个方法都是对整个区间的一次批量查询。
// from 和 to 都是包含在内的日期，返回与 [from, to] 有交集的记录。
type Store interface {
	FetchOverrides(ctx context.Context, scope Scope, from, to civil.Date) ([]domain.VehicleStatusOverride, error)
	FetchAssignments(ctx context.Context, scope Scope, from, to civil.Date, branchID *int64) ([]domain.VehicleShiftAssignment, error)
	FetchShiftTemplates(ctx context.Context, branchID *int64) ([]domain.ShiftTemplate, error)
}

// StoreError 表示批量查询失败，整个聚合调用随之失败
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("查询%s失败: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
