package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/utils"
)

// Writer 负责把一条分配写入存储
type Writer interface {
	CreateVehicleShiftAssignment(ctx context.Context, a *domain.VehicleShiftAssignment) error
}

// ProgressFunc 在每一行处理完后调用，summary 是到目前为止的统计
type ProgressFunc func(processed int, summary domain.ImportSummary)

// ValidationError 表示某一行无法导入，Row 是文件中的行号（表头为第 1 行）
type ValidationError struct {
	Row    int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("第 %d 行: %s", e.Row, e.Reason)
}

type Importer struct {
	writer     Writer
	validate   *validator.Validate
	translator ut.Translator
	metrics    *metrics.Metrics
}

func New(writer Writer, m *metrics.Metrics) (*Importer, error) {
	validate, trans, err := utils.NewValidator()
	if err != nil {
		return nil, err
	}

	return &Importer{
		writer:     writer,
		validate:   validate,
		translator: trans,
		metrics:    m,
	}, nil
}

type assignmentRow struct {
	VehicleNumber int32  `label:"车辆编号" validate:"gt=0"`
	BranchName    string `label:"分部"`
	ShiftName     string `label:"班次名称" validate:"required"`
	StartDate     civil.Date
	EndDate       civil.Date
	Priority      int32 `label:"优先级" validate:"gte=1,lte=100"`
}

// Import 逐行导入分配。单行失败只会记录在 Errors 中，不会中断整个批次，
// 已经写入的行也不会回滚。只有 ctx 被取消时才会提前返回。
func (im *Importer) Import(ctx context.Context, rows []domain.RawAssignmentRow, shifts []domain.KnownShift, progress ProgressFunc) (domain.ImportSummary, error) {
	summary := domain.ImportSummary{
		Total:  len(rows),
		Errors: make([]string, 0),
	}

	for i, raw := range rows {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := im.importRow(ctx, i+2, raw, shifts); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, err.Error())
		} else {
			summary.Successful++
			im.metrics.ImportedRow("success")
		}

		if progress != nil {
			snapshot := summary
			snapshot.Errors = slices.Clone(summary.Errors)
			progress(i+1, snapshot)
		}
	}

	return summary, nil
}

func (im *Importer) importRow(ctx context.Context, line int, raw domain.RawAssignmentRow, shifts []domain.KnownShift) error {
	row, reason := im.parse(raw)
	if reason != "" {
		im.metrics.ImportedRow("invalid")
		return &ValidationError{Row: line, Reason: reason}
	}

	shift, reason := matchShift(shifts, row.ShiftName, row.BranchName)
	if reason != "" {
		im.metrics.ImportedRow("invalid")
		return &ValidationError{Row: line, Reason: reason}
	}

	a := &domain.VehicleShiftAssignment{
		VehicleNumber:   row.VehicleNumber,
		ShiftTemplateID: shift.ID,
		StartDate:       row.StartDate,
		EndDate:         row.EndDate,
		Priority:        row.Priority,
	}
	if err := im.writer.CreateVehicleShiftAssignment(ctx, a); err != nil {
		im.metrics.ImportedRow("rejected")
		return &ValidationError{Row: line, Reason: storageReason(err)}
	}

	return nil
}

func (im *Importer) parse(raw domain.RawAssignmentRow) (*assignmentRow, string) {
	vehicle, err := strconv.ParseInt(strings.TrimSpace(raw.VehicleNumber), 10, 32)
	if err != nil {
		return nil, fmt.Sprintf("车辆编号 %q 不是整数", raw.VehicleNumber)
	}
	priority, err := strconv.ParseInt(strings.TrimSpace(raw.Priority), 10, 32)
	if err != nil {
		return nil, fmt.Sprintf("优先级 %q 不是整数", raw.Priority)
	}
	start, err := civil.ParseDate(strings.TrimSpace(raw.StartDate))
	if err != nil {
		return nil, fmt.Sprintf("开始日期 %q 格式错误，应为 YYYY-MM-DD", raw.StartDate)
	}
	end, err := civil.ParseDate(strings.TrimSpace(raw.EndDate))
	if err != nil {
		return nil, fmt.Sprintf("结束日期 %q 格式错误，应为 YYYY-MM-DD", raw.EndDate)
	}

	row := &assignmentRow{
		VehicleNumber: int32(vehicle),
		BranchName:    strings.TrimSpace(raw.BranchName),
		ShiftName:     strings.TrimSpace(raw.ShiftName),
		StartDate:     start,
		EndDate:       end,
		Priority:      int32(priority),
	}
	if err := im.validate.Struct(row); err != nil {
		return nil, utils.TranslateError(err, im.translator)
	}
	if err := utils.ValidateDateRange(row.StartDate, row.EndDate); err != nil {
		return nil, err.Error()
	}

	return row, ""
}

// matchShift 按名称（不区分大小写）查找班次。同名班次优先选择分部也匹配的那个，
// 分部为空的一方可以匹配任意分部。
func matchShift(shifts []domain.KnownShift, name, branch string) (domain.KnownShift, string) {
	var (
		fallback      *domain.KnownShift
		inOtherBranch bool
	)
	for i := range shifts {
		s := &shifts[i]
		if !strings.EqualFold(strings.TrimSpace(s.Name), name) {
			continue
		}
		switch {
		case branch != "" && strings.EqualFold(strings.TrimSpace(s.BranchName), branch):
			return *s, ""
		case branch == "" || s.BranchName == "":
			if fallback == nil {
				fallback = s
			}
		default:
			inOtherBranch = true
		}
	}

	if fallback != nil {
		return *fallback, ""
	}
	if inOtherBranch {
		return domain.KnownShift{}, fmt.Sprintf("分部 %s 中没有名为 %s 的班次", branch, name)
	}
	return domain.KnownShift{}, fmt.Sprintf("未找到名为 %s 的班次", name)
}

func storageReason(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.ConstraintName {
		case "vehicle_shift_assignments_shift_template_id_fkey":
			return "班次不存在"
		case "vehicle_shift_assignments_priority_check":
			return "优先级必须在 1 到 100 之间"
		case "vehicle_shift_assignments_date_range_check":
			return "结束日期不能早于开始日期"
		case "vehicle_shift_assignments_vehicle_number_check":
			return "车辆编号必须为正整数"
		}
	}

	slog.Error("无法写入车辆班次分配", "error", err)
	return "写入失败: " + err.Error()
}
