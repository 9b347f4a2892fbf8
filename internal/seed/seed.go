package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"

	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/importer"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/utils"
)

type Repository interface {
	CreateBranch(ctx context.Context, name string) (int64, error)
	CreateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error
	CreateStatusConfig(ctx context.Context, sc *domain.StatusConfig) error
	CreateVehicleShiftAssignment(ctx context.Context, a *domain.VehicleShiftAssignment) error
	CreateVehicleStatusOverride(ctx context.Context, o *domain.VehicleStatusOverride) error
	GetKnownShifts(ctx context.Context) ([]domain.KnownShift, error)
}

var branchNames = []string{"Centro", "Norte", "Sur"}

var statusConfigs = []domain.StatusConfig{
	{Label: "维修", Color: "#e53935", Description: "车辆在维修厂"},
	{Label: "保养", Color: "#fb8c00", Description: "定期保养"},
	{Label: "停运", Color: "#757575", Description: "临时停运"},
}

type RandomOptions struct {
	Vehicles           int
	TemplatesPerBranch int
	Days               int
}

// SeedRandom 生成本地开发用的随机车队数据，每辆车一条分配，约三分之一的车辆带一条状态覆盖
func SeedRandom(ctx context.Context, r Repository, opts RandomOptions) error {
	if opts.Vehicles <= 0 || opts.TemplatesPerBranch <= 0 || opts.Days <= 0 {
		return fmt.Errorf("参数必须为正整数: %+v", opts)
	}

	var templateIDs []int64
	for _, name := range branchNames {
		branchID, err := r.CreateBranch(ctx, name)
		if err != nil {
			return fmt.Errorf("插入分部失败: %w", err)
		}
		for range opts.TemplatesPerBranch {
			st := utils.GenerateRandomShiftTemplate(branchID)
			if err := r.CreateShiftTemplate(ctx, st); err != nil {
				slog.Error("插入班次模板失败", "error", err)
				continue
			}
			templateIDs = append(templateIDs, st.ID)
		}
	}
	if len(templateIDs) == 0 {
		return fmt.Errorf("没有成功插入任何班次模板")
	}

	var statusIDs []int64
	for _, sc := range statusConfigs {
		if err := r.CreateStatusConfig(ctx, &sc); err != nil {
			// 重复执行时标签已存在
			slog.Warn("插入状态配置失败", "label", sc.Label, "error", err)
			continue
		}
		statusIDs = append(statusIDs, sc.ID)
	}

	today := utils.Today()
	assignments, overrides := 0, 0
	for i := range opts.Vehicles {
		vehicle := int32(i + 1)

		a := utils.GenerateRandomAssignment(vehicle, templateIDs[rand.Intn(len(templateIDs))], today, opts.Days)
		if err := r.CreateVehicleShiftAssignment(ctx, a); err != nil {
			slog.Error("插入分配失败", "vehicle", vehicle, "error", err)
		} else {
			assignments++
		}

		if len(statusIDs) > 0 && rand.Intn(3) == 0 {
			o := utils.GenerateRandomOverride(vehicle, statusIDs[rand.Intn(len(statusIDs))], today, opts.Days)
			if err := r.CreateVehicleStatusOverride(ctx, o); err != nil {
				slog.Error("插入状态覆盖失败", "vehicle", vehicle, "error", err)
			} else {
				overrides++
			}
		}
	}

	slog.Info("插入随机数据完成", "templates", len(templateIDs), "assignments", assignments, "overrides", overrides)
	return nil
}

// ImportCSV 同步地把 CSV 文件交给导入器处理，用于在没有 worker 的环境中导入数据
func ImportCSV(ctx context.Context, path string, r Repository, im *importer.Importer) (domain.ImportSummary, error) {
	file, err := os.Open(path)
	if err != nil {
		return domain.ImportSummary{}, err
	}
	defer file.Close()

	rows, err := importer.ReadCSV(file)
	if err != nil {
		return domain.ImportSummary{}, err
	}

	shifts, err := r.GetKnownShifts(ctx)
	if err != nil {
		return domain.ImportSummary{}, err
	}

	summary, err := im.Import(ctx, rows, shifts, func(processed int, s domain.ImportSummary) {
		if processed%100 == 0 {
			slog.Info("导入中", "processed", processed, "total", s.Total)
		}
	})
	if err != nil {
		return summary, err
	}

	for _, e := range summary.Errors {
		slog.Warn("导入失败的行", "error", e)
	}
	slog.Info("导入完成", "total", summary.Total, "successful", summary.Successful, "failed", summary.Failed)

	return summary, nil
}
