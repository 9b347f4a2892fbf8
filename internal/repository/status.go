package repository

import (
	"context"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

func (r *Repository) GetAllStatusConfigs(ctx context.Context) ([]domain.StatusConfig, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, label, color, description
		FROM status_configs
		ORDER BY id
	`

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	configs := make([]domain.StatusConfig, 0)
	for rows.Next() {
		var sc domain.StatusConfig
		if err := rows.Scan(&sc.ID, &sc.Label, &sc.Color, &sc.Description); err != nil {
			return nil, err
		}
		configs = append(configs, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return configs, nil
}

func (r *Repository) CreateStatusConfig(ctx context.Context, sc *domain.StatusConfig) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO status_configs (label, color, description)
		VALUES ($1, $2, $3)
		RETURNING id
	`

	return r.dbpool.QueryRowContext(ctx, query, sc.Label, sc.Color, sc.Description).Scan(&sc.ID)
}

// FetchOverrides 一次查询出与 [from, to] 有交集的所有状态覆盖，并带上状态的标签和颜色
func (r *Repository) FetchOverrides(ctx context.Context, scope calendar.Scope, from, to civil.Date) ([]domain.VehicleStatusOverride, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT
			o.id,
			o.vehicle_number,
			o.status_config_id,
			o.start_date,
			o.end_date,
			o.comments,
			o.created_at,
			sc.label,
			sc.color
		FROM vehicle_status_overrides o
		JOIN status_configs sc ON sc.id = o.status_config_id
		WHERE ($1::int[] IS NULL OR o.vehicle_number = ANY($1))
			AND o.start_date <= $3::date
			AND o.end_date >= $2::date
		ORDER BY o.vehicle_number, o.id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, scopeArg(scope), from.String(), to.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make([]domain.VehicleStatusOverride, 0)
	for rows.Next() {
		var (
			o          domain.VehicleStatusOverride
			start, end time.Time
		)
		dst := []any{
			&o.ID,
			&o.VehicleNumber,
			&o.StatusConfigID,
			&start,
			&end,
			&o.Comments,
			&o.CreatedAt,
			&o.Label,
			&o.Color,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		o.StartDate = civil.DateOf(start)
		o.EndDate = civil.DateOf(end)
		overrides = append(overrides, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return overrides, nil
}

func (r *Repository) CreateVehicleStatusOverride(ctx context.Context, o *domain.VehicleStatusOverride) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO vehicle_status_overrides (vehicle_number, status_config_id, start_date, end_date, comments)
		VALUES ($1, $2, $3::date, $4::date, $5)
		RETURNING id, created_at
	`
	args := []any{
		o.VehicleNumber,
		o.StatusConfigID,
		o.StartDate.String(),
		o.EndDate.String(),
		o.Comments,
	}

	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&o.ID, &o.CreatedAt)
}
