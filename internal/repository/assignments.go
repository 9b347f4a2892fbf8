package repository

import (
	"context"
	"database/sql"
	"time"

	"cloud.google.com/go/civil"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

// FetchAssignments 一次查询出与 [from, to] 有交集的所有分配，并带上班次模板。
// 指定分部时只返回该分部模板下的分配，模板已被删除的分配在这种情况下不会返回。
func (r *Repository) FetchAssignments(ctx context.Context, scope calendar.Scope, from, to civil.Date, branchID *int64) ([]domain.VehicleShiftAssignment, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT
			a.id,
			a.vehicle_number,
			a.shift_template_id,
			a.start_date,
			a.end_date,
			a.priority,
			a.created_at,
			st.id,
			st.branch_id,
			b.name,
			st.name,
			to_char(st.start_time, 'HH24:MI'),
			to_char(st.end_time, 'HH24:MI'),
			st.free_day_of_week,
			st.anexo_signed,
			st.created_at
		FROM vehicle_shift_assignments a
		LEFT JOIN shift_templates st ON st.id = a.shift_template_id
		LEFT JOIN branches b ON b.id = st.branch_id
		WHERE ($1::int[] IS NULL OR a.vehicle_number = ANY($1))
			AND a.start_date <= $3::date
			AND a.end_date >= $2::date
			AND ($4::bigint IS NULL OR st.branch_id = $4)
		ORDER BY a.vehicle_number, a.id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, scopeArg(scope), from.String(), to.String(), branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]domain.VehicleShiftAssignment, 0)
	for rows.Next() {
		var row struct {
			ID              int64
			VehicleNumber   int32
			ShiftTemplateID sql.NullInt64
			StartDate       time.Time
			EndDate         time.Time
			Priority        int32
			CreatedAt       time.Time

			TemplateID        sql.NullInt64
			BranchID          sql.NullInt64
			BranchName        sql.NullString
			TemplateName      sql.NullString
			StartTime         sql.NullString
			EndTime           sql.NullString
			FreeDayOfWeek     sql.NullInt32
			AnexoSigned       sql.NullBool
			TemplateCreatedAt sql.NullTime
		}

		dst := []any{
			&row.ID,
			&row.VehicleNumber,
			&row.ShiftTemplateID,
			&row.StartDate,
			&row.EndDate,
			&row.Priority,
			&row.CreatedAt,
			&row.TemplateID,
			&row.BranchID,
			&row.BranchName,
			&row.TemplateName,
			&row.StartTime,
			&row.EndTime,
			&row.FreeDayOfWeek,
			&row.AnexoSigned,
			&row.TemplateCreatedAt,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}

		a := domain.VehicleShiftAssignment{
			ID:              row.ID,
			VehicleNumber:   row.VehicleNumber,
			ShiftTemplateID: row.ShiftTemplateID.Int64,
			StartDate:       civil.DateOf(row.StartDate),
			EndDate:         civil.DateOf(row.EndDate),
			Priority:        row.Priority,
			CreatedAt:       row.CreatedAt,
		}

		// 模板不存在时 LEFT JOIN 得到的字段全部为空
		if row.TemplateID.Valid {
			a.Template = &domain.ShiftTemplate{
				ID:            row.TemplateID.Int64,
				BranchID:      row.BranchID.Int64,
				BranchName:    row.BranchName.String,
				Name:          row.TemplateName.String,
				StartTime:     row.StartTime.String,
				EndTime:       row.EndTime.String,
				FreeDayOfWeek: row.FreeDayOfWeek.Int32,
				AnexoSigned:   row.AnexoSigned.Bool,
				CreatedAt:     row.TemplateCreatedAt.Time,
			}
		}

		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *Repository) CreateVehicleShiftAssignment(ctx context.Context, a *domain.VehicleShiftAssignment) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO vehicle_shift_assignments (vehicle_number, shift_template_id, start_date, end_date, priority)
		VALUES ($1, $2, $3::date, $4::date, $5)
		RETURNING id, created_at
	`
	args := []any{
		a.VehicleNumber,
		a.ShiftTemplateID,
		a.StartDate.String(),
		a.EndDate.String(),
		a.Priority,
	}

	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.CreatedAt)
}
