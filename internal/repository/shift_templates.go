package repository

import (
	"context"

	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

func (r *Repository) FetchShiftTemplates(ctx context.Context, branchID *int64) ([]domain.ShiftTemplate, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT
			st.id,
			st.branch_id,
			b.name,
			st.name,
			to_char(st.start_time, 'HH24:MI'),
			to_char(st.end_time, 'HH24:MI'),
			st.free_day_of_week,
			st.anexo_signed,
			st.created_at,
			st.version
		FROM shift_templates st
		JOIN branches b ON b.id = st.branch_id
		WHERE ($1::bigint IS NULL OR st.branch_id = $1)
		ORDER BY st.branch_id, st.start_time, st.id
	`

	rows, err := r.dbpool.QueryContext(ctx, query, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := make([]domain.ShiftTemplate, 0)
	for rows.Next() {
		var st domain.ShiftTemplate
		dst := []any{
			&st.ID,
			&st.BranchID,
			&st.BranchName,
			&st.Name,
			&st.StartTime,
			&st.EndTime,
			&st.FreeDayOfWeek,
			&st.AnexoSigned,
			&st.CreatedAt,
			&st.Version,
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		templates = append(templates, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return templates, nil
}

// GetKnownShifts 返回导入时用来匹配名称的所有班次
func (r *Repository) GetKnownShifts(ctx context.Context) ([]domain.KnownShift, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT st.id, st.name, b.name
		FROM shift_templates st
		JOIN branches b ON b.id = st.branch_id
		ORDER BY st.id
	`

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]domain.KnownShift, 0)
	for rows.Next() {
		var s domain.KnownShift
		if err := rows.Scan(&s.ID, &s.Name, &s.BranchName); err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return shifts, nil
}

// CreateBranch 创建分部，同名分部已存在时直接返回它的 id
func (r *Repository) CreateBranch(ctx context.Context, name string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO branches (name)
		VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`

	var id int64
	if err := r.dbpool.QueryRowContext(ctx, query, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Repository) CreateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO shift_templates (branch_id, name, start_time, end_time, free_day_of_week, anexo_signed)
		VALUES ($1, $2, $3::time, $4::time, $5, $6)
		RETURNING id, created_at, version
	`
	args := []any{
		st.BranchID,
		st.Name,
		st.StartTime,
		st.EndTime,
		st.FreeDayOfWeek,
		st.AnexoSigned,
	}

	return r.dbpool.QueryRowContext(ctx, query, args...).Scan(&st.ID, &st.CreatedAt, &st.Version)
}
