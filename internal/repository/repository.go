package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/config"
)

var _ calendar.Store = (*Repository)(nil)

type Repository struct {
	cfg    *config.Config
	dbpool *sql.DB
}

func NewRepository(cfg *config.Config, dbpool *sql.DB) *Repository {
	return &Repository{
		cfg:    cfg,
		dbpool: dbpool,
	}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(r.cfg.Database.QueryTimeout)*time.Second)
}

// scopeArg 把车辆范围转换为查询参数，所有车辆时为 NULL
func scopeArg(scope calendar.Scope) []int32 {
	if scope.All() {
		return nil
	}
	return scope.Vehicles
}
