package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

var ErrJobNotFound = errors.New("导入任务不存在或已过期")

// ProgressStore 把导入进度以 JSON 的形式保存在 redis 中，供 api 查询
type ProgressStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewProgressStore(rdb *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{rdb: rdb, ttl: ttl}
}

func progressKey(jobID string) string {
	return fmt.Sprintf("import_job:%s", jobID)
}

func (s *ProgressStore) Save(ctx context.Context, p *domain.ImportProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, progressKey(p.JobID), data, s.ttl).Err()
}

func (s *ProgressStore) Load(ctx context.Context, jobID string) (*domain.ImportProgress, error) {
	data, err := s.rdb.Get(ctx, progressKey(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var p domain.ImportProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
