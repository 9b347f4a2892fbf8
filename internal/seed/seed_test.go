package seed

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/importer"
)

type memoryRepository struct {
	branches    map[string]int64
	templates   []*domain.ShiftTemplate
	configs     []*domain.StatusConfig
	assignments []*domain.VehicleShiftAssignment
	overrides   []*domain.VehicleStatusOverride
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{branches: make(map[string]int64)}
}

func (m *memoryRepository) CreateBranch(_ context.Context, name string) (int64, error) {
	if id, ok := m.branches[name]; ok {
		return id, nil
	}
	m.branches[name] = int64(len(m.branches) + 1)
	return m.branches[name], nil
}

func (m *memoryRepository) CreateShiftTemplate(_ context.Context, st *domain.ShiftTemplate) error {
	st.ID = int64(len(m.templates) + 1)
	m.templates = append(m.templates, st)
	return nil
}

func (m *memoryRepository) CreateStatusConfig(_ context.Context, sc *domain.StatusConfig) error {
	sc.ID = int64(len(m.configs) + 1)
	m.configs = append(m.configs, sc)
	return nil
}

func (m *memoryRepository) CreateVehicleShiftAssignment(_ context.Context, a *domain.VehicleShiftAssignment) error {
	a.ID = int64(len(m.assignments) + 1)
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *memoryRepository) CreateVehicleStatusOverride(_ context.Context, o *domain.VehicleStatusOverride) error {
	o.ID = int64(len(m.overrides) + 1)
	m.overrides = append(m.overrides, o)
	return nil
}

func (m *memoryRepository) GetKnownShifts(context.Context) ([]domain.KnownShift, error) {
	shifts := make([]domain.KnownShift, 0, len(m.templates))
	for _, st := range m.templates {
		name := ""
		for branch, id := range m.branches {
			if id == st.BranchID {
				name = branch
			}
		}
		shifts = append(shifts, domain.KnownShift{ID: st.ID, Name: st.Name, BranchName: name})
	}
	return shifts, nil
}

func TestSeedRandom(t *testing.T) {
	repo := newMemoryRepository()

	err := SeedRandom(context.Background(), repo, RandomOptions{Vehicles: 20, TemplatesPerBranch: 2, Days: 30})
	require.NoError(t, err)

	assert.Len(t, repo.branches, len(branchNames))
	assert.Len(t, repo.templates, 2*len(branchNames))
	assert.Len(t, repo.configs, len(statusConfigs))
	assert.Len(t, repo.assignments, 20)
	for _, a := range repo.assignments {
		assert.False(t, a.EndDate.Before(a.StartDate))
		assert.GreaterOrEqual(t, a.Priority, int32(1))
		assert.LessOrEqual(t, a.Priority, int32(100))
	}
	for _, o := range repo.overrides {
		assert.False(t, o.EndDate.Before(o.StartDate))
	}

	assert.Error(t, SeedRandom(context.Background(), repo, RandomOptions{}))
}

func TestImportCSV(t *testing.T) {
	repo := newMemoryRepository()
	branchID, _ := repo.CreateBranch(context.Background(), "Centro")
	require.NoError(t, repo.CreateShiftTemplate(context.Background(), &domain.ShiftTemplate{BranchID: branchID, Name: "Morning"}))

	path := filepath.Join(t.TempDir(), "assignments.csv")
	content := "vehicle_number,branch_name,shift_name,start_date,end_date,priority\n" +
		"7,Centro,morning,2024-01-01,2024-01-31,10\n" +
		"8,Centro,Evening,2024-01-01,2024-01-31,10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	im, err := importer.New(repo, nil)
	require.NoError(t, err)

	summary, err := ImportCSV(context.Background(), path, repo, im)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Successful)
	assert.Equal(t, []string{"第 3 行: 未找到名为 Evening 的班次"}, summary.Errors)
	require.Len(t, repo.assignments, 1)
	assert.Equal(t, int32(7), repo.assignments[0].VehicleNumber)

	_, err = ImportCSV(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), repo, im)
	assert.Error(t, err)
}
