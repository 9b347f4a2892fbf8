package handler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/config"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/importer"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/livestatus"
)

var monday = civil.Date{Year: 2024, Month: time.January, Day: 1}

type fakeRepository struct {
	templates   []domain.ShiftTemplate
	assignments []domain.VehicleShiftAssignment
	overrides   []domain.VehicleStatusOverride
	configs     []domain.StatusConfig
	created     []*domain.ShiftTemplate
}

func inScope(scope calendar.Scope, vehicle int32) bool {
	return scope.All() || slices.Contains(scope.Vehicles, vehicle)
}

func (f *fakeRepository) FetchOverrides(_ context.Context, scope calendar.Scope, from, to civil.Date) ([]domain.VehicleStatusOverride, error) {
	var res []domain.VehicleStatusOverride
	for _, o := range f.overrides {
		if inScope(scope, o.VehicleNumber) && !o.EndDate.Before(from) && !o.StartDate.After(to) {
			res = append(res, o)
		}
	}
	return res, nil
}

func (f *fakeRepository) FetchAssignments(_ context.Context, scope calendar.Scope, from, to civil.Date, branchID *int64) ([]domain.VehicleShiftAssignment, error) {
	var res []domain.VehicleShiftAssignment
	for _, a := range f.assignments {
		if branchID != nil && (a.Template == nil || a.Template.BranchID != *branchID) {
			continue
		}
		if inScope(scope, a.VehicleNumber) && !a.EndDate.Before(from) && !a.StartDate.After(to) {
			res = append(res, a)
		}
	}
	return res, nil
}

func (f *fakeRepository) FetchShiftTemplates(_ context.Context, branchID *int64) ([]domain.ShiftTemplate, error) {
	var res []domain.ShiftTemplate
	for _, st := range f.templates {
		if branchID == nil || st.BranchID == *branchID {
			res = append(res, st)
		}
	}
	return res, nil
}

func (f *fakeRepository) CreateShiftTemplate(_ context.Context, st *domain.ShiftTemplate) error {
	st.ID = int64(len(f.templates) + len(f.created) + 1)
	f.created = append(f.created, st)
	return nil
}

func (f *fakeRepository) GetAllStatusConfigs(context.Context) ([]domain.StatusConfig, error) {
	return f.configs, nil
}

type published struct {
	key string
	msg amqp.Publishing
}

type fakePublisher struct {
	messages []published
}

func (p *fakePublisher) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	p.messages = append(p.messages, published{key: key, msg: msg})
	return nil
}

type memoryProgress map[string]domain.ImportProgress

func (m memoryProgress) Save(_ context.Context, p *domain.ImportProgress) error {
	m[p.JobID] = *p
	return nil
}

func (m memoryProgress) Load(_ context.Context, jobID string) (*domain.ImportProgress, error) {
	p, ok := m[jobID]
	if !ok {
		return nil, importer.ErrJobNotFound
	}
	return &p, nil
}

type fakeLookup map[int32]domain.TrackingStatus

func (f fakeLookup) GetLiveStatus(_ context.Context, vehicle int32) (domain.TrackingStatus, error) {
	status, ok := f[vehicle]
	if !ok {
		return "", errors.New("车辆不存在")
	}
	return status, nil
}

type testEnv struct {
	handler   *Handler
	repo      *fakeRepository
	publisher *fakePublisher
	progress  memoryProgress
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	cfg.RabbitMQ.ImportQueue = "import_queue"
	cfg.RabbitMQ.PublishTimeout = 1
	cfg.Tracking.OnlineStatuses = []string{"moving", "IDLE"}
	cfg.Tracking.Concurrency = 4
	cfg.Calendar.MaxDays = 60

	morning := &domain.ShiftTemplate{ID: 1, BranchID: 1, BranchName: "Centro", Name: "Morning", StartTime: "08:00", EndTime: "16:00", FreeDayOfWeek: 7}
	night := domain.ShiftTemplate{ID: 2, BranchID: 2, BranchName: "Norte", Name: "Night", StartTime: "22:00", EndTime: "06:00", FreeDayOfWeek: 1}
	repo := &fakeRepository{
		templates: []domain.ShiftTemplate{*morning, night},
		assignments: []domain.VehicleShiftAssignment{
			{ID: 1, VehicleNumber: 7, ShiftTemplateID: 1, StartDate: monday, EndDate: monday.AddDays(30), Priority: 10, Template: morning},
			{ID: 2, VehicleNumber: 8, ShiftTemplateID: 1, StartDate: monday, EndDate: monday.AddDays(30), Priority: 10, Template: morning},
		},
		overrides: []domain.VehicleStatusOverride{
			{ID: 1, VehicleNumber: 8, StatusConfigID: 1, StartDate: monday.AddDays(1), EndDate: monday.AddDays(1), Label: "Maintenance", Color: "#ff0000"},
		},
		configs: []domain.StatusConfig{{ID: 1, Label: "Maintenance", Color: "#ff0000"}},
	}

	caches := make(map[string]*livestatus.MemoryCache)
	cacheFactory := func(session string) livestatus.Cache {
		if _, ok := caches[session]; !ok {
			caches[session] = livestatus.NewMemoryCache()
		}
		return caches[session]
	}

	publisher := &fakePublisher{}
	progress := memoryProgress{}
	lookup := fakeLookup{7: domain.TrackingStatusMoving}

	h, err := NewHandler(cfg, repo, publisher, progress, lookup, cacheFactory, nil)
	require.NoError(t, err)
	h.today = func() civil.Date { return monday }
	h.RegisterRoutes()

	return &testEnv{handler: h, repo: repo, publisher: publisher, progress: progress}
}

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.Mux.ServeHTTP(rec, req)

	var resp testResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

type fleetResponse struct {
	WindowID string `json:"windowID"`
	Months   []struct {
		Label string   `json:"label"`
		Days  []string `json:"days"`
	} `json:"months"`
	Days []struct {
		Date    string `json:"date"`
		Entries []struct {
			VehicleNumber int32  `json:"vehicleNumber"`
			Kind          string `json:"kind"`
			Online        string `json:"online"`
		} `json:"entries"`
		Groups []struct {
			Key      string  `json:"key"`
			Kind     string  `json:"kind"`
			Vehicles []int32 `json:"vehicles"`
		} `json:"groups"`
	} `json:"days"`
}

func TestGetFleetCalendar(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/calendar/fleet?from=2024-01-01&days=3", nil))
	require.True(t, resp.Success, resp.Message)

	var fleet fleetResponse
	require.NoError(t, json.Unmarshal(resp.Data, &fleet))

	assert.Equal(t, "branch=all;from=2024-01-01;days=3", fleet.WindowID)
	require.Len(t, fleet.Months, 1)
	assert.Equal(t, "2024-01", fleet.Months[0].Label)
	assert.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, fleet.Months[0].Days)

	require.Len(t, fleet.Days, 3)
	require.Len(t, fleet.Days[0].Groups, 1)
	assert.Equal(t, "Morning (08:00-16:00)", fleet.Days[0].Groups[0].Key)
	assert.Equal(t, []int32{7, 8}, fleet.Days[0].Groups[0].Vehicles)

	second := fleet.Days[1]
	assert.Equal(t, "2024-01-02", second.Date)
	require.Len(t, second.Groups, 2)
	assert.Equal(t, "Maintenance", second.Groups[0].Key)
	assert.Equal(t, "override", second.Groups[0].Kind)
	assert.Equal(t, []int32{8}, second.Groups[0].Vehicles)
	assert.Equal(t, []int32{7}, second.Groups[1].Vehicles)
}

func TestGetFleetCalendarDefaultsAndErrors(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/calendar/fleet", nil))
	require.True(t, resp.Success, resp.Message)
	var fleet fleetResponse
	require.NoError(t, json.Unmarshal(resp.Data, &fleet))
	assert.Equal(t, "branch=all;from=2024-01-01;days=7", fleet.WindowID)

	tests := []struct {
		name  string
		query string
	}{
		{"zero days", "?from=2024-01-01&days=0"},
		{"too many days", "?from=2024-01-01&days=61"},
		{"bad date", "?from=2024-13-01"},
		{"bad days", "?days=abc"},
		{"bad branch", "?branchId=x"},
		{"bad vehicles", "?vehicles=7,-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/calendar/fleet"+tt.query, nil))
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestGetFleetCalendarBranchFilter(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/calendar/fleet?from=2024-01-01&days=2&branchId=2", nil))
	require.True(t, resp.Success, resp.Message)

	var fleet fleetResponse
	require.NoError(t, json.Unmarshal(resp.Data, &fleet))
	assert.Equal(t, "branch=2;from=2024-01-01;days=2", fleet.WindowID)
	for _, day := range fleet.Days {
		assert.Empty(t, day.Entries)
	}
}

func TestExportFleetCalendar(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, httptest.NewRequest(http.MethodGet, "/calendar/fleet/export?from=2024-01-01&days=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "fleet-2024-01-01-2d.csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, calendar.ExportHeader, records[0])
	assert.Equal(t, []string{"2024-01-01", "7", "activeShift", "Morning (08:00-16:00)", "08:00", "16:00", "false", ""}, records[1])
	assert.Equal(t, "Maintenance", records[4][3])
}

func TestGetVehicleCalendar(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/calendar/vehicles/9?from=2024-01-01&days=2", nil))
	require.True(t, resp.Success, resp.Message)

	var vehicle struct {
		VehicleNumber int32 `json:"vehicleNumber"`
		Days          []struct {
			Kind string `json:"kind"`
		} `json:"days"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &vehicle))
	assert.Equal(t, int32(9), vehicle.VehicleNumber)
	require.Len(t, vehicle.Days, 2)
	assert.Equal(t, "unassigned", vehicle.Days[0].Kind)

	_, resp = env.do(t, httptest.NewRequest(http.MethodGet, "/calendar/vehicles/abc", nil))
	assert.False(t, resp.Success)
}

func TestLiveStatusRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/live-status", strings.NewReader(`{"from":"2024-01-01","days":3}`))
	_, resp := env.do(t, req)
	assert.False(t, resp.Success)

	req = httptest.NewRequest(http.MethodPost, "/live-status", strings.NewReader(`{"from":"2024-01-01","days":3}`))
	req.Header.Set(sessionHeader, "not-a-uuid")
	_, resp = env.do(t, req)
	assert.False(t, resp.Success)
}

func TestLiveStatusAnnotatesAndMergesIntoCalendar(t *testing.T) {
	env := newTestEnv(t)
	session := uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "/live-status", strings.NewReader(`{"from":"2024-01-01","days":3}`))
	req.Header.Set(sessionHeader, session)
	_, resp := env.do(t, req)
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, "部分车辆的实时状态查询失败", resp.Message)

	var annotation struct {
		WindowID string            `json:"windowID"`
		Statuses map[string]string `json:"statuses"`
		Failed   []int32           `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &annotation))
	assert.Equal(t, "branch=all;from=2024-01-01;days=3", annotation.WindowID)
	assert.Equal(t, map[string]string{"7": "online", "8": "unknown"}, annotation.Statuses)
	assert.Equal(t, []int32{8}, annotation.Failed)

	req = httptest.NewRequest(http.MethodGet, "/calendar/fleet?from=2024-01-01&days=3", nil)
	req.Header.Set(sessionHeader, session)
	_, resp = env.do(t, req)
	require.True(t, resp.Success, resp.Message)

	var fleet fleetResponse
	require.NoError(t, json.Unmarshal(resp.Data, &fleet))
	for _, e := range fleet.Days[0].Entries {
		switch e.VehicleNumber {
		case 7:
			assert.Equal(t, "online", e.Online)
		case 8:
			assert.Equal(t, "unknown", e.Online)
		}
	}

	// 另一个窗口看不到这个窗口的缓存
	req = httptest.NewRequest(http.MethodGet, "/calendar/fleet?from=2024-01-02&days=3", nil)
	req.Header.Set(sessionHeader, session)
	_, resp = env.do(t, req)
	var other fleetResponse
	require.NoError(t, json.Unmarshal(resp.Data, &other))
	require.NotEmpty(t, other.Days[0].Entries)
	for _, e := range other.Days[0].Entries {
		assert.Empty(t, e.Online)
	}
}

func TestRefreshLiveStatus(t *testing.T) {
	env := newTestEnv(t)
	session := uuid.NewString()

	req := httptest.NewRequest(http.MethodPost, "/live-status/refresh", strings.NewReader(`{"from":"2024-01-01","days":3,"vehicles":[7]}`))
	req.Header.Set(sessionHeader, session)
	_, resp := env.do(t, req)
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, "查询实时状态成功", resp.Message)

	req = httptest.NewRequest(http.MethodPost, "/live-status", strings.NewReader(`{"from":"2024-01-01","days":0}`))
	req.Header.Set(sessionHeader, session)
	_, resp = env.do(t, req)
	assert.False(t, resp.Success)
}

func TestCreateShiftTemplate(t *testing.T) {
	env := newTestEnv(t)

	body := `{"branchID":1,"name":"Late","startTime":"20:00","endTime":"04:00","freeDayOfWeek":3}`
	_, resp := env.do(t, httptest.NewRequest(http.MethodPost, "/shift-templates", strings.NewReader(body)))
	require.True(t, resp.Success, resp.Message)

	var view struct {
		Name            string `json:"name"`
		Overnight       bool   `json:"overnight"`
		DurationMinutes int64  `json:"durationMinutes"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.Equal(t, "Late", view.Name)
	assert.True(t, view.Overnight)
	assert.Equal(t, int64(8*60), view.DurationMinutes)
	require.Len(t, env.repo.created, 1)

	body = `{"branchID":1,"name":"Broken","startTime":"8am","endTime":"04:00","freeDayOfWeek":3}`
	_, resp = env.do(t, httptest.NewRequest(http.MethodPost, "/shift-templates", strings.NewReader(body)))
	assert.False(t, resp.Success)

	body = `{"branchID":1,"name":"Broken","startTime":"08:00","endTime":"04:00","freeDayOfWeek":9}`
	_, resp = env.do(t, httptest.NewRequest(http.MethodPost, "/shift-templates", strings.NewReader(body)))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "休息日")
}

func TestGetShiftTemplatesAndStatusConfigs(t *testing.T) {
	env := newTestEnv(t)

	_, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/shift-templates?branchId=2", nil))
	require.True(t, resp.Success, resp.Message)
	var templates []struct {
		Name      string `json:"name"`
		Overnight bool   `json:"overnight"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &templates))
	require.Len(t, templates, 1)
	assert.Equal(t, "Night", templates[0].Name)
	assert.True(t, templates[0].Overnight)

	_, resp = env.do(t, httptest.NewRequest(http.MethodGet, "/status-configs", nil))
	require.True(t, resp.Success, resp.Message)
	assert.Contains(t, string(resp.Data), "Maintenance")
}

func TestSubmitImport(t *testing.T) {
	env := newTestEnv(t)

	body := strings.Join(importer.Header, ",") + "\n" +
		"7,Centro,Morning,2024-01-01,2024-01-31,10\n" +
		"8,Centro,Morning,2024-01-01,2024-01-31,abc\n"
	req := httptest.NewRequest(http.MethodPost, "/imports?notify=ops@example.com", strings.NewReader(body))
	_, resp := env.do(t, req)
	require.True(t, resp.Success, resp.Message)

	var progress domain.ImportProgress
	require.NoError(t, json.Unmarshal(resp.Data, &progress))
	assert.Equal(t, 2, progress.Total)
	assert.Zero(t, progress.Processed)
	assert.False(t, progress.Done)

	require.Len(t, env.publisher.messages, 1)
	msg := env.publisher.messages[0]
	assert.Equal(t, "import_queue", msg.key)
	assert.Equal(t, uint8(amqp.Persistent), msg.msg.DeliveryMode)

	var job domain.ImportJob
	require.NoError(t, json.Unmarshal(msg.msg.Body, &job))
	assert.Equal(t, progress.JobID, job.ID)
	assert.Equal(t, "ops@example.com", job.NotifyEmail)
	require.Len(t, job.Rows, 2)
	assert.Equal(t, "abc", job.Rows[1].Priority)

	_, resp = env.do(t, httptest.NewRequest(http.MethodGet, "/imports/"+job.ID, nil))
	require.True(t, resp.Success, resp.Message)
}

func TestSubmitImportRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		url  string
		body string
	}{
		{"bad header", "/imports", "vehicle,shift\n7,Morning\n"},
		{"no rows", "/imports", strings.Join(importer.Header, ",") + "\n"},
		{"bad email", "/imports?notify=nobody", strings.Join(importer.Header, ",") + "\n7,a,b,2024-01-01,2024-01-02,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, resp := env.do(t, httptest.NewRequest(http.MethodPost, tt.url, strings.NewReader(tt.body)))
			assert.False(t, resp.Success)
		})
	}
	assert.Empty(t, env.publisher.messages)

	_, resp := env.do(t, httptest.NewRequest(http.MethodGet, "/imports/not-a-uuid", nil))
	assert.False(t, resp.Success)

	_, resp = env.do(t, httptest.NewRequest(http.MethodGet, "/imports/"+uuid.NewString(), nil))
	assert.False(t, resp.Success)
	assert.Equal(t, importer.ErrJobNotFound.Error(), resp.Message)
}
