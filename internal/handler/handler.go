package handler

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/config"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/livestatus"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/metrics"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/utils"
)

// Repository 是 handler 需要的存储操作，*repository.Repository 实现了它
type Repository interface {
	calendar.Store
	CreateShiftTemplate(ctx context.Context, st *domain.ShiftTemplate) error
	GetAllStatusConfigs(ctx context.Context) ([]domain.StatusConfig, error)
}

// Publisher 向 rabbitmq 发布消息，*amqp.Channel 实现了它
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type ProgressStore interface {
	Save(ctx context.Context, p *domain.ImportProgress) error
	Load(ctx context.Context, jobID string) (*domain.ImportProgress, error)
}

// CacheFactory 返回某个会话的实时状态缓存
type CacheFactory func(session string) livestatus.Cache

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	repository Repository
	translator ut.Translator
	publisher  Publisher
	progress   ProgressStore
	aggregator *calendar.Aggregator
	lookup     livestatus.Lookup
	caches     CacheFactory
	metrics    *metrics.Metrics
	today      func() civil.Date

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo Repository, publisher Publisher, progress ProgressStore, lookup livestatus.Lookup, caches CacheFactory, m *metrics.Metrics) (*Handler, error) {
	validate, trans, err := utils.NewValidator()
	if err != nil {
		return nil, err
	}

	return &Handler{
		validate:   validate,
		config:     cfg,
		repository: repo,
		translator: trans,
		publisher:  publisher,
		progress:   progress,
		aggregator: calendar.NewAggregator(repo, m),
		lookup:     lookup,
		caches:     caches,
		metrics:    m,
		today:      utils.Today,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Handle("/metrics", promhttp.Handler())

	h.Mux.Route("/shift-templates", func(r chi.Router) {
		r.Get("/", h.GetShiftTemplates)
		r.Post("/", h.CreateShiftTemplate)
	})
	h.Mux.Get("/status-configs", h.GetAllStatusConfigs)

	h.Mux.Route("/calendar", func(r chi.Router) {
		r.Route("/fleet", func(r chi.Router) {
			r.Get("/", h.GetFleetCalendar)
			r.Get("/export", h.ExportFleetCalendar)
		})
		r.With(h.vehicleNumber).Get("/vehicles/{number}", h.GetVehicleCalendar)
	})

	// 实时状态按会话缓存，必须带上会话标识
	h.Mux.Route("/live-status", func(r chi.Router) {
		r.Use(h.session)
		r.Post("/", h.AnnotateLiveStatus)
		r.Post("/refresh", h.RefreshLiveStatus)
	})

	h.Mux.Route("/imports", func(r chi.Router) {
		r.Post("/", h.SubmitImport)
		r.Get("/{id}", h.GetImportProgress)
	})
}
