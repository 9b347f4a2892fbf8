package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/importer"
)

const maxImportBytes = 10 << 20

// SubmitImport 接收 CSV 格式的请求体，校验表头后作为一个导入任务放入队列
func (h *Handler) SubmitImport(w http.ResponseWriter, r *http.Request) {
	notify := r.URL.Query().Get("notify")
	if err := h.validate.Var(notify, "omitempty,email"); err != nil {
		h.errorResponse(w, r, "通知邮箱格式错误")
		return
	}

	rows, err := importer.ReadCSV(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	if len(rows) == 0 {
		h.errorResponse(w, r, "导入文件中没有数据")
		return
	}

	job := &domain.ImportJob{
		ID:          uuid.NewString(),
		Rows:        rows,
		NotifyEmail: notify,
		CreatedAt:   time.Now(),
	}
	progress := &domain.ImportProgress{
		JobID: job.ID,
		ImportSummary: domain.ImportSummary{
			Total:  len(rows),
			Errors: make([]string, 0),
		},
	}

	// 先写入进度，保证任务被消费前也能查询到
	if err := h.progress.Save(r.Context(), progress); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	body, err := json.Marshal(job)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	if err := h.publisher.PublishWithContext(
		ctx,
		"",
		h.config.RabbitMQ.ImportQueue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "导入任务已提交", progress)
}

func (h *Handler) GetImportProgress(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.errorResponse(w, r, "无效的任务 id")
		return
	}

	progress, err := h.progress.Load(r.Context(), id.String())
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrJobNotFound):
			h.errorResponse(w, r, err.Error())
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取导入进度成功", progress)
}
