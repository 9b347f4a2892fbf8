package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/fleet-calendar/backend/internal/domain"
)

const ImportReportMailType = "import_report"

type ShiftSource interface {
	GetKnownShifts(ctx context.Context) ([]domain.KnownShift, error)
}

type ProgressSaver interface {
	Save(ctx context.Context, p *domain.ImportProgress) error
}

// Publisher 向 rabbitmq 发布消息，*amqp.Channel 实现了它
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Worker 执行队列中的导入任务：逐行导入、把进度写入 redis，并在完成后投递报告邮件
type Worker struct {
	importer       *Importer
	shifts         ShiftSource
	progress       ProgressSaver
	publisher      Publisher
	emailQueue     string
	publishTimeout time.Duration
}

func NewWorker(im *Importer, shifts ShiftSource, progress ProgressSaver, publisher Publisher, emailQueue string, publishTimeout time.Duration) *Worker {
	return &Worker{
		importer:       im,
		shifts:         shifts,
		progress:       progress,
		publisher:      publisher,
		emailQueue:     emailQueue,
		publishTimeout: publishTimeout,
	}
}

// Process 返回错误表示任务没有开始执行，可以重新入队；
// 任务一旦开始，单行失败只会体现在 summary 中。
func (w *Worker) Process(ctx context.Context, job *domain.ImportJob) (domain.ImportSummary, error) {
	shifts, err := w.shifts.GetKnownShifts(ctx)
	if err != nil {
		return domain.ImportSummary{}, fmt.Errorf("无法获取班次列表: %w", err)
	}

	save := func(p *domain.ImportProgress) {
		if err := w.progress.Save(ctx, p); err != nil {
			slog.Warn("无法保存导入进度", "job", job.ID, "error", err)
		}
	}

	summary, err := w.importer.Import(ctx, job.Rows, shifts, func(processed int, s domain.ImportSummary) {
		save(&domain.ImportProgress{JobID: job.ID, Processed: processed, ImportSummary: s})
	})
	if err != nil {
		return summary, err
	}

	save(&domain.ImportProgress{JobID: job.ID, Processed: len(job.Rows), Done: true, ImportSummary: summary})
	slog.Info("导入任务已完成", "job", job.ID, "total", summary.Total, "successful", summary.Successful, "failed", summary.Failed)

	if job.NotifyEmail != "" {
		if err := w.notify(ctx, job, summary); err != nil {
			// 导入结果已经写入，报告邮件失败不影响任务本身
			slog.Error("无法投递导入报告邮件", "job", job.ID, "error", err)
		}
	}

	return summary, nil
}

func (w *Worker) notify(ctx context.Context, job *domain.ImportJob, summary domain.ImportSummary) error {
	body, err := json.Marshal(domain.MailMessage{
		Type: ImportReportMailType,
		To:   job.NotifyEmail,
		Data: domain.ImportReportMailData{
			JobID:      job.ID,
			Total:      summary.Total,
			Successful: summary.Successful,
			Failed:     summary.Failed,
			Errors:     summary.Errors,
		},
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.publishTimeout)
	defer cancel()

	return w.publisher.PublishWithContext(
		ctx,
		"",
		w.emailQueue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
