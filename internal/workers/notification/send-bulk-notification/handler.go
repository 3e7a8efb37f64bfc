// internal/workers/notification/send-bulk-notification/handler.go
package sendbulknotification

import (
	"context"
	"encoding/json"
	"time"

	apperrors "ops-notifications/internal/common/errors"
	"ops-notifications/internal/common/logger"
	"ops-notifications/internal/common/metrics"
	"ops-notifications/internal/common/observability"
	"ops-notifications/internal/common/validation"
	"ops-notifications/internal/models"
	"ops-notifications/internal/notification/service"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "send-bulk-notification"
)

type Sender interface {
	SendBulkNotification(ctx context.Context, tenantID string, data models.NotificationData, filter models.RecipientFilter) (*service.SendResult, error)
}

type Handler struct {
	config       *Config
	sender       Sender
	obs          *observability.Observability
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, sender Sender, obs *observability.Observability, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		sender:       sender,
		obs:          obs,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := ParseInput(job.Variables)
	if err != nil {
		h.fail(client, job, start, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(client, job, start, err)
		return
	}

	h.completeJob(client, job, output)
	h.obs.RecordFanout(ctx, TaskType, output.Count)
	h.record(ctx, start, "success")
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func ParseInput(variables string) (*Input, error) {
	if err := validation.SendBulkNotificationInput.Check(variables); err != nil {
		return nil, err
	}
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewParseError(err)
	}
	return &input, nil
}

// Execute resolves the tenant's matching users and fans out over the configured bulk channels.
// Zero matches is a successful job with count 0.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.sender.SendBulkNotification(ctx, input.TenantID, input.Data, input.Filters)
	if err != nil {
		return nil, err
	}

	out := &Output{
		NotificationIDs: result.NotificationIDs,
		Count:           len(result.NotificationIDs),
		SentAt:          result.SentAt,
	}
	if out.NotificationIDs == nil {
		out.NotificationIDs = []string{}
	}
	for _, d := range result.Deliveries {
		if d.Status == models.DeliveryFailed {
			out.FailedDeliveries++
		}
	}

	h.logger.Debug("bulk fan-out finished", map[string]interface{}{
		"tenantId":    input.TenantID,
		"recipients":  out.Count,
		"failed":      out.FailedDeliveries,
		"roles":       input.Filters.Roles,
		"departments": input.Filters.Departments,
		"locations":   input.Filters.Locations,
	})
	return out, nil
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, start time.Time, err error) {
	stdErr := apperrors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.record(context.Background(), start, "failed")
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}

func (h *Handler) record(ctx context.Context, start time.Time, status string) {
	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, status)
	h.obs.RecordJobDuration(ctx, TaskType, elapsed, status)
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey": job.Key,
		"count":  output.Count,
	})
}
