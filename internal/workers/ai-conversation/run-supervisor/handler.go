package runsupervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dealroom-supervisor/internal/common/errors"
	"dealroom-supervisor/internal/common/metrics"
	"dealroom-supervisor/internal/common/observability"
	"dealroom-supervisor/internal/common/validation"
	"dealroom-supervisor/internal/supervisor"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "run-supervisor"
)

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["question", "dealId", "userId"],
  "properties": {
    "question": {"type": "string", "minLength": 1, "maxLength": 4000},
    "dealId": {"type": "string", "minLength": 1},
    "userId": {"type": "string", "minLength": 1},
    "organizationId": {"type": ["string", "null"]}
  }
}`)

// Logger interface definition
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Runner answers one query; *supervisor.Supervisor implements it.
type Runner interface {
	Run(ctx context.Context, q supervisor.Query) *supervisor.RunResult
}

type Handler struct {
	config       *Config
	runner       Runner
	errorHandler *errors.ErrorHandler
	logger       Logger
	obs          *observability.Observability
}

func NewHandler(config *Config, runner Runner, log Logger) *Handler {
	log = log.With(map[string]interface{}{
		"taskType": TaskType,
	})
	return &Handler{
		config:       config,
		runner:       runner,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}
}

// WithObservability records job counts and durations on the otel meter.
func (h *Handler) WithObservability(obs *observability.Observability) *Handler {
	h.obs = obs
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := ParseInput([]byte(job.Variables))
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	h.completeJob(client, job, output)
	h.record(ctx, "success", start)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.record(ctx, "failed", start)
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) record(ctx context.Context, status string, start time.Time) {
	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(elapsed.Seconds())
	if h.obs != nil {
		h.obs.RecordJobProcessed(ctx, status)
		h.obs.RecordJobDuration(ctx, elapsed, status)
	}
}

// ParseInput decodes and validates job variables.
func ParseInput(variables []byte) (*Input, error) {
	result, err := inputSchema.ValidateBytes(variables)
	if err != nil {
		return nil, errors.NewInputInvalidError(fmt.Sprintf("parse input: %v", err))
	}
	if !result.Valid {
		return nil, errors.NewInputInvalidError(result.Error())
	}

	var input Input
	if err := json.Unmarshal(variables, &input); err != nil {
		return nil, errors.NewInputInvalidError(fmt.Sprintf("parse input: %v", err))
	}
	return &input, nil
}

// Execute runs the supervisor. A run never fails; the error return covers
// a missing runner only.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if h.runner == nil {
		return nil, errors.NewExternalServiceError("supervisor", fmt.Errorf("no runner configured"))
	}

	result := h.runner.Run(ctx, supervisor.Query{
		Text:           input.Question,
		DealID:         input.DealID,
		UserID:         input.UserID,
		OrganizationID: input.OrganizationID,
	})

	meta := supervisor.TraceMetadata(result)
	h.logger.Info("supervisor run completed", map[string]interface{}{
		"dealId":         input.DealID,
		"runId":          meta["runId"],
		"specialists":    meta["specialists"],
		"confidence":     meta["responseConfidence"],
		"wasSynthesized": meta["wasSynthesized"],
	})

	return &Output{
		Response:      result.Response,
		TraceMetadata: meta,
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}
