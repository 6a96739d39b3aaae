// internal/workers/matching/match-opportunity/handler.go
package matchopportunity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	commonerrors "grantmatch-workers/internal/common/errors"
	"grantmatch-workers/internal/common/logger"
	"grantmatch-workers/internal/common/metrics"
	"grantmatch-workers/internal/common/validation"
	"grantmatch-workers/internal/matching/dispatch"
	"grantmatch-workers/internal/store"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "match-opportunity"
)

var (
	ErrMatchDispatchFailed = errors.New("MATCH_DISPATCH_FAILED")
)

// Matcher interface for mocking the batch engine.
type Matcher interface {
	MatchOpportunity(ctx context.Context, opportunityID string) (*dispatch.Result, error)
}

type Handler struct {
	config       *Config
	dispatcher   Matcher
	logger       logger.Logger
	errorHandler *commonerrors.ErrorHandler
}

func NewHandler(config *Config, dispatcher Matcher, log logger.Logger) *Handler {
	scoped := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		dispatcher:   dispatcher,
		logger:       scoped,
		errorHandler: commonerrors.NewErrorHandler(scoped),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := parseInput(job.Variables)
	if err != nil {
		h.failJob(client, job, commonerrors.NewParseError(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.failJob(client, job, h.classifyError(err, input))
		return
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	h.completeJob(client, job, output)
}

func parseInput(variables string) (*Input, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(variables), &doc); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	if err := validation.ValidateDocument(doc, InputSchema); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return &input, nil
}

// Execute runs the opportunity fan-out. Exported for tests.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	result, err := h.dispatcher.MatchOpportunity(ctx, input.OpportunityID)
	if err != nil {
		return nil, err
	}

	return &Output{
		OpportunityID: input.OpportunityID,
		Processed:     result.Processed,
		Matched:       result.Matched,
		Notified:      result.Notified,
		Skipped:       result.Skipped,
		Failed:        result.Failed,
		CompletedAt:   time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err = cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) classifyError(err error, input *Input) *commonerrors.StandardError {
	if errors.Is(err, store.ErrNotFound) {
		return commonerrors.NewOpportunityNotFoundError(input.OpportunityID)
	}
	return commonerrors.NewStoreUnreachableError(err)
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, stdErr *commonerrors.StandardError) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.errorHandler.HandleJobError(context.Background(), client, job, stdErr)
}
