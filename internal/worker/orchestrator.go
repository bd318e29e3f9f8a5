package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidrelay/internal/ledger"
	"vidrelay/internal/models"
	"vidrelay/internal/store"
	"vidrelay/internal/telemetry"
	"vidrelay/internal/videoapi"
)

// Status messages shown to users.
const (
	msgPreparing     = "Preparing video generation..."
	msgSubmitting    = "Submitting task..."
	msgNoUpstreamID  = "No upstream task id returned"
	msgQueryFailed   = "Failed to query status"
	msgMissingFileID = "Missing file id in upstream result"
)

const (
	sinkRecordTimeout   = 5 * time.Second
	defaultPollInterval = 20 * time.Second
)

// API is the upstream surface a job needs.
type API interface {
	Submit(ctx context.Context, payload any) (videoapi.SubmitResult, error)
	Poll(ctx context.Context, taskID string) (videoapi.PollResult, error)
	ResolveDownload(ctx context.Context, fileID string) (string, error)
}

// ClientFactory builds an API client for one request's base URL and key.
type ClientFactory func(baseURL, apiKey string) (API, error)

// NewClientFactory returns a factory producing videoapi clients with timeout.
func NewClientFactory(timeout time.Duration) ClientFactory {
	return func(baseURL, apiKey string) (API, error) {
		return videoapi.New(videoapi.Options{BaseURL: baseURL, APIKey: apiKey, Timeout: timeout})
	}
}

// Notifier pushes a message to a session.
type Notifier interface {
	Send(sessionID string, msg any)
}

// Sink observes every applied transition. Errors are logged and ignored.
type Sink interface {
	Record(ctx context.Context, sessionID string, job models.Job) error
}

// Task is one job handed to the orchestrator.
type Task struct {
	JobID     string
	SessionID string
	Request   models.GenerationRequest
	Image     string
}

// Submission is returned to the client right after intake.
type Submission struct {
	SessionID string   `json:"session_id"`
	TaskIDs   []string `json:"task_ids"`
}

// Options wires an Orchestrator.
type Options struct {
	Jobs         *store.JobStore
	Ledger       *ledger.Ledger
	Notifier     Notifier
	Clients      ClientFactory
	Sinks        []Sink
	Supervisor   *Supervisor
	PollInterval time.Duration
	Logger       zerolog.Logger
}

// Orchestrator creates jobs and drives each one through the upstream
// submit/poll cycle in its own goroutine.
type Orchestrator struct {
	jobs         *store.JobStore
	ledger       *ledger.Ledger
	notifier     Notifier
	clients      ClientFactory
	sinks        []Sink
	supervisor   *Supervisor
	pollInterval time.Duration
	log          zerolog.Logger
}

func NewOrchestrator(opts Options) *Orchestrator {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Orchestrator{
		jobs:         opts.Jobs,
		ledger:       opts.Ledger,
		notifier:     opts.Notifier,
		clients:      opts.Clients,
		sinks:        opts.Sinks,
		supervisor:   opts.Supervisor,
		pollInterval: interval,
		log:          opts.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Dispatch mints a session, creates one job per image per requested video (or
// per requested video when there are no images) and starts them. It returns
// without waiting for the upstream.
func (o *Orchestrator) Dispatch(req models.GenerationRequest, clientIP string) Submission {
	sessionID := uuid.NewString()
	o.ledger.RecordRequest(sessionID, req.APIKey, clientIP)
	telemetry.RequestsAccepted.Inc()

	images := req.Images
	if len(images) == 0 {
		images = []string{""}
	}

	sub := Submission{SessionID: sessionID, TaskIDs: make([]string, 0, req.JobCount())}
	for _, image := range images {
		for i := 0; i < req.VideosPerImage; i++ {
			id := uuid.NewString()
			o.jobs.Create(id, msgPreparing)
			sub.TaskIDs = append(sub.TaskIDs, id)
			telemetry.JobsCreated.Inc()

			task := Task{JobID: id, SessionID: sessionID, Request: req, Image: image}
			o.supervisor.Go(func(ctx context.Context) { o.Run(ctx, task) })
		}
	}

	o.log.Info().
		Str("session_id", sessionID).
		Int("jobs", len(sub.TaskIDs)).
		Str("model", req.Model).
		Str("key", ledger.Fingerprint(req.APIKey)).
		Msg("generation request accepted")
	return sub
}

// Run drives one job to a terminal state. Any error or panic becomes a fail
// transition; cancellation of ctx (process shutdown) ends the job silently.
func (o *Orchestrator) Run(ctx context.Context, task Task) {
	log := o.log.With().Str("task_id", task.JobID).Str("session_id", task.SessionID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("job panicked")
			msg := fmt.Sprint(r)
			o.transition(ctx, task, log, models.Transition{Status: models.StatusFail, Message: "Processing error: " + msg, Error: msg})
		}
	}()

	err := o.run(ctx, task, log)
	if err == nil {
		return
	}
	if ctx.Err() != nil {
		log.Info().Err(err).Msg("job abandoned on shutdown")
		return
	}
	log.Warn().Err(err).Msg("job failed")
	o.transition(ctx, task, log, models.Transition{
		Status:  models.StatusFail,
		Message: "Processing error: " + err.Error(),
		Error:   err.Error(),
	})
}

func (o *Orchestrator) run(ctx context.Context, task Task, log zerolog.Logger) error {
	o.transition(ctx, task, log, models.Transition{Status: models.StatusQueued, Message: msgSubmitting})

	client, err := o.clients(task.Request.APIURL, task.Request.APIKey)
	if err != nil {
		return err
	}
	payload, err := videoapi.BuildPayload(task.Request, task.Image)
	if err != nil {
		return err
	}

	res, err := client.Submit(ctx, payload)
	if res.TraceID != "" {
		_ = o.jobs.SetTraceID(task.JobID, res.TraceID)
	}
	var apiErr *videoapi.APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Error()
		o.transition(ctx, task, log, models.Transition{Status: models.StatusFail, Message: "Generation failed: " + msg, Error: msg})
		return nil
	}
	if err != nil {
		return err
	}
	if res.TaskID == "" {
		o.transition(ctx, task, log, models.Transition{Status: models.StatusFail, Message: msgNoUpstreamID, Error: res.StatusMsg})
		return nil
	}

	log.Debug().Str("upstream_id", res.TaskID).Str("trace_id", res.TraceID).Msg("submitted upstream")
	o.transition(ctx, task, log, models.Transition{
		Status:  models.StatusQueued,
		Message: fmt.Sprintf("Queued (upstream id: %s)", res.TaskID),
	})

	return o.poll(ctx, task, client, res.TaskID, log)
}

// poll has no attempt ceiling: a job stuck upstream is polled until the
// service reports a terminal state or the process stops.
func (o *Orchestrator) poll(ctx context.Context, task Task, client API, upstreamID string, log zerolog.Logger) error {
	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.pollInterval):
		}

		telemetry.UpstreamPolls.Inc()
		st, err := client.Poll(ctx, upstreamID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.transition(ctx, task, log, models.Transition{Status: models.StatusFail, Message: msgQueryFailed, Error: err.Error()})
			return nil
		}

		elapsed := int(time.Since(start).Seconds())
		switch st.Status {
		case videoapi.StatusQueueing:
			o.transition(ctx, task, log, models.Transition{
				Status:  models.StatusQueued,
				Message: fmt.Sprintf("Queued (elapsed: %ds)", elapsed),
			})
		case videoapi.StatusProcessing:
			o.transition(ctx, task, log, models.Transition{
				Status:  models.StatusProcessing,
				Message: fmt.Sprintf("Generating (elapsed: %ds)", elapsed),
			})
		case videoapi.StatusSuccess:
			if st.FileID == "" {
				o.transition(ctx, task, log, models.Transition{Status: models.StatusFail, Message: msgMissingFileID})
				return nil
			}
			url, err := client.ResolveDownload(ctx, st.FileID)
			if err != nil {
				// A missing download link does not fail an otherwise finished job.
				log.Warn().Err(err).Str("file_id", st.FileID).Msg("download url not resolved")
				url = ""
			}
			o.transition(ctx, task, log, models.Transition{
				Status:   models.StatusSuccess,
				Message:  fmt.Sprintf("Generated in %ds", elapsed),
				VideoURL: url,
			})
			return nil
		case videoapi.StatusFail:
			o.transition(ctx, task, log, models.Transition{
				Status:  models.StatusFail,
				Message: fmt.Sprintf("Generation failed (elapsed: %ds)", elapsed),
			})
			return nil
		}
	}
}

// transition persists the change, updates usage, pushes the update and feeds
// the sinks. Updates for evicted jobs are dropped.
func (o *Orchestrator) transition(ctx context.Context, task Task, log zerolog.Logger, t models.Transition) {
	job, err := o.jobs.Transition(task.JobID, t)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Debug().Str("status", t.Status).Msg("job evicted, dropping update")
		return
	case err != nil:
		log.Warn().Err(err).Msg("transition rejected")
		return
	}

	o.ledger.Touch(task.SessionID)
	switch job.Status {
	case models.StatusSuccess:
		o.ledger.RecordOutcome(task.SessionID, ledger.OutcomeSuccess)
		telemetry.JobsSucceeded.Inc()
		log.Info().Str("message", job.Message).Msg("job succeeded")
	case models.StatusFail:
		o.ledger.RecordOutcome(task.SessionID, ledger.OutcomeFail)
		telemetry.JobsFailed.Inc()
		log.Info().Str("message", job.Message).Msg("job failed")
	}

	o.notifier.Send(task.SessionID, models.NewTaskUpdate(job))

	if len(o.sinks) == 0 {
		return
	}
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkRecordTimeout)
	defer cancel()
	for _, s := range o.sinks {
		if err := s.Record(sinkCtx, task.SessionID, job); err != nil {
			log.Warn().Err(err).Msg("transition sink failed")
		}
	}
}
