// Package builder contains the round-aware build orchestration state
// machine. Given an accepted request it decides whether to create a new
// deliverable or revise an existing one, reconciles missing prior state,
// and guarantees exactly one notification attempt sequence per build.
package builder

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/appbuilder/internal/attach"
	"git.home.luguber.info/inful/appbuilder/internal/events"
	"git.home.luguber.info/inful/appbuilder/internal/forge"
	"git.home.luguber.info/inful/appbuilder/internal/history"
	"git.home.luguber.info/inful/appbuilder/internal/logfields"
	"git.home.luguber.info/inful/appbuilder/internal/metrics"
	"git.home.luguber.info/inful/appbuilder/internal/notify"
	"git.home.luguber.info/inful/appbuilder/internal/observability"
)

// Outcome tags which orchestration path produced the deliverable.
type Outcome string

const (
	OutcomeCreated           Outcome = "created"
	OutcomeRevised           Outcome = "revised"
	OutcomeCreatedAsFallback Outcome = "created_fallback"
	OutcomeFailed            Outcome = "failed"
)

// BuildRequest is one validated inbound build request. Immutable once
// received; the task identifier is the aggregate key across rounds.
type BuildRequest struct {
	Email         string              `json:"email"`
	Secret        string              `json:"secret"`
	Task          string              `json:"task"`
	Round         int                 `json:"round"`
	Nonce         string              `json:"nonce"`
	Brief         string              `json:"brief"`
	Checks        []string            `json:"checks"`
	EvaluationURL string              `json:"evaluation_url"`
	Attachments   []attach.Attachment `json:"attachments,omitempty"`
}

// Result reports which path executed and what was published.
type Result struct {
	Outcome       Outcome
	OK            bool
	RepoURL       string
	PagesURL      string
	CommitSHA     string
	ReportedRound int
	Notified      bool
}

// Generator produces a self-contained HTML document for a brief.
type Generator interface {
	Generate(ctx context.Context, brief string, attachments []attach.Attachment, round int) (string, error)
}

// Publisher abstracts the external repository provider.
type Publisher interface {
	CreateRepository(ctx context.Context, name, description string) (*forge.RepoHandle, error)
	GetRepository(ctx context.Context, name string) (*forge.RepoHandle, error)
	UpsertFile(ctx context.Context, handle *forge.RepoHandle, path string, content forge.FileContent, message string) error
	EnablePages(ctx context.Context, handle *forge.RepoHandle) error
	LatestRevision(ctx context.Context, handle *forge.RepoHandle) (string, error)
	UpdateExistingFiles(ctx context.Context, repoURL string, files []forge.File, message string) (string, error)
	PagesURL(name string) string
	Owner() string
}

// Store persists build requests and publishing results per (task, round).
type Store interface {
	SaveRequest(ctx context.Context, rec *history.RequestRecord) error
	FindRequest(ctx context.Context, task string, round int) (*history.RequestRecord, error)
	DeleteRound(ctx context.Context, task string, round int) error
	SaveResult(ctx context.Context, rec *history.ResultRecord) error
	FindResult(ctx context.Context, task string, round int) (*history.ResultRecord, error)
}

// Notifier delivers the completion payload to the evaluation endpoint.
type Notifier interface {
	Notify(ctx context.Context, url string, payload notify.Payload) bool
}

// Orchestrator sequences generation, publishing, history, and
// notification for one build at a time per task.
type Orchestrator struct {
	generator Generator
	publisher Publisher
	store     Store
	notifier  Notifier
	emitter   events.Emitter
	recorder  metrics.Recorder
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithEmitter sets the lifecycle event emitter.
func WithEmitter(e events.Emitter) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.emitter = e
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(g Generator, p Publisher, s Store, n Notifier, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		generator: g,
		publisher: p,
		store:     s,
		notifier:  n,
		emitter:   events.NoopEmitter{},
		recorder:  metrics.NoopRecorder{},
		logger:    logger,
		locks:     map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// taskLock returns the mutex serializing builds for one task. Concurrent
// round-1 resubmissions otherwise interleave delete/insert; the store's
// unique constraint is the backstop, this is the front door.
func (o *Orchestrator) taskLock(task string) *sync.Mutex {
	key := strings.ToLower(task)
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.locks[key]
	if !ok {
		l = &sync.Mutex{}
		o.locks[key] = l
	}
	return l
}

// Run executes one build end to end. The returned result's OK field is
// the orchestrator's contract with the front door: true means the
// deliverable was published (notification delivery is reported
// separately and never retroactively fails a build).
func (o *Orchestrator) Run(ctx context.Context, buildID string, req *BuildRequest) Result {
	lock := o.taskLock(req.Task)
	lock.Lock()
	defer lock.Unlock()

	// Downstream packages log through the build's context; outgoing
	// requests made on this ctx carry the build identity in their logs.
	ctx = observability.WithBuildID(ctx, buildID)
	ctx = observability.WithTask(ctx, req.Task)
	ctx = observability.WithRound(ctx, req.Round)
	ctx = observability.WithNonce(ctx, req.Nonce)

	started := time.Now()
	log := o.logger.With(
		logfields.BuildID(buildID),
		logfields.Task(req.Task),
		logfields.Round(req.Round),
		logfields.Nonce(req.Nonce))

	log.Info("build started")

	var res Result
	if req.Round == 1 {
		res = o.runRound1(ctx, log, req)
	} else {
		res = o.runRound2(ctx, log, req)
	}

	elapsed := time.Since(started)
	o.recorder.ObserveBuildDuration(elapsed)
	o.recorder.IncBuildOutcome(string(res.Outcome))

	if res.OK {
		log.Info("build finished",
			logfields.Outcome(string(res.Outcome)),
			logfields.Repository(res.RepoURL),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
		o.emit(&events.BuildEvent{
			Type: events.TypeBuildCompleted, BuildID: buildID,
			Task: req.Task, Round: res.ReportedRound, Nonce: req.Nonce,
			Outcome: string(res.Outcome), RepoURL: res.RepoURL,
		})
	} else {
		log.Error("build failed",
			logfields.Outcome(string(res.Outcome)),
			logfields.DurationMS(float64(elapsed.Milliseconds())))
		o.emit(&events.BuildEvent{
			Type: events.TypeBuildFailed, BuildID: buildID,
			Task: req.Task, Round: req.Round, Nonce: req.Nonce,
			Outcome: string(res.Outcome),
		})
	}
	return res
}

func (o *Orchestrator) emit(ev *events.BuildEvent) {
	if err := o.emitter.Emit(ev); err != nil {
		o.logger.Warn("event publish failed", logfields.Error(err))
	}
}

// runRound1 replaces any prior round-1 state for the task and executes
// the create path. Resubmission of round 1 is an idempotent restart.
func (o *Orchestrator) runRound1(ctx context.Context, log *slog.Logger, req *BuildRequest) Result {
	if err := o.store.DeleteRound(ctx, req.Task, 1); err != nil {
		log.Error("clearing prior round-1 history failed", logfields.Error(err))
		return Result{Outcome: OutcomeFailed}
	}
	if err := o.saveRequest(ctx, req, 1, req.Checks); err != nil {
		log.Error("recording build request failed", logfields.Error(err))
		return Result{Outcome: OutcomeFailed}
	}
	return o.createPath(ctx, log, req, req.Brief, 1, 1, OutcomeCreated)
}

// runRound2 revises the round-1 deliverable in place. When round-1
// history is missing it falls back first to the repository naming
// convention, then to a fresh create recorded and reported as round 1.
func (o *Orchestrator) runRound2(ctx context.Context, log *slog.Logger, req *BuildRequest) Result {
	prevReq, err := o.store.FindRequest(ctx, req.Task, 1)
	if err != nil {
		log.Error("round-1 request lookup failed", logfields.Error(err))
		return Result{Outcome: OutcomeFailed}
	}
	prevRes, err := o.store.FindResult(ctx, req.Task, 1)
	if err != nil {
		log.Error("round-1 result lookup failed", logfields.Error(err))
		return Result{Outcome: OutcomeFailed}
	}

	if prevReq != nil && prevRes != nil {
		if err := o.store.DeleteRound(ctx, req.Task, req.Round); err != nil {
			log.Error("clearing prior round-2 history failed", logfields.Error(err))
			return Result{Outcome: OutcomeFailed}
		}
		if err := o.saveRequest(ctx, req, req.Round, combineChecks(prevReq.Checks, req.Checks)); err != nil {
			log.Error("recording build request failed", logfields.Error(err))
			return Result{Outcome: OutcomeFailed}
		}
		brief := combineBriefs(prevReq.Brief, req.Brief)
		return o.revisePath(ctx, log, req, brief, prevRes.RepoURL, prevRes.PagesURL, req.Round, req.Round, false)
	}

	log.Warn("round-1 history not found, trying repository naming convention")

	repoName := forge.RepoName(req.Task)
	handle, err := o.publisher.GetRepository(ctx, repoName)
	if err == nil && handle != nil {
		log.Info("found existing repository, revising without history",
			logfields.Repository(handle.HTMLURL))
		if err := o.store.DeleteRound(ctx, req.Task, req.Round); err != nil {
			log.Error("clearing prior history failed", logfields.Error(err))
			return Result{Outcome: OutcomeFailed}
		}
		if err := o.saveRequest(ctx, req, req.Round, req.Checks); err != nil {
			log.Error("recording build request failed", logfields.Error(err))
			return Result{Outcome: OutcomeFailed}
		}
		pagesURL := o.publisher.PagesURL(handle.Name)
		return o.revisePath(ctx, log, req, req.Brief, handle.HTMLURL, pagesURL, req.Round, req.Round, true)
	}

	log.Warn("no existing repository found, creating fresh deliverable as round 1")

	// The fallback create persists and reports round 1 regardless of the
	// requested round: this instance never observed the state the caller
	// is revising.
	if err := o.store.DeleteRound(ctx, req.Task, 1); err != nil {
		log.Error("clearing prior round-1 history failed", logfields.Error(err))
		return Result{Outcome: OutcomeFailed}
	}
	if err := o.saveRequest(ctx, req, 1, req.Checks); err != nil {
		log.Error("recording build request failed", logfields.Error(err))
		return Result{Outcome: OutcomeFailed}
	}
	return o.createPath(ctx, log, req, req.Brief, 1, 1, OutcomeCreatedAsFallback)
}

func (o *Orchestrator) saveRequest(ctx context.Context, req *BuildRequest, round int, checks []string) error {
	return o.store.SaveRequest(ctx, &history.RequestRecord{
		Email:         req.Email,
		Task:          req.Task,
		Round:         round,
		Nonce:         req.Nonce,
		Brief:         req.Brief,
		Checks:        checks,
		EvaluationURL: req.EvaluationURL,
		Attachments:   req.Attachments,
	})
}

// createPath builds a fresh repository, publishes the generated app with
// license, README, and attachments, enables serving, records the result,
// and notifies.
func (o *Orchestrator) createPath(ctx context.Context, log *slog.Logger, req *BuildRequest, brief string, persistRound, reportRound int, outcome Outcome) Result {
	resolved := attach.Resolve(req.Attachments)
	code := o.generateOrFallback(ctx, log, brief, req.Attachments, 1)

	repoName := forge.RepoName(req.Task)
	handle, err := o.publisher.CreateRepository(ctx, repoName, "Auto-generated app for task "+req.Task)
	if err != nil {
		// A round-1 restart may hit an existing repository; usable is
		// what matters, not freshly created.
		log.Warn("repository creation failed, trying existing", logfields.Error(err))
		handle, err = o.publisher.GetRepository(ctx, repoName)
		if err != nil {
			log.Error("no usable repository", logfields.Error(err))
			return Result{Outcome: OutcomeFailed}
		}
	}

	pagesURL := o.publisher.PagesURL(handle.Name)
	files := []forge.File{
		{Path: "index.html", Content: forge.Text(code)},
		{Path: "LICENSE", Content: forge.Text(mitLicense(o.publisher.Owner()))},
		{Path: "README.md", Content: forge.Text(readme(req.Task, brief, persistRound, handle.HTMLURL, pagesURL))},
	}
	files = append(files, attachmentFiles(resolved)...)

	message := "Initial commit for task " + req.Task
	if outcome == OutcomeCreatedAsFallback {
		message += " (Round 2 fallback)"
	}

	sha, ok := o.publish(ctx, log, handle, files, message)
	if !ok {
		return Result{Outcome: OutcomeFailed}
	}

	if err := o.publisher.EnablePages(ctx, handle); err != nil {
		log.Error("enabling public serving failed", logfields.Error(err))
		return Result{Outcome: OutcomeFailed}
	}

	if err := o.store.SaveResult(ctx, &history.ResultRecord{
		Task: req.Task, Round: persistRound,
		RepoURL: handle.HTMLURL, CommitSHA: sha, PagesURL: pagesURL,
	}); err != nil {
		log.Error("recording build result failed", logfields.Error(err))
		return Result{Outcome: OutcomeFailed}
	}

	notified := o.notifyResult(ctx, log, req, reportRound, handle.HTMLURL, sha, pagesURL)
	return Result{
		Outcome: outcome, OK: true,
		RepoURL: handle.HTMLURL, PagesURL: pagesURL, CommitSHA: sha,
		ReportedRound: reportRound, Notified: notified,
	}
}

// revisePath regenerates the entry point against the combined brief and
// updates the existing repository in place. The license file and the
// round-1 repository/serving URLs are left untouched.
func (o *Orchestrator) revisePath(ctx context.Context, log *slog.Logger, req *BuildRequest, brief, repoURL, pagesURL string, persistRound, reportRound int, fallback bool) Result {
	resolved := attach.Resolve(req.Attachments)
	code := o.generateOrFallback(ctx, log, brief, req.Attachments, 2)

	files := []forge.File{
		{Path: "index.html", Content: forge.Text(code)},
		{Path: "README.md", Content: forge.Text(readme(req.Task, brief, persistRound, repoURL, pagesURL))},
	}
	files = append(files, attachmentFiles(resolved)...)

	message := "Round 2 update for task " + req.Task
	if fallback {
		message += " (fallback)"
	}

	start := time.Now()
	sha, err := o.publisher.UpdateExistingFiles(observability.WithStage(ctx, "publish"), repoURL, files, message)
	o.recorder.ObserveStageDuration("publish", time.Since(start))
	if err != nil {
		log.Error("repository update failed", logfields.Error(err))
		return Result{Outcome: OutcomeFailed}
	}

	// Re-trigger serving; already-enabled is a no-op.
	repoName := forge.RepoName(req.Task)
	if handle, err := o.publisher.GetRepository(ctx, repoName); err == nil {
		if err := o.publisher.EnablePages(ctx, handle); err != nil {
			log.Warn("re-enabling public serving failed", logfields.Error(err))
		}
	}

	if err := o.store.SaveResult(ctx, &history.ResultRecord{
		Task: req.Task, Round: persistRound,
		RepoURL: repoURL, CommitSHA: sha, PagesURL: pagesURL,
	}); err != nil {
		log.Error("recording build result failed", logfields.Error(err))
		return Result{Outcome: OutcomeFailed}
	}

	notified := o.notifyResult(ctx, log, req, reportRound, repoURL, sha, pagesURL)
	return Result{
		Outcome: OutcomeRevised, OK: true,
		RepoURL: repoURL, PagesURL: pagesURL, CommitSHA: sha,
		ReportedRound: reportRound, Notified: notified,
	}
}

// generateOrFallback never fails: a generation error is recovered with
// the fixed error page so the pipeline always publishes coherent markup.
func (o *Orchestrator) generateOrFallback(ctx context.Context, log *slog.Logger, brief string, attachments []attach.Attachment, round int) string {
	ctx = observability.WithStage(ctx, "generate")
	start := time.Now()
	code, err := o.generator.Generate(ctx, brief, attachments, round)
	o.recorder.ObserveStageDuration("generate", time.Since(start))
	if err != nil {
		log.Warn("generation failed, publishing fallback page", logfields.Error(err))
		o.recorder.IncGenerationFallback()
		return fallbackPage
	}
	return code
}

// publish upserts each file individually. Per-file failures are logged
// and tolerated; zero files written is fatal, as is failing to read the
// resulting revision identifier.
func (o *Orchestrator) publish(ctx context.Context, log *slog.Logger, handle *forge.RepoHandle, files []forge.File, message string) (string, bool) {
	ctx = observability.WithStage(ctx, "publish")
	start := time.Now()
	defer func() { o.recorder.ObserveStageDuration("publish", time.Since(start)) }()

	written := 0
	for _, f := range files {
		if err := o.publisher.UpsertFile(ctx, handle, f.Path, f.Content, message); err != nil {
			log.Warn("file publish failed", logfields.Path(f.Path), logfields.Error(err))
			continue
		}
		written++
	}
	if written == 0 {
		log.Error("publish wrote no files")
		return "", false
	}

	sha, err := o.publisher.LatestRevision(ctx, handle)
	if err != nil {
		log.Error("revision lookup failed", logfields.Error(err))
		return "", false
	}
	return sha, true
}

func (o *Orchestrator) notifyResult(ctx context.Context, log *slog.Logger, req *BuildRequest, round int, repoURL, sha, pagesURL string) bool {
	ctx = observability.WithStage(ctx, "notify")
	start := time.Now()
	delivered := o.notifier.Notify(ctx, req.EvaluationURL, notify.Payload{
		Email:     req.Email,
		Task:      req.Task,
		Round:     round,
		Nonce:     req.Nonce,
		RepoURL:   repoURL,
		CommitSHA: sha,
		PagesURL:  pagesURL,
	})
	o.recorder.ObserveStageDuration("notify", time.Since(start))
	o.recorder.IncNotifyResult(delivered)
	if !delivered {
		log.Error("evaluation endpoint not notified")
	}
	return delivered
}

func attachmentFiles(resolved []attach.Resolved) []forge.File {
	files := make([]forge.File, 0, len(resolved))
	for _, r := range resolved {
		if r.IsText() {
			files = append(files, forge.File{Path: r.Name, Content: forge.Text(string(r.Data))})
		} else {
			files = append(files, forge.File{Path: r.Name, Content: forge.Bytes(r.Data)})
		}
	}
	return files
}

// combineChecks concatenates the round-1 checks with the revision's,
// order preserved, for the persisted round-2 record.
func combineChecks(original, revision []string) []string {
	if len(original) == 0 {
		return revision
	}
	combined := make([]string, 0, len(original)+len(revision))
	combined = append(combined, original...)
	return append(combined, revision...)
}

// combineBriefs merges the round-1 brief with the revision request under
// an explicit instruction to preserve existing functionality.
func combineBriefs(original, revision string) string {
	return `
ORIGINAL REQUEST (Round 1):
` + original + `

REVISION REQUEST (Round 2):
` + revision + `

Please update the existing application to include the new requirements while maintaining all existing functionality.
`
}
