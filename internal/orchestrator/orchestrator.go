// Package orchestrator drives the fixed three-stage extraction pipeline
// for one session: page discovery, batched parallel content extraction,
// and result integration. Collaborator failures degrade individual stages;
// only a failure of the orchestration itself fails the job.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/aggregate"
	"github.com/sells-group/extraction-service/internal/batch"
	"github.com/sells-group/extraction-service/internal/model"
	"github.com/sells-group/extraction-service/internal/session"
)

// Discoverer produces the list of work units for a job. Its internals
// (LLM reasoning, crawling strategy) are opaque to the pipeline.
type Discoverer interface {
	DiscoverPages(ctx context.Context, url, requirements string) ([]model.WorkUnit, error)
}

// Extractor converts one discovered page into raw worker output. The
// output is normalized by the batch decode step, not here.
type Extractor interface {
	ExtractPage(ctx context.Context, unit model.WorkUnit, requirements string) (string, error)
}

// Notifier delivers session updates to a live progress connection.
// Delivery is best-effort and fire-and-forget; the pipeline never blocks
// on it and never learns transport errors.
type Notifier interface {
	Send(sessionID string, v any) bool
}

// Config controls pipeline execution.
type Config struct {
	// MaxConcurrency caps in-flight extraction handlers. Default 2.
	MaxConcurrency int
	// StartDelay gives the client's progress connection a moment to
	// attach before the first stage update is emitted.
	StartDelay time.Duration
}

// Orchestrator runs extraction pipelines against a session store.
type Orchestrator struct {
	store      *session.Store
	discoverer Discoverer
	extractor  Extractor
	notify     Notifier
	cfg        Config
}

// New wires the orchestrator's collaborators.
func New(store *session.Store, d Discoverer, e Extractor, n Notifier, cfg Config) *Orchestrator {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 2
	}
	return &Orchestrator{
		store:      store,
		discoverer: d,
		extractor:  e,
		notify:     n,
		cfg:        cfg,
	}
}

// Start launches the pipeline in the background. ctx must be the session
// context minted by the store so teardown cancels in-flight work.
func (o *Orchestrator) Start(ctx context.Context, sessionID string) {
	go o.Run(ctx, sessionID)
}

// Run executes the pipeline to its terminal state. Degraded stages still
// complete the job; only a panic escaping the orchestration marks the
// session failed.
func (o *Orchestrator) Run(ctx context.Context, sessionID string) {
	log := zap.L().With(zap.String("session_id", sessionID))

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("extraction pipeline failed: %v", r)
			log.Error("orchestrator failure", zap.Any("panic", r))
			o.store.SetError(sessionID, msg)
			o.send(sessionID, model.ErrorMessage{Type: model.MsgExtractionError, Error: msg})
		}
	}()

	if o.cfg.StartDelay > 0 {
		select {
		case <-time.After(o.cfg.StartDelay):
		case <-ctx.Done():
			return
		}
	}

	sess, err := o.store.Get(sessionID)
	if err != nil {
		log.Warn("session gone before pipeline start")
		return
	}

	units := o.runDiscovery(ctx, log, sess)
	results := o.runExtraction(ctx, log, sessionID, sess.Requirements, units)
	o.runIntegration(log, sessionID, results)

	if ctx.Err() != nil {
		// Session was torn down mid-flight; the store has already dropped
		// our updates and there is nobody left to notify.
		return
	}

	o.store.SetStatus(sessionID, model.SessionCompleted)
	final, err := o.store.Get(sessionID)
	if err != nil {
		return
	}
	log.Info("extraction pipeline completed",
		zap.Int("units", len(units)),
		zap.Bool("has_result", final.Result != nil),
	)
	o.send(sessionID, model.CompletedMessage{Type: model.MsgExtractionCompleted, Result: final.Result})
}

// runDiscovery invokes the discovery collaborator once. A collaborator
// failure completes the stage with the failure detail and degrades to an
// empty unit list; the pipeline continues rather than aborting. This is
// deliberate: no results beats no job.
func (o *Orchestrator) runDiscovery(ctx context.Context, log *zap.Logger, sess *model.Session) []model.WorkUnit {
	o.store.SetStatus(sess.ID, model.SessionDiscovery)
	o.updateStage(sess.ID, model.StageDiscovery, model.StageInProgress, 0, "")

	units, err := o.discoverer.DiscoverPages(ctx, sess.URL, sess.Requirements)
	if err != nil {
		log.Warn("page discovery failed", zap.Error(err))
		o.updateStage(sess.ID, model.StageDiscovery, model.StageCompleted, 100,
			fmt.Sprintf("Discovery failed: %s", err))
		return nil
	}

	log.Info("page discovery completed", zap.Int("pages", len(units)))
	o.updateStage(sess.ID, model.StageDiscovery, model.StageCompleted, 100,
		fmt.Sprintf("Discovered %d pages", len(units)))
	return units
}

// runExtraction fans the units out through the batch scheduler. Handler
// errors become error-marker results; the stage completes either way.
func (o *Orchestrator) runExtraction(ctx context.Context, log *zap.Logger, sessionID, requirements string, units []model.WorkUnit) []model.UnitResult {
	if len(units) == 0 {
		o.updateStage(sessionID, model.StageExtraction, model.StageCompleted, 100, "No pages discovered")
		return nil
	}

	o.store.SetStatus(sessionID, model.SessionExtraction)
	o.updateStage(sessionID, model.StageExtraction, model.StageInProgress, 0, "Starting content extraction...")

	handler := func(ctx context.Context, unit model.WorkUnit) (model.Output, error) {
		raw, err := o.extractor.ExtractPage(ctx, unit, requirements)
		if err != nil {
			return model.Output{}, err
		}
		return batch.Decode(raw), nil
	}

	results := batch.Run(ctx, units, handler, o.cfg.MaxConcurrency, func(completed, total int) {
		o.updateStage(sessionID, model.StageExtraction, model.StageInProgress,
			completed*100/total,
			fmt.Sprintf("Extracted %d/%d pages", completed, total))
	})

	var succeeded int
	for _, r := range results {
		if !r.Failed() && r.Output.Kind == model.OutputStructured {
			succeeded++
		}
	}
	log.Info("content extraction completed",
		zap.Int("units", len(units)),
		zap.Int("succeeded", succeeded),
	)
	o.updateStage(sessionID, model.StageExtraction, model.StageCompleted, 100,
		fmt.Sprintf("Extracted data from %d of %d pages", succeeded, len(units)))
	return results
}

// runIntegration aggregates structured records into the final artifact.
// Zero records completes the stage without setting a result.
func (o *Orchestrator) runIntegration(log *zap.Logger, sessionID string, results []model.UnitResult) {
	o.store.SetStatus(sessionID, model.SessionIntegration)
	o.updateStage(sessionID, model.StageIntegration, model.StageInProgress, 0, "Integrating results...")

	var hasRecords bool
	for _, r := range results {
		if !r.Failed() && r.Output.Kind == model.OutputStructured && len(r.Output.Records) > 0 {
			hasRecords = true
			break
		}
	}
	if !hasRecords {
		o.updateStage(sessionID, model.StageIntegration, model.StageCompleted, 100, "No data to integrate")
		return
	}

	res := aggregate.Integrate(results, fmt.Sprintf("/api/v1/extraction/%s/download", sessionID))
	o.store.SetResult(sessionID, res)
	o.updateStage(sessionID, model.StageIntegration, model.StageCompleted, 100,
		fmt.Sprintf("Integrated %d items", res.Records))
}

// updateStage writes through the store and pushes the resulting snapshot
// to the progress connection, if any. Dropped writes (deleted or terminal
// sessions) emit nothing.
func (o *Orchestrator) updateStage(sessionID string, idx int, status model.StageStatus, progress int, details string) {
	snap, ok := o.store.UpdateStage(sessionID, idx, status, progress, details)
	if !ok {
		return
	}
	o.send(sessionID, model.StageUpdateMessage{
		Type:            model.MsgStageUpdate,
		StageIndex:      idx,
		Stage:           snap.Stages[idx],
		OverallProgress: snap.OverallProgress(),
	})
}

func (o *Orchestrator) send(sessionID string, v any) {
	if o.notify == nil {
		return
	}
	o.notify.Send(sessionID, v)
}
