// Package lifecycle orchestrates the model retraining pipeline: backup,
// validation, training, evaluation, regression, the promotion gate, and
// export or rollback. Every run is appended to the history log.
package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"recipe-lab/models"
	"recipe-lab/pkg/artifacts"
	"recipe-lab/pkg/classifier"
	"recipe-lab/pkg/dataset"
	"recipe-lab/pkg/history"
	"recipe-lab/pkg/metrics"
	"recipe-lab/pkg/predictor"
	"recipe-lab/pkg/regression"
)

// StageResult is the outcome of one pipeline stage. Code 0 means the stage
// passed.
type StageResult struct {
	Name string
	Code int
	Err  error
}

// Stage is one unit of the pipeline. Run must respect ctx cancellation; a
// timed-out stage is a failure.
type Stage interface {
	Name() string
	Run(ctx context.Context) StageResult
}

type stageFunc struct {
	name string
	fn   func(context.Context) error
}

func (s stageFunc) Name() string { return s.name }

func (s stageFunc) Run(ctx context.Context) StageResult {
	done := make(chan error, 1)
	go func() { done <- s.fn(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			return StageResult{Name: s.name, Code: 1, Err: fmt.Errorf("%s stage: %w", s.name, err)}
		}
		return StageResult{Name: s.name, Code: 0}
	case <-ctx.Done():
		return StageResult{Name: s.name, Code: 1, Err: fmt.Errorf("%s stage: %w", s.name, ctx.Err())}
	}
}

// Orchestrator runs the retrain and metrics pipelines against one artifact
// store and predictor.
type Orchestrator struct {
	cfg   models.Config
	store *artifacts.Manager
	log   *history.History
	pred  *predictor.Predictor
}

func New(cfg models.Config, store *artifacts.Manager, log *history.History, pred *predictor.Predictor) *Orchestrator {
	return &Orchestrator{cfg: cfg, store: store, log: log, pred: pred}
}

// Result carries everything a run produced: the history entry, the metric
// reports, and any rollback or reload trouble.
type Result struct {
	Entry                 models.RunEntry          `json:"entry"`
	Eval                  *models.EvalReport       `json:"eval,omitempty"`
	FixedHoldout          *models.EvalReport       `json:"fixed_holdout,omitempty"`
	FixedHoldoutAvailable bool                     `json:"fixed_holdout_available"`
	Regression            *models.RegressionReport `json:"regression,omitempty"`
	BundlePath            string                   `json:"bundle_path,omitempty"`
	RollbackError         string                   `json:"rollback_error,omitempty"`
	ReloadError           string                   `json:"reload_error,omitempty"`
	StageErrors           map[string]string        `json:"stage_errors,omitempty"`
}

type runState struct {
	datasetDir string
	model      *classifier.Model
}

// Retrain runs the full pipeline. Validation and training halt the run on
// failure; evaluation and regression both always run so the history entry
// carries a complete picture. A failed gate or export rolls back to the
// pre-run artifacts and reloads the predictor.
func (o *Orchestrator) Retrain(ctx context.Context, datasetDir string) (*Result, error) {
	res := o.newResult("retrain", datasetDir)
	state := &runState{datasetDir: res.Entry.DatasetDir}

	backup, err := o.store.Backup()
	if err != nil {
		return nil, fmt.Errorf("backing up artifacts: %w", err)
	}

	if !o.record(res, o.runStage(ctx, "validate", func(c context.Context) error {
		return o.validate(state)
	})) {
		return o.finish(res)
	}
	if !o.record(res, o.runStage(ctx, "train", func(c context.Context) error {
		return o.train(state)
	})) {
		return o.finish(res)
	}

	gate := o.runMetricsStages(ctx, res, state)
	metricsOK := gate.Overall &&
		res.Entry.Stages["evaluate"] == 0 &&
		res.Entry.Stages["fixed_holdout"] == 0 &&
		res.Entry.Stages["regression"] == 0

	if metricsOK {
		exportOK := o.record(res, o.runStage(ctx, "export", func(c context.Context) error {
			bundle, err := artifacts.ExportBundle(o.store.ModelPath(), o.cfg.ExportDir)
			if err != nil {
				return err
			}
			res.BundlePath = bundle
			return nil
		}))
		if exportOK {
			o.reload(res)
		} else {
			o.rollback(res, backup)
		}
	} else {
		// Export is skipped, not failed, when the gate does not pass.
		res.Entry.Stages["export"] = 0
		o.rollback(res, backup)
	}

	res.Entry.Success = allStagesPassed(res.Entry.Stages) &&
		gate.Overall && res.Entry.Reloaded && !res.Entry.RolledBack
	return o.finish(res)
}

// RunMetrics evaluates the current serving model without retraining:
// holdout evaluation, fixed-holdout evaluation, and the regression harness.
func (o *Orchestrator) RunMetrics(ctx context.Context, datasetDir string) (*Result, error) {
	res := o.newResult("metrics", datasetDir)
	state := &runState{datasetDir: res.Entry.DatasetDir}

	gate := o.runMetricsStages(ctx, res, state)
	res.Entry.Success = allStagesPassed(res.Entry.Stages) && gate.Overall
	return o.finish(res)
}

// runMetricsStages runs evaluate, fixed-holdout, and regression; all three
// always run. Returns the gate verdict over whatever reports were produced.
func (o *Orchestrator) runMetricsStages(ctx context.Context, res *Result, state *runState) models.ThresholdReport {
	o.record(res, o.runStage(ctx, "evaluate", func(c context.Context) error {
		return o.evaluate(state, res)
	}))
	o.record(res, o.runStage(ctx, "fixed_holdout", func(c context.Context) error {
		return o.fixedHoldout(state, res)
	}))
	o.record(res, o.runStage(ctx, "regression", func(c context.Context) error {
		return o.regression(state, res)
	}))

	var eval models.EvalReport
	if res.Eval != nil {
		eval = *res.Eval
	}
	var reg models.RegressionReport
	if res.Regression != nil {
		reg = *res.Regression
	}
	gate := metrics.Gate(eval, reg, o.cfg.Thresholds)
	res.Entry.Thresholds = &gate
	return gate
}

func (o *Orchestrator) validate(state *runState) error {
	result, err := dataset.Validate(state.datasetDir)
	if err != nil {
		return err
	}
	if !result.IsValid {
		return fmt.Errorf("dataset validation failed with %d errors, first: %s",
			len(result.Errors), result.Errors[0])
	}
	return nil
}

func (o *Orchestrator) train(state *runState) error {
	rows, err := dataset.LoadLineRows(state.datasetDir, nil, []string{o.cfg.HoldoutPrefix})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no training rows in %s", state.datasetDir)
	}

	trainRows, _, split := dataset.SplitRows(rows, o.cfg.HoldoutRatio)
	model := classifier.Train(trainRows)
	if err := classifier.Save(model, o.store.ModelPath()); err != nil {
		return err
	}
	if err := classifier.SaveJSON(model, o.store.ModelJSONPath()); err != nil {
		return err
	}
	if err := o.store.WriteSplit(split); err != nil {
		return err
	}
	state.model = model
	return nil
}

func (o *Orchestrator) servingModel(state *runState) (*classifier.Model, error) {
	if state.model != nil {
		return state.model, nil
	}
	model, err := classifier.Load(o.store.ModelPath())
	if err != nil {
		return nil, err
	}
	state.model = model
	return model, nil
}

// evaluate scores the model on its holdout rows. When a split record
// exists the rows are restricted to the recorded holdout examples;
// otherwise the split is re-derived from the dataset.
func (o *Orchestrator) evaluate(state *runState, res *Result) error {
	model, err := o.servingModel(state)
	if err != nil {
		return err
	}
	rows, err := dataset.LoadLineRows(state.datasetDir, nil, []string{o.cfg.HoldoutPrefix})
	if err != nil {
		return err
	}

	split, err := o.store.ReadSplit()
	if err != nil {
		return err
	}
	if split != nil && len(split.HoldoutExamples) > 0 {
		held := make(map[string]struct{}, len(split.HoldoutExamples))
		for _, entry := range split.HoldoutExamples {
			held[fmt.Sprintf("%s#%d", entry.DocID, entry.LineIndex)] = struct{}{}
		}
		var filtered []models.LineRow
		for _, row := range rows {
			if _, ok := held[fmt.Sprintf("%s#%d", row.DocID, row.LineIndex)]; ok {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	} else {
		_, rows, _ = dataset.SplitRows(rows, o.cfg.HoldoutRatio)
	}
	if len(rows) == 0 {
		return fmt.Errorf("no holdout rows to evaluate in %s", state.datasetDir)
	}

	preds, err := predictor.New(model).PredictRows(rows)
	if err != nil {
		return err
	}
	report := metrics.Compute(preds)
	res.Eval = &report
	return nil
}

// fixedHoldout evaluates docs carrying the holdout id prefix. The report is
// informational only; no threshold is applied, and a dataset without such
// docs skips the stage.
func (o *Orchestrator) fixedHoldout(state *runState, res *Result) error {
	model, err := o.servingModel(state)
	if err != nil {
		return err
	}
	rows, err := dataset.LoadLineRows(state.datasetDir, []string{o.cfg.HoldoutPrefix}, nil)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	res.FixedHoldoutAvailable = true

	preds, err := predictor.New(model).PredictRows(rows)
	if err != nil {
		return err
	}
	report := metrics.Compute(preds)
	res.FixedHoldout = &report
	return nil
}

func (o *Orchestrator) regression(state *runState, res *Result) error {
	model, err := o.servingModel(state)
	if err != nil {
		return err
	}
	fixtures, err := regression.LoadFixtures(filepath.Join(state.datasetDir, "regression"))
	if err != nil {
		return err
	}
	report, _ := regression.Run(model, fixtures, o.cfg.Thresholds.LowConfidenceFloor)
	res.Regression = &report

	if report.NoteLeakageRate > o.cfg.Thresholds.NoteLeakage {
		return fmt.Errorf("note leakage %.4f exceeds %.4f", report.NoteLeakageRate, o.cfg.Thresholds.NoteLeakage)
	}
	if report.IngredientStepSwapRate > o.cfg.Thresholds.SwapRate {
		return fmt.Errorf("ingredient/step swap %.4f exceeds %.4f", report.IngredientStepSwapRate, o.cfg.Thresholds.SwapRate)
	}
	return nil
}

func (o *Orchestrator) rollback(res *Result, backup *artifacts.Backup) {
	restored, err := o.store.Restore(backup)
	if err != nil {
		res.RollbackError = err.Error()
	}
	res.Entry.RolledBack = restored
	if restored {
		o.reload(res)
	}
}

// reload swaps the serving predictor to the on-disk model. A reload failure
// is recorded, not retried; the predictor keeps its previous model.
func (o *Orchestrator) reload(res *Result) {
	if o.pred == nil {
		return
	}
	if err := o.pred.Reload(o.store.ModelPath()); err != nil {
		res.ReloadError = err.Error()
		return
	}
	res.Entry.Reloaded = true
}

func (o *Orchestrator) runStage(ctx context.Context, name string, fn func(context.Context) error) StageResult {
	if o.cfg.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.StageTimeout)
		defer cancel()
	}
	return stageFunc{name: name, fn: fn}.Run(ctx)
}

func (o *Orchestrator) record(res *Result, r StageResult) bool {
	res.Entry.Stages[r.Name] = r.Code
	if r.Err != nil {
		res.StageErrors[r.Name] = r.Err.Error()
	}
	return r.Code == 0
}

func (o *Orchestrator) newResult(action, datasetDir string) *Result {
	if datasetDir == "" {
		datasetDir = o.cfg.DatasetDir
	}
	return &Result{
		Entry: models.RunEntry{
			ID:         uuid.NewString(),
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
			Action:     action,
			DatasetDir: datasetDir,
			ModelPath:  o.store.ModelPath(),
			Stages:     map[string]int{},
		},
		StageErrors: map[string]string{},
	}
}

func (o *Orchestrator) finish(res *Result) (*Result, error) {
	if o.log != nil {
		if err := o.log.Append(res.Entry); err != nil {
			return res, fmt.Errorf("recording run history: %w", err)
		}
	}
	return res, nil
}

func allStagesPassed(stages map[string]int) bool {
	for _, code := range stages {
		if code != 0 {
			return false
		}
	}
	return true
}
