package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"roomcal/internal/export"
	appLog "roomcal/internal/log"
	"roomcal/internal/source"
)

// DatasetLoader loads the schedule dataset from a location.
type DatasetLoader interface {
	Load(ctx context.Context, location string) (*source.Dataset, error)
}

// Config selects what a Worker regenerates and where it writes it.
type Config struct {
	Source    string
	OutputDir string
	// Terms to regenerate. Empty means every term of the dataset.
	Terms []string
	// Spec is a standard 5-field cron spec. Empty disables the schedule;
	// RunOnce still works.
	Spec string
}

// Worker periodically regenerates every room calendar into OutputDir.
type Worker struct {
	cfg      Config
	loader   DatasetLoader
	exporter *export.Exporter
	// OnRun is called after each successful run, e.g. to drop API caches.
	OnRun func()

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
}

func New(cfg Config, loader DatasetLoader, exporter *export.Exporter) *Worker {
	return &Worker{cfg: cfg, loader: loader, exporter: exporter}
}

// Start runs once immediately, then on the cron schedule until Stop.
func (w *Worker) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)

	if _, err := w.RunOnce(runCtx); err != nil {
		appLog.Error("worker: initial run failed", err)
	}
	if w.cfg.Spec == "" {
		cancel()
		appLog.Info("worker: no refresh schedule configured")
		return nil
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(w.cfg.Spec, func() {
		if _, err := w.RunOnce(runCtx); err != nil {
			appLog.Error("worker: scheduled run failed", err)
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("worker: schedule %q: %w", w.cfg.Spec, err)
	}
	c.Start()

	w.mu.Lock()
	w.cron = c
	w.cancel = cancel
	w.mu.Unlock()
	appLog.Info("worker: scheduled", "spec", w.cfg.Spec)
	return nil
}

// Stop cancels in-flight work and waits for a running job to finish.
func (w *Worker) Stop() {
	w.mu.Lock()
	c, cancel := w.cron, w.cancel
	w.cron, w.cancel = nil, nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
}

// RunOnce loads the dataset and writes documents plus a bundle for every
// selected term. It returns the results of the terms that succeeded.
func (w *Worker) RunOnce(ctx context.Context) ([]*export.Result, error) {
	ds, err := w.loader.Load(ctx, w.cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("worker: load dataset: %w", err)
	}

	terms := w.cfg.Terms
	if len(terms) == 0 {
		terms = ds.TermNames()
	}

	var results []*export.Result
	var errs []error
	for _, term := range terms {
		res, err := w.runTerm(ctx, ds, term)
		if err != nil {
			errs = append(errs, fmt.Errorf("term %q: %w", term, err))
			continue
		}
		results = append(results, res)
	}
	if len(results) > 0 && w.OnRun != nil {
		w.OnRun()
	}
	return results, errors.Join(errs...)
}

func (w *Worker) runTerm(ctx context.Context, ds *source.Dataset, term string) (*export.Result, error) {
	req, err := ds.Request(term, nil)
	if err != nil {
		return nil, err
	}
	if len(req.Rooms) == 0 {
		appLog.Info("worker: term has no rooms", "term", term)
		return &export.Result{Term: term}, nil
	}
	res, err := w.exporter.Export(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(res.Documents) == 0 {
		appLog.Info("worker: nothing to write", "term", term, "summary", res.Summary())
		return res, nil
	}
	paths, err := export.WriteFiles(w.cfg.OutputDir, res)
	if err != nil {
		return nil, err
	}
	bundle, err := export.WriteBundleFile(w.cfg.OutputDir, res)
	if err != nil {
		return nil, err
	}
	appLog.Info("worker: term regenerated", "term", term, "files", len(paths), "bundle", bundle, "summary", res.Summary())
	return res, nil
}
