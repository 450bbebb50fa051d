// Package capture is the add-entry flow: it drives the editor session,
// runs the normalizer of the chosen mode, submits through the coordinator
// and keeps the activity feed patched.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/pharrrodev/type2lyfe-sub001/internal/editor"
	"github.com/pharrrodev/type2lyfe-sub001/internal/feed"
	"github.com/pharrrodev/type2lyfe-sub001/internal/logging"
	"github.com/pharrrodev/type2lyfe-sub001/internal/normalize"
	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
	"github.com/pharrrodev/type2lyfe-sub001/internal/submission"
)

var (
	ErrWrongMode     = errors.New("capture does not match the editor mode")
	ErrNotEditing    = errors.New("no entry is being edited")
	ErrAnalysisError = errors.New("analysis service unavailable")
)

type Analyzer interface {
	AnalyzeImage(ctx context.Context, logType record.LogType, image io.Reader, filename string) (json.RawMessage, error)
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

type CatalogSource interface {
	Catalog(ctx context.Context) (record.Catalog, error)
}

// Backend is everything the flow needs from the server side; *client.Client
// satisfies it.
type Backend interface {
	submission.Gateway
	feed.HistorySource
	Analyzer
	CatalogSource
}

type Options struct {
	Submission submission.Options
	PageSize   int
	Logger     *log.Logger
}

type Controller struct {
	editor      *editor.Machine
	coordinator *submission.Coordinator
	feed        *feed.Aggregator
	backend     Backend
	logger      *log.Logger

	mu            sync.Mutex
	catalog       record.Catalog
	catalogLoaded bool
}

func New(backend Backend, options Options) *Controller {
	logger := logging.OrDiscard(options.Logger)
	if options.Submission.Logger == nil {
		options.Submission.Logger = logger
	}

	machine := editor.NewMachine(logger)
	aggregator := feed.NewAggregator(backend, feed.Options{PageSize: options.PageSize, Logger: logger})
	coordinator := submission.NewCoordinator(backend, machine, options.Submission)
	coordinator.Subscribe(aggregator)

	return &Controller{
		editor:      machine,
		coordinator: coordinator,
		feed:        aggregator,
		backend:     backend,
		logger:      logger,
	}
}

func (controller *Controller) Session() editor.Session {
	return controller.editor.Snapshot()
}

func (controller *Controller) Feed() []record.Record {
	return controller.feed.CurrentFeed()
}

// ReloadFeed rebuilds the feed from the first history page.
func (controller *Controller) ReloadFeed(ctx context.Context) error {
	return controller.feed.Reload(ctx)
}

func (controller *Controller) LoadMore(ctx context.Context) error {
	return controller.feed.LoadMore(ctx)
}

func (controller *Controller) HasMore() bool {
	return controller.feed.HasMore()
}

// AddNew opens the type picker, closing any entry being edited.
func (controller *Controller) AddNew() editor.Session {
	return controller.editor.Open()
}

func (controller *Controller) ChooseType(logType record.LogType) (editor.Session, error) {
	return controller.editor.SelectType(logType)
}

func (controller *Controller) ChooseMode(mode record.CaptureMode) (editor.Session, error) {
	return controller.editor.SelectMode(mode)
}

// Start jumps straight to the editor for (logType, mode).
func (controller *Controller) Start(logType record.LogType, mode record.CaptureMode) (editor.Session, error) {
	return controller.editor.Start(logType, mode)
}

func (controller *Controller) Cancel() editor.Session {
	return controller.editor.Cancel()
}

// EditManual applies the manual form. It is accepted in every mode so AI
// output can be corrected by hand.
func (controller *Controller) EditManual(form normalize.Form) (editor.Session, error) {
	session := controller.editor.Snapshot()
	if session.State != editor.StateEditing {
		return session, ErrNotEditing
	}

	result, err := normalize.Manual(session.LogType, form)
	if err != nil {
		return controller.editor.Reject(err.Error()), err
	}
	return controller.editor.Edit(result.Payload, result.Warnings)
}

func (controller *Controller) CapturePhoto(ctx context.Context, image io.Reader, filename string) (editor.Session, error) {
	session := controller.editor.Snapshot()
	if err := requireMode(session, record.ModePhoto); err != nil {
		return session, err
	}

	raw, err := controller.backend.AnalyzeImage(ctx, session.LogType, image, filename)
	if err != nil {
		controller.logger.Warn("image analysis failed", "log_type", session.LogType, "err", err)
		return controller.editor.Reject("The photo couldn't be analyzed. Please retry or switch to manual."), fmt.Errorf("%w: %w", ErrAnalysisError, err)
	}

	result, err := normalize.Photo(session.LogType, raw)
	return controller.applyCapture(session, result, err)
}

func (controller *Controller) CaptureVoice(ctx context.Context, audio io.Reader, filename string) (editor.Session, error) {
	session := controller.editor.Snapshot()
	if err := requireMode(session, record.ModeVoice); err != nil {
		return session, err
	}

	transcript, err := controller.backend.Transcribe(ctx, audio, filename)
	if err != nil {
		controller.logger.Warn("transcription failed", "log_type", session.LogType, "err", err)
		return controller.editor.Reject("The recording couldn't be transcribed. Please repeat or switch to manual."), fmt.Errorf("%w: %w", ErrAnalysisError, err)
	}
	return controller.ApplyTranscript(ctx, transcript)
}

// ApplyTranscript normalizes an already transcribed utterance.
func (controller *Controller) ApplyTranscript(ctx context.Context, transcript string) (editor.Session, error) {
	session := controller.editor.Snapshot()
	if err := requireMode(session, record.ModeVoice); err != nil {
		return session, err
	}

	catalog := record.Catalog{}
	if session.LogType == record.LogTypeMedication {
		loaded, err := controller.loadCatalog(ctx)
		if err != nil {
			return session, err
		}
		catalog = loaded
	}

	result, err := normalize.Voice(session.LogType, transcript, catalog)
	return controller.applyCapture(session, result, err)
}

func (controller *Controller) applyCapture(session editor.Session, result normalize.Result, err error) (editor.Session, error) {
	if err != nil {
		var normalizationErr *normalize.NormalizationError
		if errors.As(err, &normalizationErr) {
			controller.logger.Info("capture could not be normalized", "log_type", session.LogType, "kind", normalizationErr.Kind)
			return controller.editor.Reject(normalizationErr.UserMessage()), err
		}
		return controller.editor.Reject(err.Error()), err
	}
	for _, warning := range result.Warnings {
		controller.logger.Debug("capture warning", "log_type", session.LogType, "code", warning.Code, "field", warning.Field)
	}
	return controller.editor.Edit(result.Payload, result.Warnings)
}

// Submit validates and sends the current draft. A validation error or an
// empty medication catalog is returned as an error with the session still
// editing; every network result is reported in the Outcome.
func (controller *Controller) Submit(ctx context.Context) (submission.Outcome, error) {
	session := controller.editor.Snapshot()
	if session.State == editor.StateSubmitting {
		return alreadySubmitting(session), nil
	}
	if session.State != editor.StateEditing {
		return submission.Outcome{}, ErrNotEditing
	}

	catalog := record.Catalog{}
	if session.LogType == record.LogTypeMedication {
		loaded, err := controller.loadCatalog(ctx)
		if err != nil {
			return submission.Outcome{}, err
		}
		catalog = loaded
	}

	ticket, draft, err := controller.editor.BeginSubmit(catalog)
	if err != nil {
		if errors.Is(err, editor.ErrInvalidTransition) && controller.editor.Snapshot().State == editor.StateSubmitting {
			return alreadySubmitting(controller.editor.Snapshot()), nil
		}
		if errors.Is(err, record.ErrSetupRequired) {
			controller.invalidateCatalog()
		}
		return submission.Outcome{}, err
	}

	outcome := controller.coordinator.Submit(ctx, ticket, draft)
	if outcome.Failure != nil && outcome.Failure.Reason == submission.ReasonAlreadySubmitting {
		return outcome, nil
	}
	if _, err := controller.editor.Resolve(outcome.Resolution()); err != nil && !errors.Is(err, editor.ErrStaleTicket) {
		return outcome, err
	}
	if outcome.Failure != nil && outcome.Failure.Reason == submission.ReasonSetupRequired {
		controller.invalidateCatalog()
	}
	return outcome, nil
}

func alreadySubmitting(session editor.Session) submission.Outcome {
	return submission.Outcome{
		Ticket:  editor.Ticket{Generation: session.Generation, DraftID: session.Draft.ID},
		DraftID: session.Draft.ID,
		Record:  session.Draft,
		Failure: &submission.Failure{Reason: submission.ReasonAlreadySubmitting, Message: "a submission for this entry is already in progress"},
	}
}

func (controller *Controller) loadCatalog(ctx context.Context) (record.Catalog, error) {
	controller.mu.Lock()
	if controller.catalogLoaded {
		catalog := controller.catalog
		controller.mu.Unlock()
		return catalog, nil
	}
	controller.mu.Unlock()

	catalog, err := controller.backend.Catalog(ctx)
	if err != nil {
		return record.Catalog{}, fmt.Errorf("load medications: %w", err)
	}

	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.catalog = catalog
	controller.catalogLoaded = true
	return catalog, nil
}

// invalidateCatalog makes the next medication capture reload the catalog,
// after the user was sent to configure it.
func (controller *Controller) invalidateCatalog() {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.catalogLoaded = false
}

func requireMode(session editor.Session, mode record.CaptureMode) error {
	if session.State != editor.StateEditing {
		return ErrNotEditing
	}
	if session.Mode != mode {
		return ErrWrongMode
	}
	return nil
}
