package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"agrivoice/internal/domain"
)

var (
	ErrBusy              = errors.New("controller busy")
	ErrInvalidTransition = errors.New("action not allowed in current state")
	ErrSuperseded        = errors.New("session superseded by reset")
	ErrPreferences       = errors.New("saving preferences")
)

type Dependencies struct {
	Capture     CaptureSource
	Transcriber Transcriber
	Store       ProductStore
	Presenter   Presenter
	Notifier    Notifier
	Preferences PreferenceStore
	Clock       func() time.Time
}

// Controller is the recording state machine behind the listing UI.
// The lock is never held across device or network calls; a generation
// counter detects work that finished after a reset.
type Controller struct {
	capture      CaptureSource
	transcriber  Transcriber
	store        ProductStore
	presenter    Presenter
	notifier     Notifier
	prefs        PreferenceStore
	now          func() time.Time
	validate     *validator.Validate
	farmerMobile string
	logger       *slog.Logger

	mu         sync.Mutex
	generation uint64
	session    *domain.CaptureSession
	stream     CaptureStream
	acquiring  bool
	cancelOpen context.CancelFunc
	saving     bool
	language   domain.Language
	result     *domain.TranscriptionResult
	draft      *domain.ProductDraft
	preview    bool
}

func NewController(deps Dependencies, farmerMobile string, logger *slog.Logger) *Controller {
	c := &Controller{
		capture:      deps.Capture,
		transcriber:  deps.Transcriber,
		store:        deps.Store,
		presenter:    deps.Presenter,
		notifier:     deps.Notifier,
		prefs:        deps.Preferences,
		now:          deps.Clock,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		farmerMobile: farmerMobile,
		logger:       logger,
		language:     domain.DefaultLanguage,
	}
	if c.presenter == nil {
		c.presenter = NoopPresenter{}
	}
	if c.notifier == nil {
		c.notifier = &NoopNotifier{}
	}
	if c.now == nil {
		c.now = time.Now
	}

	if c.prefs != nil {
		lang, err := c.prefs.LoadLanguage()
		switch {
		case err != nil:
			logger.Warn("loading language preference, using default", "error", err)
		case lang != "":
			c.language = lang
		}
	}

	return c
}

// Toggle starts a recording when idle and stops and uploads it when
// recording. It returns ErrBusy while a stop, upload, permission request
// or save is in flight.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	if c.acquiring || c.saving {
		c.mu.Unlock()
		return ErrBusy
	}
	state := c.stateLocked()
	c.mu.Unlock()

	switch {
	case state == domain.StateIdle || state == domain.StateFailed:
		return c.startRecording(ctx)
	case state == domain.StateRecording:
		return c.stopAndUpload(ctx)
	case state.Busy():
		c.logger.Debug("toggle ignored while busy", "state", state)
		return ErrBusy
	default:
		return fmt.Errorf("toggle in state %s: %w", state, ErrInvalidTransition)
	}
}

func (c *Controller) startRecording(ctx context.Context) error {
	if !c.capture.Supported() {
		err := domain.NewError(domain.KindCaptureUnsupported, c.capture.Name(), domain.ErrCaptureUnsupported)
		c.logger.Warn("capture not supported", "source", c.capture.Name())
		c.presenter.ShowStatus(errorStatus(err))
		return err
	}

	c.mu.Lock()
	state := c.stateLocked()
	if c.acquiring || (state != domain.StateIdle && state != domain.StateFailed) {
		c.mu.Unlock()
		return ErrBusy
	}
	// A stream can only be left over here if a previous exit path leaked it.
	if c.stream != nil {
		c.releaseLocked()
	}
	openCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.acquiring = true
	c.cancelOpen = cancel
	c.generation++
	gen := c.generation
	lang := c.language
	c.session = nil
	c.result = nil
	c.draft = nil
	c.preview = false
	c.mu.Unlock()

	c.presenter.HidePreview()

	stream, err := c.capture.Open(openCtx)

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		if stream != nil {
			closeStream(stream, c.logger)
		}
		c.logger.Info("discarding device grant for superseded session")
		return ErrSuperseded
	}

	sess := &domain.CaptureSession{
		ID:         uuid.NewString(),
		Generation: gen,
		Language:   lang,
		StartedAt:  c.now(),
	}
	c.session = sess
	c.acquiring = false
	c.cancelOpen = nil

	if err != nil {
		derr := classifyOpenError(err)
		sess.State = domain.StateFailed
		sess.LastError = derr
		c.mu.Unlock()
		c.logger.Warn("opening capture device", "source", c.capture.Name(), "error", err)
		c.presenter.ShowStatus(errorStatus(derr))
		return derr
	}

	sess.State = domain.StateRecording
	c.stream = stream
	c.mu.Unlock()

	c.logger.Info("recording started", "session", sess.ID, "source", c.capture.Name(), "language", lang)
	c.presenter.ShowStatus(Status{Level: StatusRecording, Message: "Recording..."})
	return nil
}

func classifyOpenError(err error) *domain.Error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr
	}
	if errors.Is(err, domain.ErrCaptureUnsupported) {
		return domain.NewError(domain.KindCaptureUnsupported, "opening device", err)
	}
	return domain.NewError(domain.KindPermissionDenied, "permission denied", err)
}

func (c *Controller) stopAndUpload(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	stream := c.stream
	if sess == nil || sess.State != domain.StateRecording || stream == nil {
		c.mu.Unlock()
		return ErrBusy
	}
	c.stream = nil
	sess.State = domain.StateStopping
	c.mu.Unlock()

	c.presenter.ShowStatus(Status{Level: StatusProcessing, Message: "Processing audio..."})

	chunks, stopErr := stream.Stop()
	closeStream(stream, c.logger)

	c.mu.Lock()
	if c.session != sess {
		c.mu.Unlock()
		return ErrSuperseded
	}
	if stopErr != nil {
		return c.failLocked(sess, domain.NewError(domain.KindCaptureFailed, "stopping capture", stopErr))
	}
	sess.Chunks = nonEmpty(chunks)
	if len(sess.Chunks) == 0 {
		return c.failLocked(sess, domain.NewError(domain.KindCaptureFailed, "no audio captured", nil))
	}
	sess.State = domain.StateUploading
	req := TranscribeRequest{
		Audio:        sess.Audio(),
		Language:     sess.Language,
		FarmerMobile: c.farmerMobile,
	}
	c.mu.Unlock()

	c.logger.Info("uploading recording", "session", sess.ID, "chunks", len(sess.Chunks), "bytes", len(req.Audio))

	result, err := c.transcriber.Transcribe(ctx, req)

	c.mu.Lock()
	if c.session != sess || c.generation != sess.Generation {
		c.mu.Unlock()
		c.logger.Info("discarding stale transcription", "session", sess.ID)
		return ErrSuperseded
	}
	if err != nil {
		return c.failLocked(sess, asDomainError(err))
	}
	if result == nil {
		return c.failLocked(sess, domain.MalformedResponse("transcribe", errors.New("empty result")))
	}

	res := *result
	draft := domain.DraftFromResult(res)
	sess.State = domain.StateSucceeded
	c.result = &res
	c.draft = &draft
	c.preview = true
	c.mu.Unlock()

	c.logger.Info("transcription ready", "session", sess.ID, "product", res.ProductName)
	c.presenter.ShowPreview(res, draft)
	c.presenter.ShowStatus(Status{Level: StatusSuccess, Message: "Audio processed successfully"})
	return nil
}

// failLocked records err on sess and releases the lock.
func (c *Controller) failLocked(sess *domain.CaptureSession, err *domain.Error) error {
	sess.State = domain.StateFailed
	sess.LastError = err
	c.mu.Unlock()

	c.logger.Error("recording failed", "session", sess.ID, "kind", err.Kind, "error", err)
	c.presenter.ShowStatus(errorStatus(err))
	return err
}

func asDomainError(err error) *domain.Error {
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr
	}
	return domain.NetworkFailure("transcribe", err)
}

// Reset discards the current session from any state and hides the preview.
// Work still in flight for the old session is dropped when it returns.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.mu.Unlock()

	c.presenter.HidePreview()
	c.presenter.ShowStatus(Status{Level: StatusReady, Message: "Ready to record"})
}

func (c *Controller) resetLocked() {
	c.generation++
	c.abortOpenLocked()
	c.releaseLocked()
	c.session = nil
	c.result = nil
	c.draft = nil
	c.preview = false
}

// abortOpenLocked cancels a pending device request. The superseded Open
// returns through the stale-generation path and closes any late grant.
func (c *Controller) abortOpenLocked() {
	if c.cancelOpen == nil {
		return
	}
	c.cancelOpen()
	c.cancelOpen = nil
	c.acquiring = false
}

func (c *Controller) releaseLocked() {
	if c.stream == nil {
		return
	}
	closeStream(c.stream, c.logger)
	c.stream = nil
}

func closeStream(s CaptureStream, logger *slog.Logger) {
	if err := s.Close(); err != nil {
		logger.Warn("releasing capture device", "error", err)
	}
}

// UpdateDraft replaces the editable listing fields.
func (c *Controller) UpdateDraft(draft domain.ProductDraft) error {
	c.mu.Lock()
	if c.stateLocked() != domain.StateSucceeded {
		c.mu.Unlock()
		return fmt.Errorf("update draft: %w", ErrInvalidTransition)
	}
	draft = draft.Normalize()
	c.draft = &draft
	res := *c.result
	c.mu.Unlock()

	c.presenter.ShowPreview(res, draft)
	return nil
}

// Save submits the current draft. On failure the draft is kept so the
// user can retry; on success the controller returns to idle.
func (c *Controller) Save(ctx context.Context) error {
	c.mu.Lock()
	if c.stateLocked() != domain.StateSucceeded {
		c.mu.Unlock()
		return fmt.Errorf("save: %w", ErrInvalidTransition)
	}
	if c.saving {
		c.mu.Unlock()
		return ErrBusy
	}
	if err := c.validate.Struct(c.draft); err != nil {
		c.mu.Unlock()
		derr := domain.NewError(domain.KindInvalidDraft, missingFields(err), err)
		c.presenter.ShowStatus(errorStatus(derr))
		return derr
	}
	c.saving = true
	gen := c.generation
	sub := domain.Submission{
		Draft:        *c.draft,
		Result:       *c.result,
		Language:     c.language,
		FarmerMobile: c.farmerMobile,
	}
	c.mu.Unlock()

	c.presenter.ShowStatus(Status{Level: StatusProcessing, Message: "Saving product..."})

	err := c.store.StoreProduct(ctx, sub)

	c.mu.Lock()
	c.saving = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Error("saving product", "error", err)
		c.presenter.ShowStatus(Status{Level: StatusError, Message: "Error saving product"})
		return err
	}
	current := gen == c.generation
	if current {
		c.resetLocked()
	}
	c.mu.Unlock()

	c.logger.Info("product saved", "product", sub.Draft.ProductName, "language", sub.Language)

	if err := c.notifier.ListingSaved(ctx, sub); err != nil {
		c.logger.Error("notifying saved listing", "error", err)
	}

	if current {
		c.presenter.HidePreview()
	}
	c.presenter.ShowStatus(Status{Level: StatusSuccess, Message: "Product saved successfully!"})
	return nil
}

func missingFields(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid draft"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return "missing " + strings.Join(fields, ", ")
}

// SetLanguage persists tag and then uses it for the next upload or save.
// The current language is kept when persisting fails.
func (c *Controller) SetLanguage(tag string) error {
	lang, err := domain.ParseLanguage(tag)
	if err != nil {
		return err
	}

	if c.prefs != nil {
		if err := c.prefs.SaveLanguage(lang); err != nil {
			c.logger.Error("saving language preference", "language", lang, "error", err)
			return fmt.Errorf("%w: %w", ErrPreferences, err)
		}
	}

	c.mu.Lock()
	c.language = lang
	c.mu.Unlock()

	c.logger.Info("language changed", "language", lang)
	return nil
}

func (c *Controller) Language() domain.Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

type Snapshot struct {
	State          domain.State                `json:"state"`
	SessionID      string                      `json:"session_id,omitempty"`
	Chunks         int                         `json:"chunks"`
	AudioBytes     int                         `json:"audio_bytes"`
	Language       domain.Language             `json:"language"`
	Result         *domain.TranscriptionResult `json:"result,omitempty"`
	Draft          *domain.ProductDraft        `json:"draft,omitempty"`
	LastError      string                      `json:"last_error,omitempty"`
	PreviewVisible bool                        `json:"preview_visible"`
	AwaitingDevice bool                        `json:"awaiting_device"`
	Saving         bool                        `json:"saving"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:          c.stateLocked(),
		Language:       c.language,
		PreviewVisible: c.preview,
		AwaitingDevice: c.acquiring,
		Saving:         c.saving,
	}
	if s := c.session; s != nil {
		snap.SessionID = s.ID
		snap.Chunks = len(s.Chunks)
		snap.AudioBytes = s.AudioSize()
		if s.LastError != nil {
			snap.LastError = domain.UserMessage(s.LastError)
		}
	}
	if c.result != nil {
		r := *c.result
		snap.Result = &r
	}
	if c.draft != nil {
		d := *c.draft
		snap.Draft = &d
	}
	return snap
}

// Close releases the capture device if a recording is still open.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.abortOpenLocked()
	c.releaseLocked()
	return nil
}

func (c *Controller) stateLocked() domain.State {
	if c.session == nil {
		return domain.StateIdle
	}
	return c.session.State
}

func nonEmpty(chunks [][]byte) [][]byte {
	out := chunks[:0:0]
	for _, ch := range chunks {
		if len(ch) > 0 {
			out = append(out, ch)
		}
	}
	return out
}

func errorStatus(err error) Status {
	return Status{Level: StatusError, Message: domain.UserMessage(err)}
}
