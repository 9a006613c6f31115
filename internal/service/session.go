package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/xreply/internal/domain"
	"github.com/iconidentify/xreply/pkg/crypto"
	"github.com/iconidentify/xreply/pkg/twitter"
)

const (
	sessionSource  = "session"
	publishTimeout = 5 * time.Second
)

// ExtractRequest starts an extraction. A non-nil Settings replaces the
// session's form state before the run; AutoGenerate overrides the
// configured auto-chain behaviour.
type ExtractRequest struct {
	Settings     *domain.ExtractionSettings `json:"extractionSettings,omitempty"`
	AutoGenerate *bool                      `json:"autoGenerate,omitempty"`
}

// GenerateRequest starts a generation. A non-nil Settings replaces the
// session's form state before the run.
type GenerateRequest struct {
	Settings *domain.ExtractionSettings `json:"extractionSettings,omitempty"`
}

type opKind string

const (
	opExtract  opKind = "extraction"
	opGenerate opKind = "generation"
)

// operation is one in-flight run. A run may only touch session state while
// it is still the session's current run of its kind.
type operation struct {
	id       uint64
	kind     opKind
	ctx      context.Context
	cancel   context.CancelFunc
	watchdog *time.Timer
	keys     domain.APIKeys
	timedOut bool // guarded by Session.mu
}

func (op *operation) stop() {
	if op.watchdog != nil {
		op.watchdog.Stop()
	}
	op.cancel()
}

// Session is one user's working set: form settings, the current tweet batch
// and the comments generated for it.
type Session struct {
	userID string
	deps   *sessionDeps
	logger *slog.Logger

	mu         sync.Mutex
	settings   domain.ExtractionSettings
	tweets     []domain.Tweet
	comments   []domain.GeneratedComment
	extractOp  *operation
	generateOp *operation
	runSeq     uint64

	wg sync.WaitGroup
}

func newSession(userID string, settings domain.ExtractionSettings, deps *sessionDeps) *Session {
	return &Session{
		userID:   userID,
		deps:     deps,
		logger:   deps.logger.With("user_id", userID),
		settings: settings,
		tweets:   []domain.Tweet{},
		comments: []domain.GeneratedComment{},
	}
}

// UserID returns the owner of the session.
func (s *Session) UserID() string {
	return s.userID
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.SessionSnapshot{
		Status:            s.statusLocked(),
		IsExtracting:      s.extractOp != nil,
		IsGenerating:      s.generateOp != nil,
		ExtractedTweets:   append([]domain.Tweet{}, s.tweets...),
		GeneratedComments: append([]domain.GeneratedComment{}, s.comments...),
		Settings:          s.settings,
		AutoGenerate:      s.deps.cfg.AutoGenerate,
	}
}

func (s *Session) statusLocked() domain.SessionStatus {
	switch {
	case s.extractOp != nil:
		return domain.SessionStatusExtracting
	case s.generateOp != nil:
		return domain.SessionStatusGenerating
	case len(s.comments) > 0:
		return domain.SessionStatusGenerated
	case len(s.tweets) > 0:
		return domain.SessionStatusExtracted
	default:
		return domain.SessionStatusIdle
	}
}

// Settings returns the current form state.
func (s *Session) Settings() domain.ExtractionSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings validates and stores the form state and persists it as the
// user's draft. Out-of-range counters are rejected.
func (s *Session) UpdateSettings(ctx context.Context, settings domain.ExtractionSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	return s.storeSettings(ctx, settings)
}

// storeSettings replaces the form state and saves the draft. Callers validate.
func (s *Session) storeSettings(ctx context.Context, settings domain.ExtractionSettings) error {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()

	if s.deps.drafts != nil {
		if err := s.deps.drafts.SaveDraft(ctx, s.userID, settings); err != nil {
			return fmt.Errorf("save draft: %w", err)
		}
	}
	return nil
}

// Extract runs an extraction and waits for it.
func (s *Session) Extract(ctx context.Context, req ExtractRequest) ([]domain.Tweet, error) {
	op, in, err := s.beginExtract(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.runExtract(op, in, req)
}

// StartExtract checks the request and runs the extraction in the
// background. Guard failures are returned directly.
func (s *Session) StartExtract(ctx context.Context, req ExtractRequest) error {
	op, in, err := s.beginExtract(context.WithoutCancel(ctx), req)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.runExtract(op, in, req)
	}()
	return nil
}

func (s *Session) beginExtract(ctx context.Context, req ExtractRequest) (*operation, domain.ExtractionInput, error) {
	if req.Settings != nil {
		if err := req.Settings.ValidateExtraction(); err != nil {
			return nil, domain.ExtractionInput{}, s.rejected(opExtract, err)
		}
		if err := s.storeSettings(ctx, *req.Settings); err != nil {
			return nil, domain.ExtractionInput{}, s.rejected(opExtract, err)
		}
	}
	settings := s.Settings()

	keys, err := s.deps.creds.APIKeys(ctx, s.userID)
	if err != nil {
		return nil, domain.ExtractionInput{}, s.rejected(opExtract, err)
	}
	if keys.Apify == "" {
		return nil, domain.ExtractionInput{}, s.rejected(opExtract, domain.NewCredentialError(domain.ServiceApify))
	}

	urls := settings.URLList()
	if len(urls) == 0 {
		return nil, domain.ExtractionInput{}, s.rejected(opExtract, fmt.Errorf("enter at least one URL: %w", domain.ErrEmptyInput))
	}
	var invalid []string
	for _, u := range urls {
		if !twitter.IsSupportedURL(u) {
			invalid = append(invalid, u)
		}
	}
	if len(invalid) > 0 {
		return nil, domain.ExtractionInput{}, s.rejected(opExtract,
			domain.NewValidationError("urls", "only twitter.com and x.com URLs are supported", invalid...))
	}
	if settings.ExtractionType == domain.ExtractionModeAccounts {
		if err := domain.ValidateTweetsPerAccount(settings.TweetsPerAccount); err != nil {
			return nil, domain.ExtractionInput{}, s.rejected(opExtract, err)
		}
	}

	op, err := s.acquire(ctx, opExtract, keys)
	if err != nil {
		return nil, domain.ExtractionInput{}, err
	}

	return op, domain.ExtractionInput{
		Mode:             settings.ExtractionType,
		URLs:             urls,
		TweetsPerAccount: settings.TweetsPerAccount,
		APIKey:           keys.Apify,
	}, nil
}

func (s *Session) runExtract(op *operation, in domain.ExtractionInput, req ExtractRequest) ([]domain.Tweet, error) {
	tweets, err := s.deps.extractor.Extract(op.ctx, s.userID, in)

	s.mu.Lock()
	op.stop()
	if s.extractOp != op {
		timedOut := op.timedOut
		s.mu.Unlock()
		s.logger.Info("discarding stale extraction result", "run_id", op.id, "timed_out", timedOut)
		if timedOut {
			return nil, domain.ErrTimeout
		}
		return nil, domain.ErrSuperseded
	}
	s.extractOp = nil
	if err == nil {
		s.tweets = tweets
		s.comments = []domain.GeneratedComment{}
		if s.generateOp != nil {
			// comments in flight belong to the previous batch
			s.generateOp.stop()
			s.generateOp = nil
		}
	}
	s.mu.Unlock()

	if err != nil {
		s.notify(domain.NotificationDestructive, "Extraction failed", err.Error())
		return nil, err
	}

	if len(tweets) == 0 {
		s.notify(domain.NotificationDefault, "No tweets found",
			"The scraper returned no tweets. Check that the URLs are public and try again.")
		return tweets, nil
	}

	s.notify(domain.NotificationDefault, "Extraction complete", fmt.Sprintf("Extracted %d tweets", len(tweets)))
	s.publish(domain.ResultMessage{
		Kind:   domain.ResultKindExtraction,
		UserID: s.userID,
		Mode:   in.Mode,
		Tweets: tweets,
	})

	auto := s.deps.cfg.AutoGenerate
	if req.AutoGenerate != nil {
		auto = *req.AutoGenerate
	}
	if auto && op.keys.OpenAI != "" {
		if err := s.StartGenerate(op.ctx, GenerateRequest{}); err != nil {
			s.logger.Warn("auto generation not started", "error", err)
		}
	}

	return tweets, nil
}

// Generate runs a generation for the current tweets and waits for it.
func (s *Session) Generate(ctx context.Context, req GenerateRequest) ([]domain.GeneratedComment, error) {
	op, in, err := s.beginGenerate(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.runGenerate(op, in)
}

// StartGenerate checks the request and runs the generation in the
// background. Guard failures are returned directly.
func (s *Session) StartGenerate(ctx context.Context, req GenerateRequest) error {
	op, in, err := s.beginGenerate(context.WithoutCancel(ctx), req)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.runGenerate(op, in)
	}()
	return nil
}

func (s *Session) beginGenerate(ctx context.Context, req GenerateRequest) (*operation, domain.GenerationInput, error) {
	if req.Settings != nil {
		if err := req.Settings.ValidateGeneration(); err != nil {
			return nil, domain.GenerationInput{}, s.rejected(opGenerate, err)
		}
		if err := s.storeSettings(ctx, *req.Settings); err != nil {
			return nil, domain.GenerationInput{}, s.rejected(opGenerate, err)
		}
	}

	keys, err := s.deps.creds.APIKeys(ctx, s.userID)
	if err != nil {
		return nil, domain.GenerationInput{}, s.rejected(opGenerate, err)
	}
	if keys.OpenAI == "" {
		return nil, domain.GenerationInput{}, s.rejected(opGenerate, domain.NewCredentialError(domain.ServiceOpenAI))
	}

	s.mu.Lock()
	settings := s.settings
	tweets := append([]domain.Tweet{}, s.tweets...)
	s.mu.Unlock()

	if len(tweets) == 0 {
		return nil, domain.GenerationInput{}, s.rejected(opGenerate, fmt.Errorf("extract tweets first: %w", domain.ErrEmptyInput))
	}
	if settings.Prompt == "" {
		return nil, domain.GenerationInput{}, s.rejected(opGenerate, fmt.Errorf("enter a prompt: %w", domain.ErrEmptyInput))
	}
	if err := domain.ValidateCommentsPerTweet(settings.CommentsPerTweet); err != nil {
		return nil, domain.GenerationInput{}, s.rejected(opGenerate, err)
	}

	op, err := s.acquire(ctx, opGenerate, keys)
	if err != nil {
		return nil, domain.GenerationInput{}, err
	}

	return op, domain.GenerationInput{
		Tweets:           tweets,
		Prompt:           settings.Prompt,
		CommentsPerTweet: settings.CommentsPerTweet,
		APIKey:           keys.OpenAI,
	}, nil
}

func (s *Session) runGenerate(op *operation, in domain.GenerationInput) ([]domain.GeneratedComment, error) {
	comments, err := s.deps.generator.Generate(op.ctx, s.userID, in)

	s.mu.Lock()
	op.stop()
	if s.generateOp != op {
		timedOut := op.timedOut
		s.mu.Unlock()
		s.logger.Info("discarding stale generation result", "run_id", op.id, "timed_out", timedOut)
		if timedOut {
			return nil, domain.ErrTimeout
		}
		return nil, domain.ErrSuperseded
	}
	s.generateOp = nil
	if err == nil {
		s.comments = comments
	}
	s.mu.Unlock()

	if err != nil {
		s.notify(domain.NotificationDestructive, "Comment generation failed", err.Error())
		return nil, err
	}

	s.notify(domain.NotificationDefault, "Comments generated", fmt.Sprintf("Generated %d comments", len(comments)))
	s.publish(domain.ResultMessage{
		Kind:     domain.ResultKindGeneration,
		UserID:   s.userID,
		Comments: comments,
	})
	return comments, nil
}

// acquire marks kind busy and arms its watchdog.
func (s *Session) acquire(ctx context.Context, kind opKind, keys domain.APIKeys) (*operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.extractOp
	if kind == opGenerate {
		current = s.generateOp
	}
	if current != nil {
		return nil, fmt.Errorf("%s: %w", kind, domain.ErrBusy)
	}

	s.runSeq++
	runCtx, cancel := context.WithCancel(ctx)
	op := &operation{
		id:     s.runSeq,
		kind:   kind,
		ctx:    runCtx,
		cancel: cancel,
		keys:   keys,
	}
	if timeout := s.deps.cfg.WatchdogTimeout; timeout > 0 {
		op.watchdog = time.AfterFunc(timeout, func() { s.abandon(op) })
	}

	if kind == opExtract {
		s.extractOp = op
	} else {
		s.generateOp = op
	}
	s.logger.Debug("operation started", "kind", kind, "run_id", op.id)
	return op, nil
}

// abandon is the watchdog: it releases the busy flag of a run that did not
// finish in time and cancels its call.
func (s *Session) abandon(op *operation) {
	s.mu.Lock()
	switch {
	case op.kind == opExtract && s.extractOp == op:
		s.extractOp = nil
	case op.kind == opGenerate && s.generateOp == op:
		s.generateOp = nil
	default:
		s.mu.Unlock()
		return
	}
	op.timedOut = true
	s.mu.Unlock()

	op.cancel()

	timeout := s.deps.cfg.WatchdogTimeout
	emitEvent(s.deps.events, domain.EventSeverityWarning, s.userID, domain.EventCategorySession, sessionSource,
		fmt.Sprintf("The %s did not finish within %s and was abandoned", op.kind, timeout),
		domain.EventMetadata{"runId": op.id, "kind": op.kind, "timeoutMs": timeout.Milliseconds()})
	s.notify(domain.NotificationDestructive, "Operation timed out",
		fmt.Sprintf("The %s took too long and was stopped. You can try again.", op.kind))
	s.logger.Warn("watchdog abandoned operation", "kind", op.kind, "run_id", op.id, "timeout", timeout)
}

// Reset clears busy flags, tweets and comments. Runs still in flight are
// cancelled and their results discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	for _, op := range []*operation{s.extractOp, s.generateOp} {
		if op != nil {
			op.stop()
		}
	}
	s.extractOp = nil
	s.generateOp = nil
	s.tweets = []domain.Tweet{}
	s.comments = []domain.GeneratedComment{}
	s.mu.Unlock()

	emitEvent(s.deps.events, domain.EventSeverityInfo, s.userID, domain.EventCategorySession, sessionSource,
		"Session reset", nil)
	s.logger.Info("session reset")
}

// cancelRuns stops in-flight runs without touching the working set.
func (s *Session) cancelRuns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range []*operation{s.extractOp, s.generateOp} {
		if op != nil {
			op.stop()
		}
	}
}

// ToggleExpanded flips the expanded flag of comment i.
func (s *Session) ToggleExpanded(i int) (domain.GeneratedComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.comments) {
		return domain.GeneratedComment{}, domain.ErrIndexOutOfRange
	}
	s.comments[i].Expanded = !s.comments[i].Expanded
	return s.comments[i], nil
}

// ReplyIntent returns the reply composer URL for comment i.
func (s *Session) ReplyIntent(i int) (string, error) {
	s.mu.Lock()
	if i < 0 || i >= len(s.comments) {
		s.mu.Unlock()
		return "", domain.ErrIndexOutOfRange
	}
	c := s.comments[i]
	s.mu.Unlock()

	return twitter.ReplyIntentURL(c.TweetURL, c.Comment)
}

// Export renders the session artifact. A non-empty passphrase encrypts it.
func (s *Session) Export(passphrase string) (data []byte, filename string, err error) {
	now := s.deps.now()

	s.mu.Lock()
	artifact := domain.NewExportArtifact(
		append([]domain.Tweet{}, s.tweets...),
		append([]domain.GeneratedComment{}, s.comments...),
		s.settings,
		now,
	)
	s.mu.Unlock()

	data, err = artifact.Marshal()
	if err != nil {
		return nil, "", fmt.Errorf("marshal artifact: %w", err)
	}
	if passphrase != "" {
		if data, err = crypto.Encrypt(data, passphrase); err != nil {
			return nil, "", fmt.Errorf("encrypt artifact: %w", err)
		}
	}

	emitEvent(s.deps.events, domain.EventSeveritySuccess, s.userID, domain.EventCategoryExport, sessionSource,
		fmt.Sprintf("Exported %d tweets and %d comments", len(artifact.ExtractedTweets), len(artifact.GeneratedComments)),
		domain.EventMetadata{"encrypted": passphrase != ""})
	return data, domain.ExportFilename(now), nil
}

// Import restores tweets, comments and settings from an exported artifact.
func (s *Session) Import(ctx context.Context, data []byte, passphrase string) (*domain.ExportArtifact, error) {
	if crypto.IsEncrypted(data) {
		if passphrase == "" {
			return nil, domain.NewValidationError("passphrase", "the file is encrypted; a passphrase is required")
		}
		plain, err := crypto.Decrypt(data, passphrase)
		if err != nil {
			return nil, domain.NewValidationError("passphrase", err.Error())
		}
		data = plain
	}

	artifact, err := domain.ParseExportArtifact(data)
	if err != nil {
		return nil, domain.NewValidationError("file", err.Error())
	}
	if artifact.ExtractedTweets == nil {
		artifact.ExtractedTweets = []domain.Tweet{}
	}
	if artifact.GeneratedComments == nil {
		artifact.GeneratedComments = []domain.GeneratedComment{}
	}
	artifact.ExtractionSettings = artifact.ExtractionSettings.Clamped()

	s.mu.Lock()
	if s.extractOp != nil || s.generateOp != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("import: %w", domain.ErrBusy)
	}
	s.tweets = append([]domain.Tweet{}, artifact.ExtractedTweets...)
	s.comments = append([]domain.GeneratedComment{}, artifact.GeneratedComments...)
	s.settings = artifact.ExtractionSettings
	s.mu.Unlock()

	if s.deps.drafts != nil {
		if err := s.deps.drafts.SaveDraft(ctx, s.userID, artifact.ExtractionSettings); err != nil {
			s.logger.Warn("failed to persist imported settings", "error", err)
		}
	}

	emitEvent(s.deps.events, domain.EventSeverityInfo, s.userID, domain.EventCategoryExport, sessionSource,
		fmt.Sprintf("Imported %d tweets and %d comments", len(artifact.ExtractedTweets), len(artifact.GeneratedComments)),
		domain.EventMetadata{"exportDate": artifact.ExportDate})
	return artifact, nil
}

// Wait blocks until background runs have returned.
func (s *Session) Wait() {
	s.wg.Wait()
}

// rejected reports a guard failure on both channels and returns err.
func (s *Session) rejected(kind opKind, err error) error {
	title := "Extraction failed"
	category := domain.EventCategoryExtraction
	if kind == opGenerate {
		title = "Comment generation failed"
		category = domain.EventCategoryGeneration
	}

	severity := domain.EventSeverityError
	if errors.Is(err, domain.ErrEmptyInput) || errors.Is(err, domain.ErrValidation) {
		severity = domain.EventSeverityWarning
	}
	emitEvent(s.deps.events, severity, s.userID, category, sessionSource, title+": "+err.Error(), nil)
	s.notify(domain.NotificationDestructive, title, err.Error())
	return err
}

func (s *Session) notify(level domain.NotificationLevel, title, message string) {
	if s.deps.notifier == nil {
		return
	}
	s.deps.notifier.Notify(s.userID, domain.Notification{
		Level:   level,
		Title:   title,
		Message: message,
		At:      s.deps.now(),
	})
}

func (s *Session) publish(msg domain.ResultMessage) {
	if s.deps.publisher == nil {
		return
	}
	msg.CompletedAt = s.deps.now().UTC()
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.deps.publisher.Publish(ctx, msg); err != nil {
		s.logger.Warn("failed to publish result", "kind", msg.Kind, "error", err)
	}
}
