package onboarding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/logger"
	"github.com/Logan-Myn/dancehub-v3-sub000/metrics"
)

// CompletionNotifier is told once onboarding finishes.
type CompletionNotifier interface {
	OnboardingComplete(ctx context.Context, communityID, accountID string) error
}

// State is an immutable snapshot handed to observers.
type State struct {
	CommunityID    string         `json:"communityId"`
	CurrentStep    Step           `json:"currentStep"`
	StepName       string         `json:"stepName"`
	CompletedSteps []Step         `json:"completedSteps"`
	Data           OnboardingData `json:"data"`
	CanProceed     bool           `json:"canProceed"`
	Saving         bool           `json:"saving"`
	Finished       bool           `json:"finished"`
	Closed         bool           `json:"closed"`
}

type WizardConfig struct {
	Community     Community
	Gateway       AccountGateway
	Directory     CommunityDirectory
	Provisioner   *AccountProvisioner
	Store         ProgressStore
	Notifier      CompletionNotifier
	AutosaveDelay time.Duration
	Logger        logger.Logger
	Now           func() time.Time
}

const autosaveTimeout = 5 * time.Second

// Wizard drives one community through the onboarding steps. Network calls
// are made without holding the lock; results that arrive after Close are
// dropped.
type Wizard struct {
	mu          sync.Mutex
	community   Community
	gateway     AccountGateway
	directory   CommunityDirectory
	provisioner *AccountProvisioner
	notifier    CompletionNotifier
	tracker     *ProgressTracker
	autosave    *Debouncer
	log         logger.Logger
	now         func() time.Time

	// writeMu orders progress writes against Finish's clear
	writeMu sync.Mutex

	data      OnboardingData
	saving    bool
	finished  bool
	closed    bool
	observers map[int]func(State)
	nextObs   int
}

func NewWizard(cfg WizardConfig) *Wizard {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Provisioner == nil {
		cfg.Provisioner = NewAccountProvisioner(cfg.Gateway, cfg.Directory, 0, cfg.Logger)
	}
	w := &Wizard{
		community:   cfg.Community,
		gateway:     cfg.Gateway,
		directory:   cfg.Directory,
		provisioner: cfg.Provisioner,
		notifier:    cfg.Notifier,
		tracker:     NewProgressTracker(cfg.Community.ID, cfg.Store),
		log:         cfg.Logger.WithFields(map[string]interface{}{"community_id": cfg.Community.ID}),
		now:         cfg.Now,
		observers:   map[int]func(State){},
	}
	w.tracker.now = cfg.Now
	w.autosave = NewDebouncer(cfg.AutosaveDelay, w.persistNow)
	return w
}

// Open restores saved progress and checks that any known account id is
// still live. An invalid id is dropped so provisioning can start over.
func (w *Wizard) Open(ctx context.Context) State {
	w.mu.Lock()
	data, restored := w.tracker.Restore(ctx)
	if restored {
		w.data = data
		w.log.Info("resumed onboarding progress", map[string]interface{}{"step": w.tracker.Current().String()})
	}
	candidates := []string{w.data.AccountID}
	stored := w.community.StripeAccountID
	if stored != "" && stored != w.data.AccountID {
		candidates = append(candidates, stored)
	}
	w.mu.Unlock()

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		live := w.provisioner.ValidateExisting(ctx, candidate)
		w.mu.Lock()
		if live {
			w.data.AccountID = candidate
			w.mu.Unlock()
			break
		}
		w.data.AccountID = ""
		w.provisioner.Forget(w.community.ID)
		w.mu.Unlock()
		if candidate == stored {
			w.dropStoredAccount(ctx, candidate)
		}
	}

	w.notify()
	return w.Snapshot()
}

// dropStoredAccount clears a dead account id from the community so the
// next Next provisions a fresh one.
func (w *Wizard) dropStoredAccount(ctx context.Context, accountID string) {
	if err := w.directory.SetStripeAccount(ctx, w.community.ID, ""); err != nil {
		w.log.WithError(err).Warn("failed to clear stale payment account", map[string]interface{}{"account_id": accountID})
		return
	}
	w.mu.Lock()
	w.community.StripeAccountID = ""
	w.mu.Unlock()
}

// Subscribe registers an observer and returns its cancel func.
func (w *Wizard) Subscribe(fn func(State)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextObs
	w.nextObs++
	w.observers[id] = fn
	return func() {
		w.mu.Lock()
		delete(w.observers, id)
		w.mu.Unlock()
	}
}

func (w *Wizard) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Wizard) snapshotLocked() State {
	cur := w.tracker.Current()
	return State{
		CommunityID:    w.community.ID,
		CurrentStep:    cur,
		StepName:       cur.String(),
		CompletedSteps: w.tracker.Completed(),
		Data:           w.data.clone(),
		CanProceed:     ValidateStep(cur, w.data, w.now()).Valid(),
		Saving:         w.saving,
		Finished:       w.finished,
		Closed:         w.closed,
	}
}

func (w *Wizard) notify() {
	w.mu.Lock()
	state := w.snapshotLocked()
	obs := make([]func(State), 0, len(w.observers))
	for _, fn := range w.observers {
		obs = append(obs, fn)
	}
	w.mu.Unlock()
	for _, fn := range obs {
		fn(state)
	}
}

// CanProceed reports whether the current step passes validation.
func (w *Wizard) CanProceed() bool {
	return w.Snapshot().CanProceed
}

func (w *Wizard) Errors() FieldErrors {
	w.mu.Lock()
	defer w.mu.Unlock()
	return ValidateStep(w.tracker.Current(), w.data, w.now())
}

func (w *Wizard) checkOpenLocked() error {
	if w.closed || w.finished {
		return apperrors.NewSessionClosedError()
	}
	return nil
}

func (w *Wizard) update(apply func(d *OnboardingData)) error {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	apply(&w.data)
	w.mu.Unlock()
	w.autosave.Trigger()
	w.notify()
	return nil
}

// The setters replace a step's data wholesale.

func (w *Wizard) SetBusinessInfo(info BusinessInfo) error {
	return w.update(func(d *OnboardingData) { d.BusinessInfo = info })
}

func (w *Wizard) SetPersonalInfo(info PersonalInfo) error {
	return w.update(func(d *OnboardingData) { d.PersonalInfo = info })
}

func (w *Wizard) SetBankAccount(account BankAccount) error {
	return w.update(func(d *OnboardingData) { d.BankAccount = account })
}

func (w *Wizard) SetDocuments(docs []Document) error {
	docs = append([]Document(nil), docs...)
	return w.update(func(d *OnboardingData) { d.Documents = docs })
}

// Next validates the current step, provisions the account if needed, saves
// the step remotely and advances. Any failure leaves the wizard on the same
// step with its data intact.
func (w *Wizard) Next(ctx context.Context) error {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.saving {
		w.mu.Unlock()
		return apperrors.NewStepSaveInFlightError()
	}
	step := w.tracker.Current()
	if step == StepVerification {
		w.mu.Unlock()
		return apperrors.NewInvalidTransitionError("This is the last step. Use finish to complete onboarding.")
	}
	if errs := ValidateStep(step, w.data, w.now()); !errs.Valid() {
		w.mu.Unlock()
		metrics.WizardTransitions.WithLabelValues("next", step.String(), "invalid").Inc()
		return apperrors.NewValidationError(errs)
	}
	w.saving = true
	snapshot := w.data.clone()
	w.mu.Unlock()
	w.notify()

	err := w.saveStep(ctx, step, snapshot)

	w.mu.Lock()
	w.saving = false
	if w.closed {
		w.mu.Unlock()
		return apperrors.NewSessionClosedError()
	}
	if err == nil {
		w.tracker.MarkStepCompleted(step)
		if w.tracker.Current() == step {
			w.tracker.Advance()
		}
	}
	raw, encErr := w.tracker.Encode(w.data)
	w.mu.Unlock()

	metrics.WizardTransitions.WithLabelValues("next", step.String(), metrics.Result(err)).Inc()
	if err == nil && encErr == nil {
		if perr := w.writeProgress(ctx, raw); perr != nil {
			w.log.WithError(perr).Warn("failed to persist onboarding progress", nil)
		}
	}
	w.notify()
	return err
}

func (w *Wizard) saveStep(ctx context.Context, step Step, data OnboardingData) error {
	accountID := data.AccountID
	if accountID == "" {
		res := w.provisioner.Ensure(ctx, w.community, "", BusinessContext{
			Country:      data.BusinessInfo.Address.Country,
			BusinessType: data.BusinessInfo.BusinessType,
			Email:        data.PersonalInfo.Email,
		})
		if !res.OK() {
			if res.Err == nil {
				res.Err = apperrors.NewProvisioningError(errors.New("no account id"))
			}
			return res.Err
		}
		accountID = res.AccountID
		data.AccountID = accountID

		w.mu.Lock()
		if !w.closed && w.data.AccountID == "" {
			w.data.AccountID = accountID
		}
		w.mu.Unlock()
	}

	if err := w.gateway.UpdateAccountStep(ctx, accountID, step, data); err != nil {
		w.log.WithError(err).Error("step save failed", map[string]interface{}{"step": step.String()})
		return apperrors.NewPersistenceError(strings.ReplaceAll(step.String(), "_", " "), err)
	}
	return nil
}

// Previous always moves back one step.
func (w *Wizard) Previous() error {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	w.tracker.Retreat()
	w.mu.Unlock()
	metrics.WizardTransitions.WithLabelValues("previous", "", "ok").Inc()
	w.autosave.Trigger()
	w.notify()
	return nil
}

// JumpTo moves to any enterable step.
func (w *Wizard) JumpTo(step Step) error {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	if !w.tracker.SetCurrent(step) {
		w.mu.Unlock()
		metrics.WizardTransitions.WithLabelValues("jump", step.String(), "blocked").Inc()
		return apperrors.NewStepNotReachableError(int(step))
	}
	w.mu.Unlock()
	metrics.WizardTransitions.WithLabelValues("jump", step.String(), "ok").Inc()
	w.autosave.Trigger()
	w.notify()
	return nil
}

// UploadDocument sends a document to the payment account and records it.
func (w *Wizard) UploadDocument(ctx context.Context, doc DocumentUpload) (Document, error) {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return Document{}, err
	}
	accountID := w.data.AccountID
	w.mu.Unlock()

	if accountID == "" {
		return Document{}, apperrors.NewDocumentUploadError(errors.New("payment account is not set up yet"))
	}
	uploaded, err := w.gateway.UploadDocument(ctx, accountID, doc)
	if err != nil {
		w.log.WithError(err).Error("document upload failed", map[string]interface{}{"document_type": doc.DocumentType})
		return Document{}, apperrors.NewDocumentUploadError(err)
	}

	rec := Document{
		Type:     doc.DocumentType,
		Purpose:  doc.Purpose,
		FileRef:  uploaded.FileRef,
		Uploaded: true,
		URL:      uploaded.URL,
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return rec, apperrors.NewSessionClosedError()
	}
	w.data.Documents = append(w.data.Documents, rec)
	w.mu.Unlock()
	w.autosave.Trigger()
	w.notify()
	return rec, nil
}

// Status fetches the live account status.
func (w *Wizard) Status(ctx context.Context) (AccountStatus, error) {
	w.mu.Lock()
	accountID := w.data.AccountID
	w.mu.Unlock()
	if accountID == "" {
		return AccountStatus{}, apperrors.NewNotFoundError("Payment account")
	}
	status, err := w.gateway.GetAccountStatus(ctx, accountID)
	if err != nil {
		return AccountStatus{}, apperrors.NewVerificationError(err)
	}
	return status, nil
}

// Finish completes onboarding from the verification step. On failure the
// wizard stays open on that step.
func (w *Wizard) Finish(ctx context.Context) error {
	w.mu.Lock()
	if err := w.checkOpenLocked(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.tracker.Current() != StepVerification {
		w.mu.Unlock()
		return apperrors.NewInvalidTransitionError("Complete the previous steps before finishing onboarding.")
	}
	if w.saving {
		w.mu.Unlock()
		return apperrors.NewStepSaveInFlightError()
	}
	accountID := w.data.AccountID
	if accountID == "" {
		w.mu.Unlock()
		return apperrors.NewVerificationError(errors.New("payment account is not set up"))
	}
	w.saving = true
	w.mu.Unlock()

	err := w.verify(ctx, accountID)

	w.mu.Lock()
	w.saving = false
	if w.closed {
		w.mu.Unlock()
		return apperrors.NewSessionClosedError()
	}
	if err != nil {
		w.mu.Unlock()
		metrics.WizardTransitions.WithLabelValues("finish", StepVerification.String(), "error").Inc()
		w.notify()
		return err
	}
	w.finished = true
	w.tracker.MarkStepCompleted(StepVerification)
	w.mu.Unlock()

	w.autosave.Cancel()
	w.writeMu.Lock()
	if cerr := w.tracker.Clear(ctx); cerr != nil {
		w.log.WithError(cerr).Warn("failed to clear onboarding progress", nil)
	}
	w.writeMu.Unlock()
	if w.notifier != nil {
		if nerr := w.notifier.OnboardingComplete(ctx, w.community.ID, accountID); nerr != nil {
			w.log.WithError(nerr).Error("onboarding complete notification failed", map[string]interface{}{"account_id": accountID})
		}
	}
	metrics.WizardTransitions.WithLabelValues("finish", StepVerification.String(), "ok").Inc()
	w.log.Info("onboarding finished", map[string]interface{}{"account_id": accountID})
	w.notify()
	return nil
}

func (w *Wizard) verify(ctx context.Context, accountID string) error {
	status, err := w.gateway.GetAccountStatus(ctx, accountID)
	if err != nil {
		return apperrors.NewVerificationError(err)
	}
	if !status.VerificationRequired() {
		return nil
	}
	if err := w.gateway.VerifyAccount(ctx, accountID); err != nil {
		return apperrors.NewVerificationError(err)
	}
	return nil
}

// Close flushes pending autosave and drops in-memory state. Saved progress
// is kept so the wizard can be resumed.
func (w *Wizard) Close() {
	w.autosave.Flush()
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	state := w.snapshotLocked()
	obs := make([]func(State), 0, len(w.observers))
	for _, fn := range w.observers {
		obs = append(obs, fn)
	}
	w.observers = map[int]func(State){}
	w.data = OnboardingData{}
	w.mu.Unlock()
	w.autosave.Cancel()
	for _, fn := range obs {
		fn(state)
	}
}

func (w *Wizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed || w.finished
}

func (w *Wizard) persistNow() {
	w.mu.Lock()
	if w.closed || w.finished {
		w.mu.Unlock()
		return
	}
	raw, err := w.tracker.Encode(w.data)
	w.mu.Unlock()
	if err != nil {
		w.log.WithError(err).Warn("failed to encode onboarding progress", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), autosaveTimeout)
	defer cancel()
	if err := w.writeProgress(ctx, raw); err != nil {
		w.log.WithError(err).Warn("autosave failed", nil)
	}
}

// writeProgress stores raw unless the wizard finished or closed while it
// was being encoded.
func (w *Wizard) writeProgress(ctx context.Context, raw string) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	w.mu.Lock()
	done := w.finished || w.closed
	w.mu.Unlock()
	if done {
		return nil
	}
	return w.tracker.Write(ctx, raw)
}
