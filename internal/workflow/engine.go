package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/brck/brckctl/internal/brckapi"
	"github.com/brck/brckctl/internal/logging"
	"github.com/brck/brckctl/internal/push"
)

// DefaultPollInterval is how often Start refreshes the slot list.
const DefaultPollInterval = 10 * time.Second

var (
	// ErrBusy is returned when a write is already outstanding.
	ErrBusy = errors.New("a configuration change is already in progress")
	// ErrRefreshInFlight is returned when another refresh is outstanding.
	ErrRefreshInFlight = errors.New("refresh already in progress")
	// ErrUnknownSlot is returned for slot ids not in the last poll.
	ErrUnknownSlot = errors.New("unknown connection slot")
	// ErrUnavailable is returned for slots with no media.
	ErrUnavailable = errors.New("connection slot is not available")
	// ErrNoDialog is returned when an action needs an open dialog.
	ErrNoDialog = errors.New("no connection selected")
	// ErrUnknownField is returned by SetField for fields the dialog lacks.
	ErrUnknownField = errors.New("unknown form field")
	// ErrUnsupported is returned for SIM-only operations on other kinds.
	ErrUnsupported = errors.New("operation not supported for this interface")
	// ErrStale is returned when a write completes after it was superseded.
	ErrStale = errors.New("response arrived after the action was abandoned")
	// ErrSelectionChanged is returned when the dialog a write was prepared
	// for was closed or replaced before the write started.
	ErrSelectionChanged = errors.New("the selected connection changed")
	// ErrWrongDialog is returned for actions the open dialog does not offer.
	ErrWrongDialog = errors.New("action not available in this dialog")
)

// Phase is the engine's position in the dialog state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaiting
	PhaseWorking
	PhaseConnecting
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaiting:
		return "awaiting"
	case PhaseWorking:
		return "working"
	case PhaseConnecting:
		return "connecting"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// Busy reports whether a write is outstanding.
func (p Phase) Busy() bool {
	return p == PhaseWorking || p == PhaseConnecting
}

// Dialog is the action the user has open.
type Dialog int

const (
	DialogNone Dialog = iota
	DialogConfigure
	DialogConnect
	DialogUnlock
)

func (d Dialog) String() string {
	switch d {
	case DialogNone:
		return "none"
	case DialogConfigure:
		return "configure"
	case DialogConnect:
		return "connect"
	case DialogUnlock:
		return "unlock"
	default:
		return "unknown"
	}
}

// Prompt is the credential a SIM connection attempt is waiting for.
type Prompt int

const (
	PromptNone Prompt = iota
	PromptPIN
	PromptPUK
	PromptAPN
)

func (p Prompt) String() string {
	switch p {
	case PromptPIN:
		return "pin"
	case PromptPUK:
		return "puk"
	case PromptAPN:
		return "apn"
	default:
		return "none"
	}
}

// FailureKind classifies lastError.
type FailureKind int

const (
	FailureValidation FailureKind = iota
	FailureOperational
	FailureConnection
)

func (k FailureKind) String() string {
	switch k {
	case FailureValidation:
		return "validation"
	case FailureOperational:
		return "operational"
	case FailureConnection:
		return "connection"
	default:
		return "unknown"
	}
}

// Failure is the error shown against the open dialog.
type Failure struct {
	Kind    FailureKind
	Message string
	Details []string
	Fields  map[string]string
	// Err is the underlying error, if any.
	Err error
}

func (f *Failure) clone() *Failure {
	if f == nil {
		return nil
	}
	c := *f
	c.Details = append([]string(nil), f.Details...)
	if f.Fields != nil {
		c.Fields = make(map[string]string, len(f.Fields))
		for k, v := range f.Fields {
			c.Fields[k] = v
		}
	}
	return &c
}

// Snapshot is a copy of engine state.
type Snapshot struct {
	Kind       brckapi.Interface
	Slots      []brckapi.Slot
	SelectedID string
	Dialog     Dialog
	Phase      Phase
	LastError  *Failure

	// SIM connection flow.
	EventLog []push.ConnectionEvent
	Prompt   Prompt
	FlowDone bool

	Fields map[string]Field

	Loaded      bool
	PollError   error
	LastRefresh time.Time
}

// Slot returns the slot with id.
func (s Snapshot) Slot(id string) (brckapi.Slot, bool) {
	for _, slot := range s.Slots {
		if slot.ID == id {
			return slot, true
		}
	}
	return brckapi.Slot{}, false
}

// Gateway is the part of the API client the engine needs.
type Gateway interface {
	Connections(ctx context.Context, kind brckapi.Interface) ([]brckapi.Slot, error)
	ConfigureConnection(ctx context.Context, kind brckapi.Interface, id string, configuration map[string]any) ([]brckapi.Slot, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithPollInterval sets the Start poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// Engine is the connectivity workflow for one interface kind. It is safe for
// concurrent use; network calls are made without holding the state lock.
type Engine struct {
	kind     brckapi.Interface
	gw       Gateway
	interval time.Duration

	mu         sync.Mutex
	state      Snapshot
	gen        uint64
	refreshing bool
	changes    chan struct{}

	pollMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates an engine for kind.
func NewEngine(kind brckapi.Interface, gw Gateway, opts ...Option) *Engine {
	e := &Engine{
		kind:     kind,
		gw:       gw,
		interval: DefaultPollInterval,
		changes:  make(chan struct{}, 1),
		state:    Snapshot{Kind: kind},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Kind returns the interface kind.
func (e *Engine) Kind() brckapi.Interface { return e.kind }

// Changes is signalled after every state change. Notifications coalesce.
func (e *Engine) Changes() <-chan struct{} { return e.changes }

func (e *Engine) notify() {
	select {
	case e.changes <- struct{}{}:
	default:
	}
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	s := e.state
	s.Slots = make([]brckapi.Slot, len(e.state.Slots))
	for i, slot := range e.state.Slots {
		s.Slots[i] = slot.Clone()
	}
	s.LastError = e.state.LastError.clone()
	s.EventLog = append([]push.ConnectionEvent(nil), e.state.EventLog...)
	s.Fields = make(map[string]Field, len(e.state.Fields))
	for k, v := range e.state.Fields {
		s.Fields[k] = v
	}
	return s
}

// Cards projects the current state into display cards.
func (e *Engine) Cards() []Card {
	return Project(e.Snapshot())
}

// Refresh replaces the slot list from the appliance. It is a no-op while a
// write is outstanding, and its result is dropped if a write started or
// finished while it was in flight.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.state.Phase.Busy() {
		e.mu.Unlock()
		return nil
	}
	if e.refreshing {
		e.mu.Unlock()
		return ErrRefreshInFlight
	}
	e.refreshing = true
	gen := e.gen
	e.mu.Unlock()

	slots, err := e.gw.Connections(ctx, e.kind)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshing = false

	if e.gen != gen || e.state.Phase.Busy() {
		logging.Debug("Discarding refresh superseded by a write",
			zap.String("kind", string(e.kind)),
		)
		return nil
	}
	if err != nil {
		e.state.PollError = err
		e.notify()
		return err
	}

	brckapi.SortSlots(slots)
	e.state.Slots = slots
	e.state.Loaded = true
	e.state.PollError = nil
	e.state.LastRefresh = time.Now()
	e.notify()
	return nil
}

// selectLocked runs the guards shared by the Select* operations.
func (e *Engine) selectLocked(id string) (brckapi.Slot, error) {
	if e.state.Phase.Busy() {
		return brckapi.Slot{}, ErrBusy
	}
	slot, ok := e.state.Slot(id)
	if !ok {
		return brckapi.Slot{}, fmt.Errorf("%w: %s", ErrUnknownSlot, id)
	}
	if !slot.Available {
		return brckapi.Slot{}, fmt.Errorf("%w: %s", ErrUnavailable, slot.Name)
	}
	return slot, nil
}

// SelectForConfigure opens the configure dialog on a slot, seeding the form
// from its current settings.
func (e *Engine) SelectForConfigure(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot, err := e.selectLocked(id)
	if err != nil {
		return err
	}
	e.state.SelectedID = id
	e.state.Dialog = DialogConfigure
	e.state.Phase = PhaseAwaiting
	e.state.LastError = nil
	e.state.Fields = SeedFields(slot)
	e.notify()
	return nil
}

// SelectForConnect opens the connect dialog on a slot. A PIN or PUK locked
// SIM opens the unlock dialog instead; the returned Dialog says which.
func (e *Engine) SelectForConnect(id string) (Dialog, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot, err := e.selectLocked(id)
	if err != nil {
		return DialogNone, err
	}

	dialog := DialogConnect
	if e.kind == brckapi.SIM && slot.SIMInfo().Locked() {
		dialog = DialogUnlock
	}
	e.state.SelectedID = id
	e.state.Dialog = dialog
	e.state.Phase = PhaseAwaiting
	e.state.LastError = nil
	e.state.Fields = map[string]Field{}
	e.resetFlowLocked()
	e.notify()
	return dialog, nil
}

func (e *Engine) resetFlowLocked() {
	e.state.EventLog = nil
	e.state.Prompt = PromptNone
	e.state.FlowDone = false
}

// SetField records user input on the open dialog and marks it edited.
func (e *Engine) SetField(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Dialog == DialogNone {
		return ErrNoDialog
	}
	if _, ok := lookup(FieldsFor(e.kind, e.state.Dialog), name); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if e.state.Fields == nil {
		e.state.Fields = map[string]Field{}
	}
	e.state.Fields[name] = Field{Value: value, Edited: true}
	e.notify()
	return nil
}

// target is the slot and dialog a write was prepared against.
type target struct {
	id     string
	dialog Dialog
}

// targetLocked captures the open dialog for a write. It fails while a write
// is outstanding or when the open dialog is not one of allowed.
func (e *Engine) targetLocked(allowed ...Dialog) (target, error) {
	if e.state.Phase.Busy() {
		return target{}, ErrBusy
	}
	if e.state.Dialog == DialogNone || e.state.SelectedID == "" {
		return target{}, ErrNoDialog
	}
	for _, d := range allowed {
		if d == e.state.Dialog {
			return target{id: e.state.SelectedID, dialog: d}, nil
		}
	}
	return target{}, fmt.Errorf("%w: %s dialog is open", ErrWrongDialog, e.state.Dialog)
}

// Submit sends the open dialog. Configure dialogs send the form, unlock
// dialogs send the PIN/PUK fields and connect dialogs behave like Connect.
func (e *Engine) Submit(ctx context.Context) error {
	e.mu.Lock()
	t, err := e.targetLocked(DialogConfigure, DialogConnect, DialogUnlock)
	fields := make(map[string]Field, len(e.state.Fields))
	for k, v := range e.state.Fields {
		fields[k] = v
	}
	slot, _ := e.state.Slot(t.id)
	e.mu.Unlock()

	if err != nil {
		return err
	}
	switch t.dialog {
	case DialogConfigure:
		payload, errs := BuildConfigurePayload(e.kind, fields)
		if len(errs) > 0 {
			return e.rejectLocally(errs)
		}
		return e.write(ctx, t, payload)
	case DialogUnlock:
		return e.submitPIN(ctx, t, fields["pin"].Value, fields["puk"].Value)
	default:
		return e.write(ctx, t, BuildConnectPayload(slot))
	}
}

// Connect activates the selected slot. SIM slots send an empty
// configuration; Ethernet and Wi-Fi re-apply their current settings.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	t, err := e.targetLocked(DialogConnect, DialogUnlock)
	slot, ok := e.state.Slot(t.id)
	e.mu.Unlock()

	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSlot, t.id)
	}
	return e.write(ctx, t, BuildConnectPayload(slot))
}

// SubmitPIN sends a PIN and/or PUK for the selected SIM from its connect or
// unlock dialog. Empty values are left out of the payload.
func (e *Engine) SubmitPIN(ctx context.Context, pin, puk string) error {
	if e.kind != brckapi.SIM {
		return ErrUnsupported
	}
	e.mu.Lock()
	t, err := e.targetLocked(DialogConnect, DialogUnlock)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	return e.submitPIN(ctx, t, pin, puk)
}

func (e *Engine) submitPIN(ctx context.Context, t target, pin, puk string) error {
	payload, errs := BuildUnlockPayload(pin, puk)
	if len(errs) > 0 {
		return e.rejectLocally(errs)
	}
	return e.write(ctx, t, payload)
}

// SubmitAPN answers an APN prompt without leaving the connect or unlock
// flow. The APN is always sent; an empty user or password is left unchanged
// on the appliance.
func (e *Engine) SubmitAPN(ctx context.Context, apn, user, password string) error {
	if e.kind != brckapi.SIM {
		return ErrUnsupported
	}
	e.mu.Lock()
	t, err := e.targetLocked(DialogConnect, DialogUnlock)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	payload, errs := BuildAPNPayload(apn, user, password)
	if len(errs) > 0 {
		return e.rejectLocally(errs)
	}
	return e.write(ctx, t, payload)
}

func (e *Engine) rejectLocally(errs []error) error {
	err := ValidationError(errs)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Phase = PhaseError
	e.state.LastError = &Failure{
		Kind:    FailureValidation,
		Message: "Please correct the highlighted fields",
		Fields:  FieldMap(errs),
		Err:     err,
	}
	e.notify()
	return err
}

// write issues one PATCH for t and applies the outcome. It refuses to run
// when the dialog t was prepared against is no longer the open one.
func (e *Engine) write(ctx context.Context, t target, payload map[string]any) error {
	e.mu.Lock()
	if e.state.Phase.Busy() {
		e.mu.Unlock()
		return ErrBusy
	}
	if e.state.SelectedID != t.id || e.state.Dialog != t.dialog {
		e.mu.Unlock()
		logging.Debug("Refusing write for a closed dialog",
			zap.String("kind", string(e.kind)),
			zap.String("slot", t.id),
			zap.Stringer("dialog", t.dialog),
		)
		return ErrSelectionChanged
	}
	id := t.id
	e.gen++
	gen := e.gen
	if t.dialog == DialogConfigure {
		e.state.Phase = PhaseWorking
	} else {
		e.state.Phase = PhaseConnecting
	}
	e.state.LastError = nil
	if e.kind == brckapi.SIM {
		e.resetFlowLocked()
	}
	e.notify()
	e.mu.Unlock()

	logging.Debug("Configuring connection",
		zap.String("kind", string(e.kind)),
		zap.String("slot", id),
		zap.Stringer("action", t.dialog),
	)
	slots, err := e.gw.ConfigureConnection(ctx, e.kind, id, payload)

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen || !e.state.Phase.Busy() || e.state.SelectedID != id {
		logging.Debug("Discarding stale configuration response",
			zap.String("kind", string(e.kind)),
			zap.String("slot", id),
		)
		return ErrStale
	}
	e.gen++
	defer e.notify()

	if err != nil {
		e.state.Phase = PhaseError
		e.state.LastError = failureFrom(err)
		return err
	}

	e.spliceLocked(slots)

	// The appliance switches SIMs after replying, so a SIM reply still shows
	// the old state and the outcome arrives as push events.
	if t.dialog != DialogConfigure && e.kind != brckapi.SIM {
		if slot, ok := returned(slots, id); ok && !slot.Connected {
			f := &Failure{
				Kind:    FailureOperational,
				Message: fmt.Sprintf("could not connect using %s", slot.Name),
			}
			f.Err = brckapi.NewOperationalError(f.Message)
			e.state.Phase = PhaseError
			e.state.LastError = f
			return f.Err
		}
	}

	switch {
	case e.state.LastError != nil:
		// A failure event arrived on the push channel while the write was
		// in flight.
		e.state.Phase = PhaseError
	case t.dialog == DialogConfigure:
		e.closeLocked()
	default:
		e.state.Phase = PhaseAwaiting
	}
	return nil
}

// spliceLocked replaces slots by id. Ids the engine does not know are
// ignored.
func (e *Engine) spliceLocked(updated []brckapi.Slot) {
	for _, u := range updated {
		found := false
		for i := range e.state.Slots {
			if e.state.Slots[i].ID == u.ID {
				e.state.Slots[i] = u
				found = true
				break
			}
		}
		if !found {
			logging.Debug("Ignoring slot missing from last poll",
				zap.String("kind", string(e.kind)),
				zap.String("slot", u.ID),
			)
		}
	}
}

func returned(slots []brckapi.Slot, id string) (brckapi.Slot, bool) {
	for _, s := range slots {
		if s.ID == id {
			return s, true
		}
	}
	return brckapi.Slot{}, false
}

func failureFrom(err error) *Failure {
	f := &Failure{Kind: FailureOperational, Message: brckapi.GetShortErrorMessage(err), Err: err}
	var apiErr *brckapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			f.Message = apiErr.Message
		}
		f.Details = append([]string(nil), apiErr.Details...)
		if apiErr.Kind == brckapi.KindValidation {
			f.Kind = FailureValidation
			f.Fields = brckapi.FieldErrors(err)
		}
	}
	return f
}

// failureEvents end a SIM connection attempt without closing the dialog.
var failureEvents = map[string]bool{
	push.NoConnection: true,
	push.PINRejected:  true,
	push.PUKRejected:  true,
	push.NoCarrier:    true,
	push.NoModem:      true,
	push.SIMNotReady:  true,
}

// IsFailureEvent reports whether a SIM connection event ends the attempt.
func IsFailureEvent(event string) bool { return failureEvents[event] }

// OnConnectionEvent feeds a SIM connection event into the open connect or
// unlock flow. Events outside a flow are dropped.
func (e *Engine) OnConnectionEvent(ev push.ConnectionEvent) {
	if e.kind != brckapi.SIM {
		return
	}
	if ev.Description == "" {
		ev.Description = push.Describe(ev.Event)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Dialog != DialogConnect && e.state.Dialog != DialogUnlock {
		logging.Debug("Dropping connection event outside a connect flow",
			zap.String("event", ev.Event),
		)
		return
	}

	e.state.EventLog = append(e.state.EventLog, ev)
	switch {
	case failureEvents[ev.Event]:
		e.state.LastError = &Failure{Kind: FailureConnection, Message: ev.Description}
		if !e.state.Phase.Busy() {
			e.state.Phase = PhaseError
		}
	case ev.Event == push.RequiresPIN:
		e.state.Prompt = PromptPIN
	case ev.Event == push.RequiresPUK:
		e.state.Prompt = PromptPUK
	case ev.Event == push.RequiresAPN:
		e.state.Prompt = PromptAPN
	case ev.Event == push.PINOK, ev.Event == push.PUKOK, ev.Event == push.PINNotRequired:
		e.state.Prompt = PromptNone
	case ev.Event == push.Enable3GMonitor:
		e.state.FlowDone = true
	}
	e.notify()
}

// Dismiss clears lastError. From the Error phase it returns to the open
// dialog, or to Idle when none is open.
func (e *Engine) Dismiss() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state.LastError = nil
	if e.state.Phase == PhaseError {
		if e.state.Dialog != DialogNone {
			e.state.Phase = PhaseAwaiting
		} else {
			e.state.Phase = PhaseIdle
		}
	}
	e.notify()
}

// Close closes the open dialog. It is refused while a write is outstanding.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state.Phase.Busy() {
		return ErrBusy
	}
	e.closeLocked()
	e.notify()
	return nil
}

func (e *Engine) closeLocked() {
	e.state.SelectedID = ""
	e.state.Dialog = DialogNone
	e.state.Phase = PhaseIdle
	e.state.LastError = nil
	e.state.Fields = map[string]Field{}
	e.resetFlowLocked()
}

// Reset drops all state, including slots. An outstanding write's response
// is discarded when it arrives. Used when the session ends.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gen++
	e.state = Snapshot{Kind: e.kind}
	e.notify()
}

// Start polls every interval until Stop, beginning with an immediate refresh.
// Calling Start on a running engine does nothing.
func (e *Engine) Start(ctx context.Context) {
	e.pollMu.Lock()
	defer e.pollMu.Unlock()

	if e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	go e.poll(ctx, done)
}

// Stop cancels polling and waits for the poll goroutine to exit.
func (e *Engine) Stop() {
	e.pollMu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.pollMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (e *Engine) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	err := e.Refresh(ctx)
	if err == nil || errors.Is(err, ErrRefreshInFlight) || ctx.Err() != nil {
		return
	}
	logging.Debug("Poll failed",
		zap.String("kind", string(e.kind)),
		zap.Error(err),
	)
}
