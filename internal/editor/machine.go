// Package editor owns the single capture session of the process. Every
// capture UI renders from one Session value; there are no per-type flags.
package editor

import (
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pharrrodev/type2lyfe-sub001/internal/logging"
	"github.com/pharrrodev/type2lyfe-sub001/internal/normalize"
	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
)

var (
	ErrInvalidTransition = errors.New("invalid editor transition")
	ErrModeUnsupported   = errors.New("capture mode not available for log type")
	ErrStaleTicket       = errors.New("editor ticket is no longer current")
)

type State string

const (
	StateClosed       State = "closed"
	StateChoosingType State = "choosing_type"
	StateChoosingMode State = "choosing_mode"
	StateEditing      State = "editing"
	StateSubmitting   State = "submitting"
)

// Ticket identifies one submit attempt of one editor session. A ticket goes
// stale as soon as the session it was issued for is closed or replaced.
type Ticket struct {
	Generation uint64
	DraftID    string
}

// Resolution is the result of a submit attempt as seen by the editor. A nil
// Err means the record was confirmed by the server.
type Resolution struct {
	Ticket Ticket
	Record record.Record
	Err    error
}

type Session struct {
	State      State
	LogType    record.LogType
	Mode       record.CaptureMode
	Draft      record.Record
	Warnings   []normalize.Warning
	Message    string
	Generation uint64
}

// Mounted reports the only (logType, mode) editor allowed to render input
// controls. It is derived from the session state alone.
func (session Session) Mounted() (record.LogType, record.CaptureMode, bool) {
	switch session.State {
	case StateEditing, StateSubmitting:
		return session.LogType, session.Mode, true
	default:
		return "", "", false
	}
}

// TypeChoices lists the log types offered while choosing a type.
func (session Session) TypeChoices() []record.LogType {
	if session.State != StateChoosingType {
		return nil
	}
	return record.AllLogTypes()
}

// ModeChoices lists only the capture modes valid for the chosen type, so an
// unsupported combination is never offered.
func (session Session) ModeChoices() []record.CaptureMode {
	if session.State != StateChoosingMode {
		return nil
	}
	return record.ModesFor(session.LogType)
}

type Machine struct {
	mu      sync.Mutex
	session Session
	now     func() time.Time
	logger  *log.Logger
}

func NewMachine(logger *log.Logger) *Machine {
	return &Machine{
		session: Session{State: StateClosed},
		now:     time.Now,
		logger:  logging.OrDiscard(logger),
	}
}

func (machine *Machine) Snapshot() Session {
	machine.mu.Lock()
	defer machine.mu.Unlock()
	return machine.snapshotLocked()
}

func (machine *Machine) snapshotLocked() Session {
	session := machine.session
	session.Warnings = append([]normalize.Warning(nil), machine.session.Warnings...)
	return session
}

// Open starts a new session. An active session is force-closed first.
func (machine *Machine) Open() Session {
	machine.mu.Lock()
	defer machine.mu.Unlock()

	machine.resetLocked(StateChoosingType)
	return machine.snapshotLocked()
}

func (machine *Machine) SelectType(logType record.LogType) (Session, error) {
	machine.mu.Lock()
	defer machine.mu.Unlock()

	if !logType.Valid() || len(record.ModesFor(logType)) == 0 {
		return machine.snapshotLocked(), record.ErrUnknownLogType
	}

	switch machine.session.State {
	case StateChoosingType, StateChoosingMode:
	case StateEditing, StateSubmitting:
		machine.logger.Debug("force-closing active editor", "log_type", machine.session.LogType, "mode", machine.session.Mode)
		machine.resetLocked(StateChoosingType)
	default:
		return machine.snapshotLocked(), ErrInvalidTransition
	}

	machine.session.State = StateChoosingMode
	machine.session.LogType = logType
	return machine.snapshotLocked(), nil
}

func (machine *Machine) SelectMode(mode record.CaptureMode) (Session, error) {
	machine.mu.Lock()
	defer machine.mu.Unlock()

	if machine.session.State != StateChoosingMode {
		return machine.snapshotLocked(), ErrInvalidTransition
	}
	if !record.ModeSupported(machine.session.LogType, mode) {
		return machine.snapshotLocked(), ErrModeUnsupported
	}

	machine.session.State = StateEditing
	machine.session.Mode = mode
	machine.session.Draft = record.NewDraft(machine.session.LogType, mode, machine.now())
	return machine.snapshotLocked(), nil
}

// Start opens a session directly on (logType, mode).
func (machine *Machine) Start(logType record.LogType, mode record.CaptureMode) (Session, error) {
	machine.Open()
	if _, err := machine.SelectType(logType); err != nil {
		machine.Cancel()
		return machine.Snapshot(), err
	}
	session, err := machine.SelectMode(mode)
	if err != nil {
		machine.Cancel()
		return machine.Snapshot(), err
	}
	return session, nil
}

// Edit replaces the draft payload. Edits while submitting are rejected so the
// record on the wire always matches the draft. Changing the payload of a
// failed draft starts a new entry with a fresh pending id, since the failed
// attempt may have been stored under the old one.
func (machine *Machine) Edit(payload record.Payload, warnings []normalize.Warning) (Session, error) {
	machine.mu.Lock()
	defer machine.mu.Unlock()

	if machine.session.State != StateEditing {
		return machine.snapshotLocked(), ErrInvalidTransition
	}
	if payload == nil || payload.LogType() != machine.session.LogType {
		return machine.snapshotLocked(), &record.ValidationError{Field: "log_type", Message: "payload does not match the selected log type"}
	}

	draft := machine.session.Draft
	if draft.Status == record.StatusFailed && !reflect.DeepEqual(draft.Payload, payload) {
		previous := draft.ID
		draft.ID = record.NewPendingID()
		draft.Status = record.StatusDraft
		machine.logger.Debug("edited failed draft under a new id", "previous_id", previous, "draft_id", draft.ID)
	}
	draft.Payload = payload
	machine.session.Draft = draft
	machine.session.Warnings = append([]normalize.Warning(nil), warnings...)
	machine.session.Message = ""
	return machine.snapshotLocked(), nil
}

// Reject keeps the session editing with a message, for a capture that could
// not produce a payload.
func (machine *Machine) Reject(message string) Session {
	machine.mu.Lock()
	defer machine.mu.Unlock()

	if machine.session.State == StateEditing {
		machine.session.Message = message
	}
	return machine.snapshotLocked()
}

// BeginSubmit validates the draft and moves to Submitting. On a validation
// error the session stays in Editing with the message attached.
func (machine *Machine) BeginSubmit(catalog record.Catalog) (Ticket, record.Record, error) {
	machine.mu.Lock()
	defer machine.mu.Unlock()

	if machine.session.State != StateEditing {
		return Ticket{}, record.Record{}, ErrInvalidTransition
	}

	payload, err := record.Validate(machine.session.LogType, machine.session.Draft.Payload, catalog)
	if err != nil {
		machine.session.Message = err.Error()
		return Ticket{}, record.Record{}, err
	}

	draft, err := machine.session.Draft.WithStatus(record.StatusSubmitting)
	if err != nil {
		return Ticket{}, record.Record{}, err
	}
	draft.Payload = payload
	machine.session.Draft = draft
	machine.session.State = StateSubmitting
	machine.session.Message = ""

	return Ticket{Generation: machine.session.Generation, DraftID: draft.ID}, draft, nil
}

// Resolve applies the result of a submit attempt. Resolutions for a stale
// ticket are ignored and reported with ErrStaleTicket.
func (machine *Machine) Resolve(resolution Resolution) (Session, error) {
	machine.mu.Lock()
	defer machine.mu.Unlock()

	if !machine.isCurrentLocked(resolution.Ticket) || machine.session.State != StateSubmitting {
		machine.logger.Debug("ignoring stale submission result", "draft_id", resolution.Ticket.DraftID)
		return machine.snapshotLocked(), ErrStaleTicket
	}

	if resolution.Err == nil {
		machine.resetLocked(StateClosed)
		return machine.snapshotLocked(), nil
	}

	draft, err := machine.session.Draft.WithStatus(record.StatusFailed)
	if err == nil {
		machine.session.Draft = draft
	}
	machine.session.State = StateEditing
	machine.session.Message = resolution.Err.Error()
	return machine.snapshotLocked(), nil
}

func (machine *Machine) Cancel() Session {
	machine.mu.Lock()
	defer machine.mu.Unlock()

	if machine.session.State != StateClosed {
		machine.resetLocked(StateClosed)
	}
	return machine.snapshotLocked()
}

func (machine *Machine) IsCurrent(ticket Ticket) bool {
	machine.mu.Lock()
	defer machine.mu.Unlock()
	return machine.isCurrentLocked(ticket)
}

func (machine *Machine) isCurrentLocked(ticket Ticket) bool {
	return ticket.Generation == machine.session.Generation &&
		ticket.DraftID == machine.session.Draft.ID &&
		machine.session.State != StateClosed
}

// resetLocked ends the current session, if any, and starts a new generation
// in the given state.
func (machine *Machine) resetLocked(state State) {
	machine.session = Session{
		State:      state,
		Generation: machine.session.Generation + 1,
	}
}
