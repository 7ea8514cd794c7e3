package patrol

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"patrol-session-backend/config"
	"patrol-session-backend/internal/geo"
	"patrol-session-backend/internal/remote"
	"patrol-session-backend/internal/shift"
	"patrol-session-backend/internal/store"
	"patrol-session-backend/internal/verify"
)

// AttendanceProvider returns the user's current attendance/shift record.
type AttendanceProvider interface {
	AttendanceStatus(ctx context.Context) (*remote.AttendanceStatus, error)
}

// TaskService creates tasks on the upstream API.
type TaskService interface {
	CreateTask(ctx context.Context, title string) (string, error)
}

// SessionService covers the upstream patrol session endpoints.
type SessionService interface {
	StartSession(ctx context.Context, taskID string, matchScore *float64) (int64, error)
	ListCheckpoints(ctx context.Context, sessionID int64) ([]store.PatrolPoint, error)
	UploadPhoto(ctx context.Context, in remote.UploadInput) (string, error)
	ConfirmScan(ctx context.Context, in remote.ScanInput) (*remote.ScanResult, error)
}

// Notifier dispatches a supervisor notification. Implementations must not block.
type Notifier interface {
	Dispatch(message string)
}

var (
	// ErrBusy is returned when an operation is already in flight.
	ErrBusy = errors.New("another patrol operation is in progress")
	// ErrVerificationRequired is returned when the flow is suspended pending
	// an identity verification; it resumes via OnFaceScanCompleted.
	ErrVerificationRequired = errors.New("identity verification required")
)

const (
	msgConnectionProblem = "connection problem, please try again"
	msgNotCheckedIn      = "you have not checked in for this shift"
	msgNotEligible       = "attendance is not eligible for patrol"
	msgActiveSession     = "an active patrol session exists, finish it before starting a new one"
	msgCapReached        = "maximum patrol sessions for this shift reached"
	msgNoCheckpoints     = "no checkpoints are configured for this route, contact your administrator"
	msgNoActiveSession   = "no active patrol session"
	msgOutOfOrder        = "checkpoints must be visited in order"
)

// isAlreadyScanned is the single place that recognizes the server's free-text
// "already scanned" response. The upstream contract has no structured code for
// it, so the match is by substring, in both the English and Indonesian
// phrasings the server is known to emit.
func isAlreadyScanned(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "already scanned") || strings.Contains(m, "sudah discan")
}

// isSessionCapMessage recognizes the server-side per-shift session cap being
// reported in a session-start failure.
func isSessionCapMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "maximum") || strings.Contains(m, "maksimal") ||
		strings.Contains(m, "session limit")
}

// userMessage converts any error into the message shown to the user: server
// business messages pass through verbatim, everything else becomes a generic
// connection problem.
func userMessage(err error) string {
	var apiErr *remote.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return msgConnectionProblem
}

// EventKind discriminates orchestrator events delivered to the UI layer.
type EventKind string

const (
	EventRequireFaceScan EventKind = "require_face_scan"
	EventFinished        EventKind = "finished"
)

// Event is emitted by the orchestrator for the UI layer to act on.
type Event struct {
	Kind    EventKind
	Purpose verify.Purpose
}

// pendingAction enumerates operations suspended while waiting for an external
// verification flow to finish.
type pendingAction int

const (
	pendingNone pendingAction = iota
	pendingStartPatrol
)

// Status is a copy of the orchestrator's observable state.
type Status struct {
	TaskID            *string             `json:"task_id,omitempty"`
	SessionID         *int64              `json:"session_id,omitempty"`
	SessionActive     bool                `json:"session_active"`
	SessionComplete   bool                `json:"session_complete"`
	Points            []store.PatrolPoint `json:"points"`
	Remaining         *int                `json:"remaining,omitempty"`
	CompletedSessions int                 `json:"completed_sessions"`
	AwaitingFaceScan  bool                `json:"awaiting_face_scan"`
	Message           string              `json:"message,omitempty"`
}

// Orchestrator sequences the patrol workflow: attendance eligibility, identity
// verification, remote session start, ordered checkpoint captures, completion
// detection, and reconciliation with the snapshot store. It is the sole owner
// and sole writer of the snapshot.
//
// Public entry points are serialized by a busy flag: a call arriving while
// another is in flight fails fast with ErrBusy instead of queueing. The
// snapshot is persisted after every state transition that must survive a
// process restart.
type Orchestrator struct {
	cfg           *config.PatrolConfig
	snapshots     store.SnapshotStore
	attendance    AttendanceProvider
	tasks         TaskService
	sessions      SessionService
	verifications *verify.Store
	notifier      Notifier
	events        chan Event

	busy atomic.Bool

	mu                sync.RWMutex
	taskID            *string
	sessionID         *int64
	points            []store.PatrolPoint
	completedSessions int
	shiftKey          string
	remaining         *int
	sessionComplete   bool
	pending           pendingAction
	message           string
}

// New constructs an orchestrator and restores any persisted session state.
// If the restored snapshot holds an active session id with an empty checkpoint
// list (the process died between starting the session and loading
// checkpoints), the checkpoint list is re-fetched immediately.
func New(ctx context.Context, cfg *config.PatrolConfig, snapshots store.SnapshotStore,
	attendance AttendanceProvider, tasks TaskService, sessions SessionService,
	verifications *verify.Store, notifier Notifier) *Orchestrator {

	o := &Orchestrator{
		cfg:           cfg,
		snapshots:     snapshots,
		attendance:    attendance,
		tasks:         tasks,
		sessions:      sessions,
		verifications: verifications,
		notifier:      notifier,
		events:        make(chan Event, 8),
		points:        []store.PatrolPoint{},
	}
	o.restoreSession(ctx)
	return o
}

// Events returns the channel of orchestrator events. Events are dropped when
// the channel is full rather than blocking a state transition.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

func (o *Orchestrator) emit(ev Event) {
	select {
	case o.events <- ev:
	default:
		log.Printf("Warning: dropping orchestrator event %q, channel full", ev.Kind)
	}
}

func (o *Orchestrator) notify(message string) {
	if o.notifier != nil {
		o.notifier.Dispatch(message)
	}
}

// Status returns a copy of the observable state.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()

	points := make([]store.PatrolPoint, len(o.points))
	copy(points, o.points)

	return Status{
		TaskID:            o.taskID,
		SessionID:         o.sessionID,
		SessionActive:     o.sessionID != nil && !o.sessionComplete,
		SessionComplete:   o.sessionComplete,
		Points:            points,
		Remaining:         o.remaining,
		CompletedSessions: o.completedSessions,
		AwaitingFaceScan:  o.pending != pendingNone,
		Message:           o.message,
	}
}

// StartPatrol runs the start-patrol sequence with the terminal's current
// location. It is a no-op (ErrBusy) when another operation is in flight.
func (o *Orchestrator) StartPatrol(ctx context.Context, loc geo.Location) error {
	if !o.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer o.busy.Store(false)

	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startPatrol(ctx, loc)
}

// OnFaceScanCompleted records a fresh identity-verification artifact and
// resumes a suspended start-patrol flow, if one is pending.
func (o *Orchestrator) OnFaceScanCompleted(ctx context.Context, matchScore *float64, loc geo.Location) error {
	if !o.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer o.busy.Store(false)

	o.mu.Lock()
	defer o.mu.Unlock()

	o.verifications.Record(verify.PurposeTask, matchScore)
	if o.pending == pendingStartPatrol {
		o.pending = pendingNone
		return o.startPatrol(ctx, loc)
	}
	return nil
}

// CancelCapture leaves the capture flow without altering session state; the
// session stays resumable.
func (o *Orchestrator) CancelCapture() {
	o.emit(Event{Kind: EventFinished})
}

func (o *Orchestrator) startPatrol(ctx context.Context, loc geo.Location) error {
	// Step 1: current attendance/shift status.
	att, err := o.attendance.AttendanceStatus(ctx)
	if err != nil {
		return o.fail(userMessage(err))
	}

	// Step 2: shift-change reconciliation before anything else reads local state.
	checkIn := deref(att.CheckInTime)
	newKey := shift.Key(checkIn, att.ShiftName, att.ShiftStart, att.ShiftEnd)
	if shift.NeedsReset(o.shiftKey, newKey) {
		log.Printf("Shift change detected, resetting stale patrol state")
		if err := o.reset(ctx); err != nil {
			return o.fail(userMessage(err))
		}
		o.notify("Patrol state was reset for a new shift")
	}
	if newKey != "" {
		o.shiftKey = newKey
	}

	// Step 3: refuse to start over an unfinished session.
	if o.sessionID != nil && !o.sessionComplete {
		return o.fail(msgActiveSession)
	}

	// Step 4: attendance eligibility.
	desc := shift.Describe(att.ShiftName, att.ShiftStart, att.ShiftEnd)
	reason := att.Reason
	if reason != "" && shift.IsShiftRelated(reason) && desc != "" {
		reason = reason + " " + desc
	}
	if att.CannotCheckIn {
		if reason != "" {
			return o.fail(reason)
		}
		return o.fail(msgNotEligible)
	}
	if checkIn == "" {
		if reason != "" && shift.IsShiftRelated(att.Reason) {
			return o.fail(reason)
		}
		return o.fail(msgNotCheckedIn)
	}

	// Step 5: per-shift session cap.
	if o.completedSessions >= o.cfg.MaxSessionsPerShift {
		return o.fail(msgCapReached)
	}

	// Step 6: identity verification artifact.
	art, ok := o.verifications.Valid(verify.PurposeTask)
	if !ok {
		o.pending = pendingStartPatrol
		o.message = ErrVerificationRequired.Error()
		o.emit(Event{Kind: EventRequireFaceScan, Purpose: verify.PurposeTask})
		return ErrVerificationRequired
	}

	// Step 7: location validation.
	if err := geo.Validate(loc, o.cfg.MinAccuracyMeters); err != nil {
		return o.fail(err.Error())
	}

	// Step 8: ensure a task exists; persist the id before going further so a
	// crash after this point does not lose it.
	if o.taskID == nil {
		title := ""
		if att.ShiftName != "" {
			title = "Patrol " + att.ShiftName
		}
		taskID, err := o.tasks.CreateTask(ctx, title)
		if err != nil {
			return o.fail(userMessage(err))
		}
		o.taskID = &taskID
		o.persist(ctx)
	}

	// Step 9: start the remote session.
	sessionID, err := o.sessions.StartSession(ctx, *o.taskID, art.MatchScore)
	if err != nil {
		msg := userMessage(err)
		if isSessionCapMessage(msg) {
			// The server enforces its own cap; mirror it locally so future
			// attempts are blocked without a round trip.
			o.completedSessions = o.cfg.MaxSessionsPerShift
			o.persist(ctx)
		}
		return o.fail(msg)
	}

	o.sessionID = &sessionID
	o.points = []store.PatrolPoint{}
	o.remaining = nil
	o.sessionComplete = false
	o.persist(ctx)

	// Step 10: ordered checkpoint list.
	if err := o.loadCheckpoints(ctx, true); err != nil {
		return err
	}

	o.message = ""
	return nil
}

// loadCheckpoints fetches the ordered checkpoint list for the active session.
// With resetScans false, each checkpoint's previously-known scanned state is
// preserved by id; with resetScans true all checkpoints start unscanned.
func (o *Orchestrator) loadCheckpoints(ctx context.Context, resetScans bool) error {
	items, err := o.sessions.ListCheckpoints(ctx, *o.sessionID)
	if err != nil {
		return o.fail(userMessage(err))
	}
	if len(items) == 0 {
		return o.fail(msgNoCheckpoints)
	}

	if !resetScans {
		scanned := make(map[int64]bool, len(o.points))
		for _, p := range o.points {
			scanned[p.ID] = p.Scanned
		}
		for i := range items {
			items[i].Scanned = scanned[items[i].ID]
		}
	} else {
		for i := range items {
			items[i].Scanned = false
		}
	}

	o.points = items
	n := store.CountUnscanned(items)
	o.remaining = &n
	o.persist(ctx)
	return nil
}

// CapturePhoto processes a checkpoint capture: the photo at photoPath was just
// taken at loc for the checkpoint the caller believes is next. Checkpoints are
// visited strictly in list order; an out-of-order attempt is rejected without
// mutating any state.
func (o *Orchestrator) CapturePhoto(ctx context.Context, checkpointID int64, photoPath string, loc geo.Location) error {
	if !o.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer o.busy.Store(false)

	o.mu.Lock()
	defer o.mu.Unlock()

	idx := store.NextUnscanned(o.points)
	if idx < 0 {
		// Nothing left to capture.
		return nil
	}
	if o.sessionID == nil {
		return o.fail(msgNoActiveSession)
	}
	if o.points[idx].ID != checkpointID {
		return o.fail(msgOutOfOrder)
	}

	if err := geo.Validate(loc, o.cfg.MinAccuracyMeters); err != nil {
		return o.fail(err.Error())
	}

	point := o.points[idx]
	if point.Latitude != nil && point.Longitude != nil && point.Radius != nil {
		if !geo.WithinRadius(loc, *point.Latitude, *point.Longitude, *point.Radius) {
			return o.fail(fmt.Sprintf("too far from checkpoint %s", point.Name))
		}
	}

	verificationSessionID := ""
	if art, ok := o.verifications.Valid(verify.PurposeTask); ok {
		verificationSessionID = art.SessionID
	}

	photoURL, err := o.sessions.UploadPhoto(ctx, remote.UploadInput{
		TaskID:                deref(o.taskID),
		PhotoPath:             photoPath,
		VerificationSessionID: verificationSessionID,
		Location:              loc,
	})
	if err != nil {
		return o.fail(userMessage(err))
	}

	res, err := o.sessions.ConfirmScan(ctx, remote.ScanInput{
		CheckpointID: point.ID,
		SessionID:    *o.sessionID,
		PhotoURL:     photoURL,
		Location:     loc,
	})
	if err != nil {
		msg := userMessage(err)
		if isAlreadyScanned(msg) {
			// The server already recorded this point on an earlier, retried
			// submission. Flip local state as if the scan succeeded and
			// surface the server's message.
			o.finishScan(ctx, idx, nil, photoPath)
			o.message = msg
			return nil
		}
		return o.fail(msg)
	}

	o.finishScan(ctx, idx, res, photoPath)
	return nil
}

// finishScan applies a confirmed (or server-acknowledged) checkpoint scan:
// flips the point, recomputes the remaining count, detects session completion,
// and persists the snapshot.
func (o *Orchestrator) finishScan(ctx context.Context, idx int, res *remote.ScanResult, photoPath string) {
	if err := os.Remove(photoPath); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not remove temp photo %q: %v", photoPath, err)
	}

	o.points[idx].Scanned = true

	remaining := store.CountUnscanned(o.points)
	if res != nil && res.Remaining != nil {
		remaining = *res.Remaining
	}
	o.remaining = &remaining

	completed := remaining == 0 || (res != nil && res.Completed)
	if !completed {
		o.message = ""
		o.persist(ctx)
		return
	}

	o.sessionComplete = true
	if o.completedSessions < o.cfg.MaxSessionsPerShift {
		o.completedSessions++
	}
	o.sessionID = nil
	o.message = ""
	o.persist(ctx)
	o.emit(Event{Kind: EventFinished})
	o.notify(fmt.Sprintf("Patrol session completed (%d this shift)", o.completedSessions))
}

// restoreSession rehydrates in-memory state from the snapshot store.
func (o *Orchestrator) restoreSession(ctx context.Context) {
	snap, err := o.snapshots.Get(ctx)
	if err != nil {
		log.Printf("Warning: could not restore patrol session: %v", err)
		return
	}
	if snap == nil {
		return
	}

	o.taskID = snap.TaskID
	o.sessionID = snap.SessionID
	if snap.SessionComplete {
		// A completed session never resumes; the recorded id is stale.
		o.sessionID = nil
	}
	o.points = snap.Points
	if o.points == nil {
		o.points = []store.PatrolPoint{}
	}
	o.completedSessions = snap.CompletedSessions
	o.shiftKey = snap.ShiftKey
	o.remaining = snap.Remaining
	o.sessionComplete = snap.SessionComplete

	if o.sessionID != nil && len(o.points) == 0 {
		// The process died between starting the session and loading the
		// checkpoint list.
		if err := o.loadCheckpoints(ctx, false); err != nil {
			log.Printf("Warning: could not re-fetch checkpoints on restore: %v", err)
		}
	}
}

// reset clears the persisted snapshot and returns in-memory state to fresh
// defaults. Used when the shift identity changes between patrol attempts.
func (o *Orchestrator) reset(ctx context.Context) error {
	if err := o.snapshots.Clear(ctx); err != nil {
		return err
	}
	o.taskID = nil
	o.sessionID = nil
	o.points = []store.PatrolPoint{}
	o.completedSessions = 0
	o.shiftKey = ""
	o.remaining = nil
	o.sessionComplete = false
	o.pending = pendingNone
	o.message = ""
	return nil
}

// persist writes the current state to the snapshot store. Persistence happens
// synchronously after every transition that must survive a restart; a failed
// write is logged and the in-memory state remains authoritative.
func (o *Orchestrator) persist(ctx context.Context) {
	snap := &store.Snapshot{
		TaskID:            o.taskID,
		SessionID:         o.sessionID,
		Points:            o.points,
		CompletedSessions: o.completedSessions,
		ShiftKey:          o.shiftKey,
		Remaining:         o.remaining,
		SessionComplete:   o.sessionComplete,
	}
	if err := o.snapshots.Save(ctx, snap); err != nil {
		log.Printf("Warning: failed to persist patrol snapshot: %v", err)
	}
}

func (o *Orchestrator) fail(msg string) error {
	o.message = msg
	return errors.New(msg)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
