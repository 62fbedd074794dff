package verify

import (
	"errors"
	"log"
	"time"

	"github.com/t-curity/tcurity-backend/internal/auth"
	"github.com/t-curity/tcurity-backend/internal/challenge"
	"github.com/t-curity/tcurity-backend/internal/model"
	"github.com/t-curity/tcurity-backend/internal/oracle"
	"github.com/t-curity/tcurity-backend/internal/state"
	"github.com/t-curity/tcurity-backend/internal/store"
)

// Error codes of the verification protocol.
const (
	CodeSessionNotFound       = "SESSION_NOT_FOUND"
	CodeSessionExpired        = "SESSION_EXPIRED"
	CodeInvalidState          = "INVALID_STATE"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeInvalidPayload        = "INVALID_PAYLOAD"
	CodeLowConfidenceBehavior = "LOW_CONFIDENCE_BEHAVIOR"
	CodeWrongAnswer           = "WRONG_ANSWER"
	CodeTimeLimitExceeded     = "TIME_LIMIT_EXCEEDED"
	CodeAnomalousBehavior     = "ANOMALOUS_BEHAVIOR"
)

type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of one protocol operation. Business failures are
// results, not errors: the session is always left consistent and, on a
// failed verification, a fresh challenge rides along.
type Result struct {
	SessionID string
	ClientID  string
	Status    model.Status
	Success   bool
	Problem   any
	Message   string
	Token     string
	Err       *ErrorInfo
}

// Submission is the phase-agnostic submit body. Phase A reads the
// behavior trace (either wrapped or as bare points+metadata); phase B
// reads the answer set plus an optional trace.
type Submission struct {
	Behavior   *model.BehaviorData   `json:"behavior_pattern_data"`
	Points     []model.TracePoint    `json:"points"`
	Metadata   *model.DeviceMetadata `json:"metadata"`
	UserAnswer []string              `json:"user_answer"`
}

func (s *Submission) behavior() *model.BehaviorData {
	if s.Behavior != nil {
		return s.Behavior
	}
	if s.Points != nil && s.Metadata != nil {
		return &model.BehaviorData{Points: s.Points, Metadata: *s.Metadata}
	}
	return nil
}

// Oracle is the behavioral verification collaborator. Both methods
// always return a definitive verdict; the failure policy (closed for
// phase A, open for phase B) lives behind this interface.
type Oracle interface {
	VerifyPhaseA(points []model.TracePoint, meta model.DeviceMetadata) oracle.Verdict
	VerifyPhaseB(points []model.TracePoint, meta model.DeviceMetadata) oracle.Verdict
}

// Orchestrator drives the session protocol. Every operation on one
// session runs under that session's lock, so concurrent submissions
// cannot both advance past the same state or lose a counter increment.
type Orchestrator struct {
	Store  *store.Store
	PhaseA *challenge.PhaseAGenerator
	PhaseB *challenge.PhaseBGenerator
	Oracle Oracle

	PhaseBTimeLimit time.Duration
	// OrderedAnswers switches phase B to the legacy ordered-sequence
	// comparison. Off by default; set-equality is authoritative.
	OrderedAnswers bool

	TokenConfig auth.TokenConfig
	Now         func() int64
}

func (o *Orchestrator) now() int64 {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UnixMilli()
}

// RequestPhaseA issues (or re-issues) the phase A challenge. Allowed
// only in INIT or PHASE_A; the target path is replaced wholesale and
// the attempts counter is preserved.
func (o *Orchestrator) RequestPhaseA(sessionID string) Result {
	unlock := o.Store.LockSession(sessionID)
	defer unlock()

	now := o.now()
	sess, err := o.Store.Get(sessionID, now)
	if err != nil {
		return sessionFailure(err)
	}

	if !state.CanRequestPhaseA(sess.Status) {
		log.Printf("phase A request denied (session_id=%s status=%s)", sessionID, sess.Status)
		return Result{
			SessionID: sess.ID,
			ClientID:  sess.ClientID,
			Status:    sess.Status,
			Err:       &ErrorInfo{Code: CodeInvalidState, Message: "phase A challenge cannot be requested in the current state"},
		}
	}

	public, private := o.PhaseA.Generate(sess.PhaseA.Attempts)
	if _, err := o.Store.ApplyPhaseA(sessionID, model.PhaseAPatch{TargetPath: &private.TargetPath}, now); err != nil {
		return sessionFailure(err)
	}
	updated, err := o.Store.SetStatus(sessionID, model.StatusPhaseA, now)
	if err != nil {
		return transitionFailure(sess, err)
	}

	return Result{
		SessionID: updated.ID,
		ClientID:  updated.ClientID,
		Status:    updated.Status,
		Success:   true,
		Problem:   public,
	}
}

// Submit dispatches a submission by the session's current status.
func (o *Orchestrator) Submit(sessionID string, sub Submission) Result {
	unlock := o.Store.LockSession(sessionID)
	defer unlock()

	now := o.now()
	sess, err := o.Store.Get(sessionID, now)
	if err != nil {
		return sessionFailure(err)
	}

	switch sess.Status {
	case model.StatusPhaseA:
		return o.submitPhaseA(sess, sub, now)
	case model.StatusPhaseB:
		return o.submitPhaseB(sess, sub, now)
	case model.StatusCompleted:
		return Result{
			SessionID: sess.ID,
			ClientID:  sess.ClientID,
			Status:    sess.Status,
			Err:       &ErrorInfo{Code: CodeInvalidState, Message: "session already completed"},
		}
	default:
		return Result{
			SessionID: sess.ID,
			ClientID:  sess.ClientID,
			Status:    sess.Status,
			Err:       &ErrorInfo{Code: CodeInvalidState, Message: "nothing to submit in the current state"},
		}
	}
}

func (o *Orchestrator) submitPhaseA(sess model.Session, sub Submission, now int64) Result {
	behavior := sub.behavior()
	if behavior == nil {
		return Result{
			SessionID: sess.ID,
			ClientID:  sess.ClientID,
			Status:    sess.Status,
			Err:       &ErrorInfo{Code: CodeInvalidPayload, Message: "behavior_pattern_data is required in PHASE_A"},
		}
	}

	verdict := o.Oracle.VerifyPhaseA(behavior.Points, behavior.Metadata)
	if verdict.Pass {
		advanced, err := o.Store.SetStatus(sess.ID, model.StatusPhaseB, now)
		if err != nil {
			return transitionFailure(sess, err)
		}

		failCount := advanced.PhaseB.FailCount // carried over, not reset
		public, private := o.PhaseB.Generate(failCount)
		patch := model.PhaseBPatch{
			CorrectAnswer: &private.CorrectAnswer,
			IssuedAt:      &private.IssuedAt,
			FailCount:     &failCount,
		}
		if _, err := o.Store.ApplyPhaseB(advanced.ID, patch, now); err != nil {
			return sessionFailure(err)
		}

		return Result{
			SessionID: advanced.ID,
			ClientID:  advanced.ClientID,
			Status:    advanced.Status,
			Success:   true,
			Problem:   public,
		}
	}

	log.Printf("phase A verdict: fail (session_id=%s reason=%s)", sess.ID, verdict.Reason)

	attempts := sess.PhaseA.Attempts + 1
	public, private := o.PhaseA.Generate(attempts)
	patch := model.PhaseAPatch{TargetPath: &private.TargetPath, Attempts: &attempts}
	if _, err := o.Store.ApplyPhaseA(sess.ID, patch, now); err != nil {
		return sessionFailure(err)
	}
	updated, err := o.Store.SetStatus(sess.ID, model.StatusPhaseA, now)
	if err != nil {
		return transitionFailure(sess, err)
	}

	return Result{
		SessionID: updated.ID,
		ClientID:  updated.ClientID,
		Status:    updated.Status,
		Problem:   public,
		Err:       &ErrorInfo{Code: CodeLowConfidenceBehavior, Message: "behavior pattern looked automated"},
	}
}

func (o *Orchestrator) submitPhaseB(sess model.Session, sub Submission, now int64) Result {
	if sub.UserAnswer == nil {
		return Result{
			SessionID: sess.ID,
			ClientID:  sess.ClientID,
			Status:    sess.Status,
			Err:       &ErrorInfo{Code: CodeInvalidPayload, Message: "user_answer is required in PHASE_B"},
		}
	}

	elapsed := time.Duration(now-sess.PhaseB.IssuedAt) * time.Millisecond
	if elapsed > o.PhaseBTimeLimit {
		return o.failPhaseB(sess, now, CodeTimeLimitExceeded, "the challenge expired before submission")
	}

	if !o.answersMatch(sub.UserAnswer, sess.PhaseB.CorrectAnswer) {
		return o.failPhaseB(sess, now, CodeWrongAnswer, "the selected images were not correct")
	}

	if behavior := sub.behavior(); behavior != nil {
		verdict := o.Oracle.VerifyPhaseB(behavior.Points, behavior.Metadata)
		if !verdict.Pass {
			log.Printf("phase B verdict: fail (session_id=%s reason=%s)", sess.ID, verdict.Reason)
			return o.failPhaseB(sess, now, CodeAnomalousBehavior, "selection behavior looked automated")
		}
	}

	completed, err := o.Store.SetStatus(sess.ID, model.StatusCompleted, now)
	if err != nil {
		return transitionFailure(sess, err)
	}

	token, err := auth.CreateCompletionToken(completed.ID, completed.ClientID, o.TokenConfig)
	if err != nil {
		log.Printf("completion token mint failed (session_id=%s): %v", completed.ID, err)
	}

	return Result{
		SessionID: completed.ID,
		ClientID:  completed.ClientID,
		Status:    completed.Status,
		Success:   true,
		Message:   "CAPTCHA verification complete",
		Token:     token,
	}
}

// failPhaseB bumps the fail counter and re-issues a fresh challenge
// seeded with the new count, regardless of the failure reason.
func (o *Orchestrator) failPhaseB(sess model.Session, now int64, code, message string) Result {
	failCount := sess.PhaseB.FailCount + 1
	public, private := o.PhaseB.Generate(failCount)
	patch := model.PhaseBPatch{
		CorrectAnswer: &private.CorrectAnswer,
		IssuedAt:      &private.IssuedAt,
		FailCount:     &failCount,
	}
	if _, err := o.Store.ApplyPhaseB(sess.ID, patch, now); err != nil {
		return sessionFailure(err)
	}
	updated, err := o.Store.SetStatus(sess.ID, model.StatusPhaseB, now)
	if err != nil {
		return transitionFailure(sess, err)
	}

	return Result{
		SessionID: updated.ID,
		ClientID:  updated.ClientID,
		Status:    updated.Status,
		Problem:   public,
		Err:       &ErrorInfo{Code: code, Message: message},
	}
}

// VerifyCompleted is the server-to-server final check. Read-only.
func (o *Orchestrator) VerifyCompleted(sessionID string) Result {
	sess, err := o.Store.Get(sessionID, o.now())
	if err != nil {
		return sessionFailure(err)
	}

	res := Result{
		SessionID: sess.ID,
		ClientID:  sess.ClientID,
		Status:    sess.Status,
		Success:   sess.Status == model.StatusCompleted,
	}
	if res.Success {
		token, err := auth.CreateCompletionToken(sess.ID, sess.ClientID, o.TokenConfig)
		if err == nil {
			res.Token = token
		}
	}
	return res
}

func (o *Orchestrator) answersMatch(submitted, correct []string) bool {
	if o.OrderedAnswers {
		if len(submitted) != len(correct) {
			return false
		}
		for i := range submitted {
			if submitted[i] != correct[i] {
				return false
			}
		}
		return true
	}
	return setEqual(submitted, correct)
}

func setEqual(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, v := range b {
		bs[v] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}

func sessionFailure(err error) Result {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return Result{Err: &ErrorInfo{Code: CodeSessionNotFound, Message: "unknown session id"}}
	case errors.Is(err, store.ErrExpired):
		return Result{Err: &ErrorInfo{Code: CodeSessionExpired, Message: "session expired, re-initialize"}}
	default:
		return Result{Err: &ErrorInfo{Code: CodeInvalidPayload, Message: err.Error()}}
	}
}

// transitionFailure covers internal guard trips. The handler
// preconditions make these unreachable; seeing one signals a defect.
func transitionFailure(sess model.Session, err error) Result {
	var ite *state.InvalidTransitionError
	if errors.As(err, &ite) {
		log.Printf("unexpected transition guard trip: %v", ite)
		return Result{
			SessionID: sess.ID,
			ClientID:  sess.ClientID,
			Status:    sess.Status,
			Err:       &ErrorInfo{Code: CodeInvalidTransition, Message: ite.Error()},
		}
	}
	return sessionFailure(err)
}
