package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoointerview/internal/metrics"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/repositories"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	minRounds = 3
	maxRounds = 15

	targetInterviewMinutes = 15.0
	minutesPerQuestion     = 2.5
)

var (
	firstTimeIntroduction = []string{
		"Hello and welcome! I am your AI interviewer for today.",
		"Before we start, here is how the session works.",
		"First we confirm your target role and background, then we move on to the interview itself.",
		"The whole session takes about fifteen to twenty minutes.",
		"Find a quiet place, keep a stable connection and aim for two to three minutes per answer.",
		"Let's begin with a few details about you.",
	}
	returningIntroduction = []string{
		"Welcome back, good to see you again!",
		"Let's quickly confirm your details and go straight to the interview.",
	}
)

type InterviewConfig struct {
	// QuestionCount is used when the candidate did not ask for a round count.
	QuestionCount         int
	MaxGenerationAttempts int
	AnalysisPriority      int
}

// AnalysisEnqueuer hands completed sessions to the analysis pipeline.
type AnalysisEnqueuer interface {
	Enqueue(ctx context.Context, sessionID string, priority int) (*models.AnalysisTask, error)
}

type EnqueuerFunc func(ctx context.Context, sessionID string, priority int) (*models.AnalysisTask, error)

func (f EnqueuerFunc) Enqueue(ctx context.Context, sessionID string, priority int) (*models.AnalysisTask, error) {
	return f(ctx, sessionID, priority)
}

type AnswerInput struct {
	Text            string
	AudioURL        *string
	DurationSeconds int
}

type AnswerResult struct {
	RoundNumber int      `json:"round_number"`
	Score       *float64 `json:"score"`
	Feedback    *string  `json:"feedback"`
	IsCompleted bool     `json:"is_completed"`
}

type PlanResult struct {
	TotalRounds   int                    `json:"total_rounds"`
	FirstQuestion *models.InterviewRound `json:"first_question"`
}

type TranscriptUpdate struct {
	Transcript      string
	DurationSeconds int
}

type InterviewService interface {
	StartSession(ctx context.Context, candidateID, candidateName string, isFirstTime bool) (string, error)
	CollectInfo(ctx context.Context, sessionID string, profile models.CandidateProfile) (*models.CandidateProfile, error)
	EnterInterviewPhase(ctx context.Context, sessionID string) (*PlanResult, error)
	StartNextRound(ctx context.Context, sessionID string) (*models.InterviewRound, error)
	SubmitAnswer(ctx context.Context, sessionID string, in AnswerInput) (*AnswerResult, error)
	SkipCurrentRound(ctx context.Context, sessionID string) (*AnswerResult, error)
	EndInterview(ctx context.Context, sessionID string) (*models.InterviewSummary, error)
	GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error)
	AttachTranscripts(ctx context.Context, sessionID string, updates map[int]TranscriptUpdate) error
	FailSession(ctx context.Context, sessionID, reason string) error
	EvictExpired(ctx context.Context, maxAge time.Duration) (int, error)
	ReconcileAnalysis(ctx context.Context) (int, error)
}

type interviewService struct {
	sessions repositories.SessionRepository
	rounds   *RoundManager
	analysis AnalysisEnqueuer
	locks    *KeyedLocker
	validate *validator.Validate
	cfg      InterviewConfig
	log      *logrus.Logger
	now      func() time.Time
}

func NewInterviewService(sessions repositories.SessionRepository, rounds *RoundManager, analysis AnalysisEnqueuer, locks *KeyedLocker, cfg InterviewConfig, log *logrus.Logger) InterviewService {
	if cfg.MaxGenerationAttempts <= 0 {
		cfg.MaxGenerationAttempts = 3
	}
	if locks == nil {
		locks = NewKeyedLocker()
	}
	if log == nil {
		log = logrus.New()
	}
	return &interviewService{
		sessions: sessions,
		rounds:   rounds,
		analysis: analysis,
		locks:    locks,
		validate: validator.New(),
		cfg:      cfg,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// errNoChange lets an update callback finish without writing.
var errNoChange = errors.New("no change")

func stateKey(sessionID string) string { return "state:" + sessionID }
func laneKey(sessionID string) string  { return "lane:" + sessionID }

func (s *interviewService) lock(ctx context.Context, op, key string) (func(), error) {
	unlock, err := s.locks.Lock(ctx, key)
	if err != nil {
		return nil, utils.E(utils.CodeTimeout, op, "waiting for session lock", err)
	}
	return unlock, nil
}

func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return utils.E(utils.CodeNotFound, op, "session not found", err)
	case errors.Is(err, utils.ErrConflict):
		return utils.E(utils.CodeConflict, op, "session was modified concurrently", err)
	default:
		return utils.E(utils.CodeUnavailable, op, "session store unavailable", err)
	}
}

// update loads the session under its state lock, applies fn and writes the
// result back. fn returning errNoChange skips the write.
func (s *interviewService) update(ctx context.Context, op, sessionID string, fn func(*models.InterviewSession) error) (*models.InterviewSession, error) {
	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	unlock, err := s.lock(ctx, op, stateKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	before := sess.Phase
	if err := fn(sess); err != nil {
		if errors.Is(err, errNoChange) {
			return sess, nil
		}
		return nil, err
	}
	sess.UpdatedAt = s.now()
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, storeErr(op, err)
	}
	if sess.Phase != before {
		metrics.SessionTransitions.WithLabelValues(string(sess.Phase)).Inc()
		s.log.WithFields(logrus.Fields{"session_id": sessionID, "from": before, "to": sess.Phase}).Info("session phase changed")
	}
	return sess, nil
}

func moveTo(op string, sess *models.InterviewSession, to models.Phase) error {
	if !sess.Phase.CanTransition(to) {
		return utils.E(utils.CodeFailedPrecondition, op,
			fmt.Sprintf("invalid phase transition: cannot move from %q to %q", sess.Phase, to),
			utils.ErrInvalidPhaseTransition)
	}
	sess.Phase = to
	return nil
}

func (s *interviewService) StartSession(ctx context.Context, candidateID, candidateName string, isFirstTime bool) (string, error) {
	const op = "InterviewService.StartSession"

	now := s.now()
	intro := returningIntroduction
	if isFirstTime {
		intro = firstTimeIntroduction
	}
	sess := &models.InterviewSession{
		SessionID:     uuid.NewString(),
		CandidateID:   candidateID,
		CandidateName: candidateName,
		IsFirstTime:   isFirstTime,
		Phase:         models.PhaseIntroduction,
		Introduction:  append([]string(nil), intro...),
		Rounds:        []models.InterviewRound{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to create session", err)
	}
	metrics.SessionTransitions.WithLabelValues(string(models.PhaseIntroduction)).Inc()
	s.log.WithFields(logrus.Fields{"session_id": sess.SessionID, "candidate_id": candidateID}).Info("session started")
	return sess.SessionID, nil
}

func (s *interviewService) CollectInfo(ctx context.Context, sessionID string, profile models.CandidateProfile) (*models.CandidateProfile, error) {
	const op = "InterviewService.CollectInfo"

	var invalid error
	sess, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		if !sess.Phase.In(models.PhaseIntroduction, models.PhaseCollectingInfo) {
			return utils.PhaseError(op, string(sess.Phase), string(models.PhaseIntroduction), string(models.PhaseCollectingInfo))
		}
		sess.Profile = sess.Profile.Merge(profile)

		if verr := s.validate.Struct(sess.Profile); verr != nil {
			invalid = verr
			if sess.Phase == models.PhaseCollectingInfo {
				return nil
			}
			return moveTo(op, sess, models.PhaseCollectingInfo)
		}
		return moveTo(op, sess, models.PhaseGenerating)
	})
	if err != nil {
		return nil, err
	}
	if invalid != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "candidate profile is incomplete or invalid", invalid)
	}
	out := sess.Profile.Clone()
	return &out, nil
}

// roundCount picks the candidate's request, then configuration, then the
// time-based default, always within [minRounds, maxRounds].
func (s *interviewService) roundCount(p models.CandidateProfile) int {
	n := p.RequestedRounds
	if n <= 0 {
		n = s.cfg.QuestionCount
	}
	if n <= 0 {
		n = int(math.Ceil(targetInterviewMinutes / minutesPerQuestion))
	}
	if n < minRounds {
		n = minRounds
	}
	if n > maxRounds {
		n = maxRounds
	}
	return n
}

func (s *interviewService) EnterInterviewPhase(ctx context.Context, sessionID string) (*PlanResult, error) {
	const op = "InterviewService.EnterInterviewPhase"

	// One plan generation per session at a time; the state lock stays free.
	unlockLane, err := s.lock(ctx, op, laneKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlockLane()

	var profile models.CandidateProfile
	if _, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		if sess.Phase != models.PhaseGenerating {
			return utils.PhaseError(op, string(sess.Phase), string(models.PhaseGenerating))
		}
		profile = sess.Profile.Clone()
		return errNoChange
	}); err != nil {
		return nil, err
	}

	count := s.roundCount(profile)
	plan, genErr := s.rounds.GeneratePlan(ctx, profile, count)

	var failed bool
	sess, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		if sess.Phase != models.PhaseGenerating {
			return utils.PhaseError(op, string(sess.Phase), string(models.PhaseGenerating))
		}
		if genErr != nil {
			sess.GenerationAttempts++
			if sess.GenerationAttempts >= s.cfg.MaxGenerationAttempts {
				failed = true
				sess.FailureReason = fmt.Sprintf("question generation failed %d times: %v", sess.GenerationAttempts, genErr)
				return moveTo(op, sess, models.PhaseFailed)
			}
			return nil
		}
		sess.Plan = plan
		sess.TotalRounds = len(plan)
		sess.Rounds = []models.InterviewRound{models.NewRoundFromQuestion(1, plan[0])}
		return moveTo(op, sess, models.PhaseReady)
	})
	if err != nil {
		return nil, err
	}

	if genErr != nil {
		msg := "question generation failed, try again"
		if failed {
			msg = "question generation failed too many times; session failed"
		}
		s.log.WithFields(logrus.Fields{"session_id": sessionID, "attempts": sess.GenerationAttempts}).
			WithError(genErr).Warn("plan generation failed")
		return nil, utils.E(utils.CodeAIUnavailable, op, msg, genErr)
	}

	first := sess.Rounds[0].Clone()
	s.log.WithFields(logrus.Fields{"session_id": sessionID, "total_rounds": sess.TotalRounds}).Info("interview plan ready")
	return &PlanResult{TotalRounds: sess.TotalRounds, FirstQuestion: &first}, nil
}

// materializeNext appends the next planned round as pending, if any.
func materializeNext(sess *models.InterviewSession) {
	if sess.NextPendingRound() != nil || len(sess.Rounds) >= sess.TotalRounds || len(sess.Rounds) >= len(sess.Plan) {
		return
	}
	n := len(sess.Rounds)
	sess.Rounds = append(sess.Rounds, models.NewRoundFromQuestion(n+1, sess.Plan[n]))
}

func (s *interviewService) StartNextRound(ctx context.Context, sessionID string) (*models.InterviewRound, error) {
	const op = "InterviewService.StartNextRound"

	var out *models.InterviewRound
	_, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		if !sess.Phase.In(models.PhaseReady, models.PhaseInProgress) {
			return utils.PhaseError(op, string(sess.Phase), string(models.PhaseReady), string(models.PhaseInProgress))
		}
		if r := sess.InProgressRound(); r != nil {
			c := r.Clone()
			out = &c
			return errNoChange
		}
		materializeNext(sess)
		r := sess.NextPendingRound()
		if r == nil {
			return errNoChange
		}
		if sess.Phase == models.PhaseReady {
			if err := moveTo(op, sess, models.PhaseInProgress); err != nil {
				return err
			}
		}
		now := s.now()
		r.Status = models.RoundInProgress
		r.StartedAt = &now
		c := r.Clone()
		out = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// consume marks the in-progress round and materializes the next one. It
// returns a copy of the consumed round and the answered rounds before it.
func (s *interviewService) consume(op string, sess *models.InterviewSession, status models.RoundStatus, in AnswerInput) (models.InterviewRound, []models.InterviewRound, error) {
	r := sess.InProgressRound()
	if sess.Phase != models.PhaseInProgress || r == nil {
		return models.InterviewRound{}, nil, utils.PhaseError(op, string(sess.Phase), "in_progress with a round in progress")
	}

	now := s.now()
	r.Status = status
	r.AnsweredAt = &now
	r.Score = nil
	r.Feedback = nil
	if status == models.RoundAnswered {
		pending := models.FeedbackPending
		r.AnswerText = in.Text
		r.AnswerAudioURL = in.AudioURL
		r.AnswerDurationSeconds = in.DurationSeconds
		r.Feedback = &pending
	}
	current := r.Clone()
	metrics.RoundsConsumed.WithLabelValues(string(status)).Inc()

	var history []models.InterviewRound
	for _, prev := range sess.Rounds {
		if prev.RoundNumber < current.RoundNumber && prev.Status == models.RoundAnswered {
			history = append(history, prev.Clone())
		}
	}
	materializeNext(sess)
	return current, history, nil
}

func (s *interviewService) SubmitAnswer(ctx context.Context, sessionID string, in AnswerInput) (*AnswerResult, error) {
	const op = "InterviewService.SubmitAnswer"

	if in.Text == "" && (in.AudioURL == nil || *in.AudioURL == "") {
		return nil, utils.E(utils.CodeInvalidArgument, op, "answer text or audio is required", nil)
	}
	if in.DurationSeconds < 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "duration_seconds must not be negative", nil)
	}

	// Scoring runs in submission order; the lane is taken before the state lock.
	unlockLane, err := s.lock(ctx, op, laneKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlockLane()

	var (
		round   models.InterviewRound
		history []models.InterviewRound
		profile models.CandidateProfile
	)
	sess, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		var err error
		round, history, err = s.consume(op, sess, models.RoundAnswered, in)
		profile = sess.Profile.Clone()
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &AnswerResult{
		RoundNumber: round.RoundNumber,
		Feedback:    round.Feedback,
		IsCompleted: sess.AllRoundsConsumed(),
	}
	if in.Text == "" {
		// Audio answers are scored once transcribed by the analysis pipeline.
		return res, nil
	}

	outcome := s.rounds.ScoreAnswer(ctx, profile, round, in.Text, history)
	if outcome.Score == nil {
		return res, nil
	}
	res.Score, res.Feedback = outcome.Score, outcome.Feedback

	if _, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		r := sess.Round(round.RoundNumber)
		if r == nil || r.Status != models.RoundAnswered || r.Score != nil {
			return errNoChange
		}
		r.Score, r.Feedback = outcome.Score, outcome.Feedback
		return nil
	}); err != nil {
		s.log.WithFields(logrus.Fields{"session_id": sessionID, "round": round.RoundNumber}).
			WithError(err).Error("failed to store answer score")
	}
	return res, nil
}

func (s *interviewService) SkipCurrentRound(ctx context.Context, sessionID string) (*AnswerResult, error) {
	const op = "InterviewService.SkipCurrentRound"

	unlockLane, err := s.lock(ctx, op, laneKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlockLane()

	var round models.InterviewRound
	sess, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		var err error
		round, _, err = s.consume(op, sess, models.RoundSkipped, AnswerInput{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &AnswerResult{RoundNumber: round.RoundNumber, IsCompleted: sess.AllRoundsConsumed()}, nil
}

func buildSummary(sess *models.InterviewSession, now time.Time) *models.InterviewSummary {
	sum := &models.InterviewSummary{
		SessionID:     sess.SessionID,
		CandidateName: sess.CandidateName,
		TargetJob:     sess.Profile.TargetJob,
		TotalRounds:   sess.TotalRounds,
	}
	var total float64
	for _, r := range sess.Rounds {
		switch r.Status {
		case models.RoundAnswered:
			sum.AnsweredRounds++
		case models.RoundSkipped:
			sum.SkippedRounds++
		}
		if r.Score != nil {
			sum.ScoredRounds++
			total += *r.Score
		}
	}
	if sum.ScoredRounds > 0 {
		avg := math.Round(total/float64(sum.ScoredRounds)*100) / 100
		sum.AverageScore = &avg
	}
	sum.DurationSeconds = int64(now.Sub(sess.CreatedAt).Seconds())
	return sum
}

func (s *interviewService) EndInterview(ctx context.Context, sessionID string) (*models.InterviewSummary, error) {
	const op = "InterviewService.EndInterview"

	// Waiting on the lane lets in-flight scoring land before the summary.
	unlockLane, err := s.lock(ctx, op, laneKey(sessionID))
	if err != nil {
		return nil, err
	}
	defer unlockLane()

	sess, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		if sess.Phase == models.PhaseCompleted {
			return errNoChange
		}
		if sess.Phase != models.PhaseInProgress || !sess.AllRoundsConsumed() {
			return utils.PhaseError(op, string(sess.Phase), "in_progress with every round answered or skipped", string(models.PhaseCompleted))
		}
		now := s.now()
		if err := moveTo(op, sess, models.PhaseCompleted); err != nil {
			return err
		}
		sess.CompletedAt = &now
		sess.Summary = buildSummary(sess, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !sess.AnalysisEnqueued {
		if updated, err := s.enqueueAnalysis(ctx, sessionID); err == nil {
			sess = updated
		}
	}
	sum := *sess.Summary
	return &sum, nil
}

// enqueueAnalysis runs outside the state lock. A failure is logged and left
// for the next EndInterview or reconcile pass.
func (s *interviewService) enqueueAnalysis(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	const op = "InterviewService.enqueueAnalysis"

	task, err := s.analysis.Enqueue(ctx, sessionID, s.cfg.AnalysisPriority)
	if err != nil {
		s.log.WithField("session_id", sessionID).WithError(err).Error("failed to enqueue analysis")
		return nil, err
	}
	sess, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		if sess.AnalysisEnqueued && sess.AnalysisTaskID == task.TaskID {
			return errNoChange
		}
		sess.AnalysisEnqueued = true
		sess.AnalysisTaskID = task.TaskID
		if sess.Summary != nil {
			sess.Summary.AnalysisTaskID = task.TaskID
		}
		return nil
	})
	if err != nil {
		s.log.WithFields(logrus.Fields{"session_id": sessionID, "task_id": task.TaskID}).
			WithError(err).Error("failed to record analysis task on session")
		return nil, err
	}
	return sess, nil
}

func (s *interviewService) GetSession(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	const op = "InterviewService.GetSession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return sess.Clone(), nil
}

func (s *interviewService) AttachTranscripts(ctx context.Context, sessionID string, updates map[int]TranscriptUpdate) error {
	const op = "InterviewService.AttachTranscripts"

	if len(updates) == 0 {
		return nil
	}
	_, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		changed := false
		for number, u := range updates {
			r := sess.Round(number)
			if r == nil {
				return utils.E(utils.CodeInvalidArgument, op, fmt.Sprintf("round %d does not exist", number), nil)
			}
			r.Transcript = u.Transcript
			if r.AnswerDurationSeconds == 0 && u.DurationSeconds > 0 {
				r.AnswerDurationSeconds = u.DurationSeconds
			}
			changed = true
		}
		if !changed {
			return errNoChange
		}
		return nil
	})
	return err
}

func (s *interviewService) FailSession(ctx context.Context, sessionID, reason string) error {
	const op = "InterviewService.FailSession"

	_, err := s.update(ctx, op, sessionID, func(sess *models.InterviewSession) error {
		if sess.Phase.IsTerminal() {
			return utils.PhaseError(op, string(sess.Phase), "a non-terminal phase")
		}
		sess.FailureReason = reason
		return moveTo(op, sess, models.PhaseFailed)
	})
	return err
}

const sweepBatch = 500

func (s *interviewService) EvictExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	const op = "InterviewService.EvictExpired"

	if maxAge <= 0 {
		return 0, utils.E(utils.CodeInvalidArgument, op, "max age must be positive", nil)
	}
	cutoff := s.now().Add(-maxAge)
	expired, err := s.sessions.ListUpdatedBefore(ctx, cutoff, sweepBatch)
	if err != nil {
		return 0, utils.E(utils.CodeUnavailable, op, "failed to list expired sessions", err)
	}

	evicted := 0
	for _, candidate := range expired {
		ok, err := s.evictOne(ctx, candidate.SessionID, cutoff)
		if err != nil {
			s.log.WithField("session_id", candidate.SessionID).WithError(err).Warn("session eviction failed")
			continue
		}
		if ok {
			evicted++
		}
	}
	if evicted > 0 {
		s.log.WithFields(logrus.Fields{"evicted": evicted, "cutoff": cutoff}).Info("expired sessions evicted")
	}
	return evicted, nil
}

func (s *interviewService) evictOne(ctx context.Context, sessionID string, cutoff time.Time) (bool, error) {
	unlock, err := s.locks.Lock(ctx, stateKey(sessionID))
	if err != nil {
		return false, err
	}
	defer unlock()

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !sess.UpdatedAt.Before(cutoff) {
		return false, nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, utils.ErrNotFound) {
		return false, err
	}
	return true, nil
}

// ReconcileAnalysis enqueues completed sessions whose enqueue never landed.
func (s *interviewService) ReconcileAnalysis(ctx context.Context) (int, error) {
	const op = "InterviewService.ReconcileAnalysis"

	pending, err := s.sessions.ListAwaitingAnalysis(ctx, sweepBatch)
	if err != nil {
		return 0, utils.E(utils.CodeUnavailable, op, "failed to list sessions awaiting analysis", err)
	}
	n := 0
	for _, sess := range pending {
		if _, err := s.enqueueAnalysis(ctx, sess.SessionID); err == nil {
			n++
		}
	}
	return n, nil
}
