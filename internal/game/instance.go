package game

import (
	"fmt"
	"time"

	"github.com/saburov/quizbot/internal/events"
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/pkg/errors"
	"github.com/saburov/quizbot/pkg/logger"
	"github.com/saburov/quizbot/pkg/utils"
)

// retryDelay is the pause before the single retry of a failed persistence
// write. Shortened in tests.
var retryDelay = 100 * time.Millisecond

// AnswerRef is the still-consumable side of one weighted answer.
type AnswerRef struct {
	ID    uint
	Score int
}

// Instance is one in-flight game bound to a conversation. All methods must
// be called from the conversation's ordered event stream; the struct is not
// self-locking.
type Instance struct {
	ID             uint
	ConversationID int64
	Variant        string
	Stage          string
	ThemeID        uint

	Questions     []models.Question
	QuestionIndex int
	// Remaining maps normalized answer text to the answer it consumes.
	// Shrinks monotonically; emptying it drives the next-question-or-finish
	// transition.
	Remaining map[string]AnswerRef

	ResponderID   int64
	ResponderName string
	Roster        map[int64]string

	Paused bool
	// Epoch is the timer generation. Any transition that invalidates an
	// outstanding timer increments it; a TimerEvent with a stale epoch is
	// dropped.
	Epoch uint64

	PinnedMessageID int

	deps Deps
}

// NewInstance builds a not-yet-started game. The durable row is created by
// Start once the question set is known to exist.
func NewInstance(conversationID int64, variant string, themeID uint, deps Deps) *Instance {
	return &Instance{
		ConversationID: conversationID,
		Variant:        variant,
		Stage:          models.StageAwaitingStart,
		ThemeID:        themeID,
		Roster:         make(map[int64]string),
		Remaining:      make(map[string]AnswerRef),
		deps:           deps,
	}
}

// Terminal reports whether the instance can be dropped from the registry.
func (g *Instance) Terminal() bool {
	return models.TerminalStage(g.Stage)
}

// RegistrationKeyboard is shown under the quiz start announcement.
func RegistrationKeyboard() Keyboard {
	return Keyboard{Rows: [][]Button{{
		{Label: BtnJoin, Payload: events.PayloadRegister},
		{Label: BtnLeave, Payload: events.PayloadUnregister},
	}}}
}

// BuzzKeyboard is shown under every open question in the quiz variant.
func BuzzKeyboard() Keyboard {
	return Keyboard{Rows: [][]Button{{
		{Label: BtnKnowAnswer, Payload: events.PayloadBuzz},
	}}}
}

// Start loads the theme's question set and opens the game: quiz games enter
// REGISTRATION under a timeout, blitz games go straight to play. With an
// empty question set the game is canceled before anything durable exists.
func (g *Instance) Start() (Outcome, error) {
	if g.Stage != models.StageAwaitingStart {
		return OutcomeIgnored, errors.New(errors.ErrCodeInvalidStage, "game already started")
	}

	limit := 0
	if g.Variant == models.VariantBlitz {
		limit = g.deps.Settings.BlitzQuestionCount
	}

	questions, err := g.deps.Catalog.GetQuestionsForTheme(g.ThemeID, 0, limit)
	if err != nil {
		g.deps.Notifier.SendText(g.ConversationID, MsgTryAgain)
		return OutcomeIgnored, err
	}
	if len(questions) == 0 {
		// No durable row yet, so nothing to persist for this dead end.
		g.Stage = models.StageCanceled
		g.deps.Notifier.SendText(g.ConversationID, MsgNoQuestions)
		return OutcomeCanceled, errors.New(errors.ErrCodeEmptyQuestionSet, "theme has no questions")
	}

	initialStage := models.StageRegistration
	if g.Variant == models.VariantBlitz {
		initialStage = models.StageAwaitingAnswer
	}

	row, err := g.createGame(initialStage)
	if err != nil {
		g.deps.Notifier.SendText(g.ConversationID, MsgTryAgain)
		return OutcomeIgnored, err
	}

	g.ID = row.ID
	g.Questions = questions
	g.Stage = initialStage
	g.loadRemaining()

	var msgID int
	if g.Variant == models.VariantQuiz {
		text := fmt.Sprintf(MsgQuizStarted, int(g.deps.Settings.RegistrationWindow.Seconds()))
		msgID = g.deps.Notifier.SendTextWithKeyboard(g.ConversationID, text, RegistrationKeyboard())
		g.deps.Schedule(g.ConversationID, g.ID, events.TimerRegistration, g.Epoch, g.deps.Settings.RegistrationWindow)
	} else {
		msgID = g.deps.Notifier.SendText(g.ConversationID, fmt.Sprintf(MsgBlitzStarted, g.currentQuestion().Title))
	}

	if msgID != 0 {
		g.deps.Notifier.Pin(g.ConversationID, msgID)
		g.PinnedMessageID = msgID
		if err := g.deps.Store.SetPinnedMessage(g.ID, msgID); err != nil {
			logger.Warn("Failed to persist pinned message", "game_id", g.ID, "error", err)
		}
	}

	return OutcomeOK, nil
}

// Register adds a player to the roster during REGISTRATION. Idempotent; a
// full roster closes registration immediately.
func (g *Instance) Register(playerID int64, name, callbackID string) (Outcome, error) {
	if g.Stage != models.StageRegistration || g.Paused {
		g.deps.Notifier.SendCallbackAck(callbackID, "")
		return OutcomeIgnored, nil
	}

	added, err := g.deps.Store.AddPlayer(g.ID, playerID, name)
	if err != nil {
		g.deps.Notifier.SendCallbackAck(callbackID, MsgTryAgain)
		return OutcomeIgnored, err
	}
	if !added {
		g.deps.Notifier.SendCallbackAck(callbackID, MsgAlreadyIn)
		return OutcomeAlreadyRegistered, nil
	}

	g.Roster[playerID] = name
	g.deps.Notifier.SendCallbackAck(callbackID, MsgRegistered)

	if len(g.Roster) >= g.deps.Settings.MaxPlayers {
		if err := g.closeRegistration(); err != nil {
			return OutcomeIgnored, err
		}
		g.deps.Notifier.SendText(g.ConversationID, MsgRosterFull)
		g.announceQuestion()
	}

	return OutcomeOK, nil
}

// Unregister removes a player from the roster during REGISTRATION.
func (g *Instance) Unregister(playerID int64, callbackID string) (Outcome, error) {
	if g.Stage != models.StageRegistration || g.Paused {
		g.deps.Notifier.SendCallbackAck(callbackID, "")
		return OutcomeIgnored, nil
	}

	removed, err := g.deps.Store.RemovePlayer(g.ID, playerID)
	if err != nil {
		g.deps.Notifier.SendCallbackAck(callbackID, MsgTryAgain)
		return OutcomeIgnored, err
	}
	if !removed {
		g.deps.Notifier.SendCallbackAck(callbackID, MsgNotOnRoster)
		return OutcomeNotRegistered, nil
	}

	delete(g.Roster, playerID)
	g.deps.Notifier.SendCallbackAck(callbackID, MsgUnregistered)
	return OutcomeOK, nil
}

// RegistrationTimeout fires once per registration window. Underflow cancels
// the game; otherwise play begins.
func (g *Instance) RegistrationTimeout(epoch uint64) (Outcome, error) {
	if epoch != g.Epoch || g.Stage != models.StageRegistration || g.Paused {
		return OutcomeIgnored, nil
	}

	if len(g.Roster) < g.deps.Settings.MinPlayers {
		g.deps.Notifier.SendText(g.ConversationID, MsgNotEnoughPlayers)
		return g.Cancel()
	}

	if err := g.closeRegistration(); err != nil {
		return OutcomeIgnored, err
	}
	g.announceQuestion()
	return OutcomeOK, nil
}

// ClaimBuzz grants the exclusive right to answer. First valid claim wins;
// the race is settled by the conversation's sequential event order.
func (g *Instance) ClaimBuzz(playerID int64, name, callbackID string) (Outcome, error) {
	if g.Paused {
		g.deps.Notifier.SendCallbackAck(callbackID, MsgPaused)
		return OutcomeIgnored, nil
	}
	if g.Stage == models.StageAwaitingAnswer {
		g.deps.Notifier.SendCallbackAck(callbackID, MsgTooLate)
		return OutcomeTooLate, nil
	}
	if g.Stage != models.StageAwaitingBuzz {
		g.deps.Notifier.SendCallbackAck(callbackID, "")
		return OutcomeIgnored, nil
	}
	if _, ok := g.Roster[playerID]; !ok {
		g.deps.Notifier.SendCallbackAck(callbackID, MsgNotRegistered)
		return OutcomeNotRegistered, nil
	}

	if err := g.transition(models.StageAwaitingAnswer); err != nil {
		g.deps.Notifier.SendCallbackAck(callbackID, MsgTryAgain)
		return OutcomeIgnored, err
	}

	g.ResponderID = playerID
	g.ResponderName = name
	g.deps.Notifier.SendCallbackAck(callbackID, MsgBuzzAccepted)
	g.deps.Notifier.SendText(g.ConversationID, fmt.Sprintf(MsgAwaitingAnswer, name))
	g.deps.Schedule(g.ConversationID, g.ID, events.TimerAnswer, g.Epoch, g.deps.Settings.AnswerWindow)

	return OutcomeOK, nil
}

// AnswerTimeout re-offers the question when the responder stays silent. No
// penalty.
func (g *Instance) AnswerTimeout(epoch uint64) (Outcome, error) {
	if epoch != g.Epoch || g.Stage != models.StageAwaitingAnswer || g.Paused {
		return OutcomeIgnored, nil
	}

	if err := g.transition(models.StageAwaitingBuzz); err != nil {
		return OutcomeIgnored, err
	}

	g.clearResponder()
	g.deps.Notifier.SendTextWithKeyboard(g.ConversationID, MsgAnswerTimeout, BuzzKeyboard())
	return OutcomeOK, nil
}

// SubmitAnswer evaluates a text answer. Quiz games accept it only from the
// current responder; blitz games from anyone. Matching is case-insensitive
// exact match against the remaining answers of the current question.
func (g *Instance) SubmitAnswer(playerID int64, name, text string) (Outcome, error) {
	if g.Stage != models.StageAwaitingAnswer || g.Paused {
		return OutcomeIgnored, nil
	}
	if g.Variant == models.VariantQuiz && playerID != g.ResponderID {
		return OutcomeIgnored, nil
	}

	key := utils.NormalizeAnswer(text)
	ref, ok := g.Remaining[key]
	if !ok {
		if g.Variant == models.VariantBlitz {
			// Blitz treats non-answers as chatter.
			return OutcomeIgnored, nil
		}
		if err := g.transition(models.StageAwaitingBuzz); err != nil {
			return OutcomeIgnored, err
		}
		g.clearResponder()
		g.deps.Notifier.SendTextWithKeyboard(g.ConversationID, MsgWrongAnswer, BuzzKeyboard())
		return OutcomeWrongAnswer, nil
	}

	if err := g.recordFact(playerID, ref.ID); err != nil {
		g.deps.Notifier.SendText(g.ConversationID, MsgTryAgain)
		return OutcomeIgnored, err
	}

	answerTitle := g.answerTitle(ref.ID)
	delete(g.Remaining, key)
	g.clearResponder()

	if len(g.Remaining) == 0 {
		return g.advance(name)
	}

	if g.Variant == models.VariantBlitz {
		// Blitz stays open for everyone until the question is exhausted.
		text = fmt.Sprintf(MsgCorrectAnswer, name, answerTitle, ref.Score, len(g.Remaining))
		g.deps.Notifier.SendText(g.ConversationID, text)
		return OutcomeCorrect, nil
	}

	// Quiz question still has open answers: back to the buzzer.
	if err := g.transition(models.StageAwaitingBuzz); err != nil {
		// The fact is durable, so the answer stays consumed in memory too;
		// reopening it here would let another player double-credit it. The
		// still-armed answer timer reopens the question once it fires.
		return OutcomeIgnored, err
	}

	text = fmt.Sprintf(MsgCorrectAnswer, name, answerTitle, ref.Score, len(g.Remaining))
	g.deps.Notifier.SendTextWithKeyboard(g.ConversationID, text, BuzzKeyboard())
	return OutcomeCorrect, nil
}

// Pause freezes timers and play without discarding roster or score state.
func (g *Instance) Pause() (Outcome, error) {
	if g.Terminal() || g.Paused {
		return OutcomeIgnored, nil
	}

	g.Paused = true
	g.Epoch++ // outstanding timers die here
	g.deps.Notifier.SendText(g.ConversationID, MsgPaused)
	return OutcomeOK, nil
}

// Resume unfreezes the game and re-arms the window the stage needs.
func (g *Instance) Resume() (Outcome, error) {
	if g.Terminal() || !g.Paused {
		return OutcomeIgnored, nil
	}

	g.Paused = false
	g.deps.Notifier.SendText(g.ConversationID, MsgResumed)

	switch g.Stage {
	case models.StageRegistration:
		g.deps.Schedule(g.ConversationID, g.ID, events.TimerRegistration, g.Epoch, g.deps.Settings.RegistrationWindow)
	case models.StageAwaitingAnswer:
		if g.Variant == models.VariantQuiz {
			g.deps.Schedule(g.ConversationID, g.ID, events.TimerAnswer, g.Epoch, g.deps.Settings.AnswerWindow)
		}
	}

	return OutcomeOK, nil
}

// Cancel terminates the game. Recorded answer facts are kept.
func (g *Instance) Cancel() (Outcome, error) {
	if g.Terminal() {
		return OutcomeIgnored, nil
	}

	if err := g.transition(models.StageCanceled); err != nil {
		g.deps.Notifier.SendText(g.ConversationID, MsgTryAgain)
		return OutcomeIgnored, err
	}

	if g.PinnedMessageID != 0 {
		g.deps.Notifier.Unpin(g.ConversationID)
	}
	g.deps.Notifier.SendText(g.ConversationID, MsgCanceled)
	return OutcomeCanceled, nil
}

// Finish ends the game and posts the leaderboard, highest score first.
func (g *Instance) Finish() (Outcome, error) {
	if g.Terminal() {
		return OutcomeIgnored, nil
	}

	scores, err := g.deps.Store.LoadScore(g.ID)
	if err != nil {
		logger.Error("Failed to load final score", "game_id", g.ID, "error", err)
	}

	if err := g.transition(models.StageFinished); err != nil {
		g.deps.Notifier.SendText(g.ConversationID, MsgTryAgain)
		return OutcomeIgnored, err
	}

	if g.PinnedMessageID != 0 {
		g.deps.Notifier.Unpin(g.ConversationID)
	}

	g.deps.Notifier.SendText(g.ConversationID, g.leaderboard(scores))
	return OutcomeFinished, nil
}

// advance moves to the next question, or finishes when none remain. The
// question index is persisted before the in-memory cursor moves.
func (g *Instance) advance(lastScorer string) (Outcome, error) {
	next := g.QuestionIndex + 1
	if next >= len(g.Questions) {
		return g.Finish()
	}

	if err := g.persistQuestionIndex(next); err != nil {
		g.deps.Notifier.SendText(g.ConversationID, MsgTryAgain)
		return OutcomeIgnored, err
	}
	g.QuestionIndex = next
	g.loadRemaining()

	if g.Variant == models.VariantBlitz {
		// Blitz stays in AWAITING_ANSWER; only the question changes.
		g.deps.Notifier.SendText(g.ConversationID, fmt.Sprintf(MsgCorrectBlitz, lastScorer, g.currentQuestion().Title))
		return OutcomeAdvanced, nil
	}

	if err := g.transition(models.StageAwaitingBuzz); err != nil {
		return OutcomeIgnored, err
	}
	g.announceQuestion()
	return OutcomeAdvanced, nil
}

func (g *Instance) closeRegistration() error {
	return g.transition(models.StageAwaitingBuzz)
}

// transition durably writes the stage change, then commits it in memory and
// invalidates outstanding timers. A failed write is retried once; a second
// failure leaves the instance untouched.
func (g *Instance) transition(stage string) error {
	err := g.deps.Store.UpdateStage(g.ID, stage)
	if err != nil {
		logger.Warn("Stage write failed, retrying once", "game_id", g.ID, "stage", stage, "error", err)
		time.Sleep(retryDelay)
		err = g.deps.Store.UpdateStage(g.ID, stage)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceDegraded, "stage transition not persisted")
	}

	g.Stage = stage
	g.Epoch++
	return nil
}

func (g *Instance) createGame(stage string) (*models.Game, error) {
	row, err := g.deps.Store.CreateGame(g.ConversationID, g.Variant, g.ThemeID, stage)
	if err != nil {
		logger.Warn("Game create failed, retrying once", "conversation_id", g.ConversationID, "error", err)
		time.Sleep(retryDelay)
		row, err = g.deps.Store.CreateGame(g.ConversationID, g.Variant, g.ThemeID, stage)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceDegraded, "game not persisted")
	}
	return row, nil
}

// recordFact durably credits an answer. An ALREADY_EXISTS from the store
// means the fact row survived an earlier failed or crashed transition; the
// credit is already durable, so it counts as success rather than an error.
func (g *Instance) recordFact(playerID int64, answerID uint) error {
	err := g.deps.Store.RecordAnswerFact(g.ID, playerID, answerID)
	if err != nil && errors.Code(err) != errors.ErrCodeAlreadyExists {
		time.Sleep(retryDelay)
		err = g.deps.Store.RecordAnswerFact(g.ID, playerID, answerID)
	}
	if err == nil || errors.Code(err) == errors.ErrCodeAlreadyExists {
		return nil
	}
	return errors.Wrap(err, errors.ErrCodeServiceDegraded, "answer fact not persisted")
}

func (g *Instance) persistQuestionIndex(index int) error {
	err := g.deps.Store.UpdateQuestionIndex(g.ID, index)
	if err != nil {
		time.Sleep(retryDelay)
		err = g.deps.Store.UpdateQuestionIndex(g.ID, index)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceDegraded, "question index not persisted")
	}
	return nil
}

func (g *Instance) currentQuestion() *models.Question {
	return &g.Questions[g.QuestionIndex]
}

// loadRemaining rebuilds the remaining-answers set for the current question.
func (g *Instance) loadRemaining() {
	g.Remaining = make(map[string]AnswerRef)
	for _, a := range g.currentQuestion().Answers {
		g.Remaining[utils.NormalizeAnswer(a.Title)] = AnswerRef{ID: a.ID, Score: a.Score}
	}
}

func (g *Instance) clearResponder() {
	g.ResponderID = 0
	g.ResponderName = ""
}

func (g *Instance) announceQuestion() {
	text := fmt.Sprintf(MsgQuestion, g.currentQuestion().Title)
	g.deps.Notifier.SendTextWithKeyboard(g.ConversationID, text, BuzzKeyboard())
}

func (g *Instance) answerTitle(answerID uint) string {
	for _, a := range g.currentQuestion().Answers {
		if a.ID == answerID {
			return a.Title
		}
	}
	return ""
}

func (g *Instance) leaderboard(scores []models.PlayerScore) string {
	if len(scores) == 0 {
		return MsgNoScores
	}

	text := MsgFinishedHeader
	for i, s := range scores {
		name, ok := g.Roster[s.ChatUserID]
		if !ok {
			name = fmt.Sprintf("Player %d", s.ChatUserID)
		}
		text += fmt.Sprintf("\n%d. %s — %d", i+1, name, s.Total)
	}
	return text
}
