package game

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/saburov/quizbot/internal/events"
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/pkg/errors"
	"github.com/saburov/quizbot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type fakeCatalog struct {
	questions []models.Question
	err       error
}

func (c *fakeCatalog) GetRandomQuestion() (*models.Question, error) {
	if c.err != nil {
		return nil, c.err
	}
	if len(c.questions) == 0 {
		return nil, errors.New(errors.ErrCodeNotFound, "no questions")
	}
	return &c.questions[0], nil
}

func (c *fakeCatalog) GetQuestionsForTheme(themeID uint, offset, limit int) ([]models.Question, error) {
	if c.err != nil {
		return nil, c.err
	}
	qs := c.questions
	if limit > 0 && limit < len(qs) {
		qs = qs[:limit]
	}
	return qs, nil
}

type factKey struct {
	gameID   uint
	playerID int64
	answerID uint
}

type fakeStore struct {
	nextID uint
	games  map[uint]*models.Game

	players map[uint]map[int64]string
	facts   map[factKey]struct{}
	scores  []models.PlayerScore

	// failure injection: counts of upcoming calls that fail
	failCreate int
	failStage  int
	failIndex  int
	failFact   int

	stageWrites []string
	indexWrites []int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		games:   make(map[uint]*models.Game),
		players: make(map[uint]map[int64]string),
		facts:   make(map[factKey]struct{}),
	}
}

func (s *fakeStore) CreateGame(conversationID int64, variant string, themeID uint, stage string) (*models.Game, error) {
	if s.failCreate > 0 {
		s.failCreate--
		return nil, errors.New(errors.ErrCodeInternalError, "create failed")
	}
	s.nextID++
	row := &models.Game{
		ID:             s.nextID,
		ConversationID: conversationID,
		Variant:        variant,
		Stage:          stage,
		ThemeID:        themeID,
	}
	s.games[row.ID] = row
	return row, nil
}

func (s *fakeStore) UpdateStage(gameID uint, stage string) error {
	if s.failStage > 0 {
		s.failStage--
		return errors.New(errors.ErrCodeInternalError, "stage write failed")
	}
	if row, ok := s.games[gameID]; ok {
		row.Stage = stage
	}
	s.stageWrites = append(s.stageWrites, stage)
	return nil
}

func (s *fakeStore) UpdateQuestionIndex(gameID uint, index int) error {
	if s.failIndex > 0 {
		s.failIndex--
		return errors.New(errors.ErrCodeInternalError, "index write failed")
	}
	if row, ok := s.games[gameID]; ok {
		row.QuestionIndex = index
	}
	s.indexWrites = append(s.indexWrites, index)
	return nil
}

func (s *fakeStore) SetPinnedMessage(gameID uint, messageID int) error {
	if row, ok := s.games[gameID]; ok {
		row.PinnedMessageID = messageID
	}
	return nil
}

func (s *fakeStore) AddPlayer(gameID uint, chatUserID int64, name string) (bool, error) {
	if s.players[gameID] == nil {
		s.players[gameID] = make(map[int64]string)
	}
	if _, ok := s.players[gameID][chatUserID]; ok {
		return false, nil
	}
	s.players[gameID][chatUserID] = name
	return true, nil
}

func (s *fakeStore) RemovePlayer(gameID uint, chatUserID int64) (bool, error) {
	if _, ok := s.players[gameID][chatUserID]; !ok {
		return false, nil
	}
	delete(s.players[gameID], chatUserID)
	return true, nil
}

func (s *fakeStore) GetPlayers(gameID uint) ([]models.Player, error) {
	var out []models.Player
	for id, name := range s.players[gameID] {
		out = append(out, models.Player{GameID: gameID, ChatUserID: id, Name: name})
	}
	return out, nil
}

func (s *fakeStore) RecordAnswerFact(gameID uint, chatUserID int64, answerID uint) error {
	if s.failFact > 0 {
		s.failFact--
		return errors.New(errors.ErrCodeInternalError, "fact write failed")
	}
	key := factKey{gameID, chatUserID, answerID}
	if _, ok := s.facts[key]; ok {
		return errors.New(errors.ErrCodeAlreadyExists, "answer already recorded")
	}
	s.facts[key] = struct{}{}
	return nil
}

func (s *fakeStore) ConsumedAnswerIDs(gameID uint) ([]uint, error) {
	var out []uint
	for key := range s.facts {
		if key.gameID == gameID {
			out = append(out, key.answerID)
		}
	}
	return out, nil
}

func (s *fakeStore) LoadActiveGames() ([]models.Game, error) {
	var out []models.Game
	for _, row := range s.games {
		if !models.TerminalStage(row.Stage) {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (s *fakeStore) LoadScore(gameID uint) ([]models.PlayerScore, error) {
	return s.scores, nil
}

type fakeNotifier struct {
	texts     []string
	acks      []string
	pinned    []int
	unpins    int
	nextMsgID int
}

func (n *fakeNotifier) SendText(conversationID int64, text string) int {
	n.texts = append(n.texts, text)
	n.nextMsgID++
	return n.nextMsgID
}

func (n *fakeNotifier) SendTextWithKeyboard(conversationID int64, text string, keyboard Keyboard) int {
	n.texts = append(n.texts, text)
	n.nextMsgID++
	return n.nextMsgID
}

func (n *fakeNotifier) SendCallbackAck(callbackID string, popupText string) {
	n.acks = append(n.acks, popupText)
}

func (n *fakeNotifier) Pin(conversationID int64, messageRef int) {
	n.pinned = append(n.pinned, messageRef)
}

func (n *fakeNotifier) Unpin(conversationID int64) {
	n.unpins++
}

func (n *fakeNotifier) lastText() string {
	if len(n.texts) == 0 {
		return ""
	}
	return n.texts[len(n.texts)-1]
}

func (n *fakeNotifier) lastAck() string {
	if len(n.acks) == 0 {
		return ""
	}
	return n.acks[len(n.acks)-1]
}

type schedCall struct {
	kind  events.TimerKind
	epoch uint64
	d     time.Duration
}

type testEnv struct {
	store    *fakeStore
	notifier *fakeNotifier
	sched    []schedCall
}

func (e *testEnv) schedule(conversationID int64, gameID uint, kind events.TimerKind, epoch uint64, d time.Duration) {
	e.sched = append(e.sched, schedCall{kind: kind, epoch: epoch, d: d})
}

func (e *testEnv) lastSched() schedCall {
	return e.sched[len(e.sched)-1]
}

func quizQuestions() []models.Question {
	return []models.Question{
		{ID: 1, ThemeID: 1, Title: "Name something people keep at home", Answers: []models.Answer{
			{ID: 11, QuestionID: 1, Title: "Cat", Score: 60},
			{ID: 12, QuestionID: 1, Title: "Dog", Score: 40},
		}},
		{ID: 2, ThemeID: 1, Title: "Name the red planet", Answers: []models.Answer{
			{ID: 21, QuestionID: 2, Title: "Mars", Score: 100},
		}},
	}
}

func newTestInstance(t *testing.T, variant string, questions []models.Question) (*Instance, *testEnv) {
	t.Helper()
	retryDelay = 0

	env := &testEnv{
		store:    newFakeStore(),
		notifier: &fakeNotifier{},
	}
	deps := Deps{
		Catalog:  &fakeCatalog{questions: questions},
		Store:    env.store,
		Notifier: env.notifier,
		Schedule: env.schedule,
		Settings: Settings{
			RegistrationWindow: 30 * time.Second,
			AnswerWindow:       20 * time.Second,
			MinPlayers:         2,
			MaxPlayers:         3,
			BlitzQuestionCount: 2,
		},
	}
	return NewInstance(100, variant, 1, deps), env
}

// startedQuiz returns a quiz already through registration with two players,
// sitting in AWAITING_BUZZ on the first question.
func startedQuiz(t *testing.T, questions []models.Question) (*Instance, *testEnv) {
	t.Helper()
	g, env := newTestInstance(t, models.VariantQuiz, questions)
	mustOutcome(t, g.Start, OutcomeOK)
	mustRegister(t, g, 1, "alice")
	mustRegister(t, g, 2, "bob")
	if outcome, err := g.RegistrationTimeout(g.Epoch); err != nil || outcome != OutcomeOK {
		t.Fatalf("RegistrationTimeout() = %v, %v", outcome, err)
	}
	return g, env
}

func mustOutcome(t *testing.T, op func() (Outcome, error), want Outcome) {
	t.Helper()
	outcome, err := op()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != want {
		t.Fatalf("outcome = %v, want %v", outcome, want)
	}
}

func mustRegister(t *testing.T, g *Instance, playerID int64, name string) {
	t.Helper()
	outcome, err := g.Register(playerID, name, "cb")
	if err != nil || outcome != OutcomeOK {
		t.Fatalf("Register(%d) = %v, %v", playerID, outcome, err)
	}
}

func mustClaim(t *testing.T, g *Instance, playerID int64, name string) {
	t.Helper()
	outcome, err := g.ClaimBuzz(playerID, name, "cb")
	if err != nil || outcome != OutcomeOK {
		t.Fatalf("ClaimBuzz(%d) = %v, %v", playerID, outcome, err)
	}
}

func TestStartQuizOpensRegistration(t *testing.T) {
	g, env := newTestInstance(t, models.VariantQuiz, quizQuestions())

	mustOutcome(t, g.Start, OutcomeOK)

	if g.Stage != models.StageRegistration {
		t.Errorf("stage = %q, want %q", g.Stage, models.StageRegistration)
	}
	if g.ID == 0 {
		t.Error("expected a persisted game row")
	}
	if row := env.store.games[g.ID]; row.Stage != models.StageRegistration {
		t.Errorf("persisted stage = %q, want %q", row.Stage, models.StageRegistration)
	}
	if len(env.sched) != 1 || env.lastSched().kind != events.TimerRegistration {
		t.Fatalf("expected one registration timer, got %v", env.sched)
	}
	if len(env.notifier.pinned) != 1 {
		t.Errorf("expected the start message pinned, got %d pins", len(env.notifier.pinned))
	}
}

func TestStartEmptyThemeCancelsWithoutRow(t *testing.T) {
	g, env := newTestInstance(t, models.VariantQuiz, nil)

	outcome, err := g.Start()
	if outcome != OutcomeCanceled {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeCanceled)
	}
	if errors.Code(err) != errors.ErrCodeEmptyQuestionSet {
		t.Errorf("error code = %q, want %q", errors.Code(err), errors.ErrCodeEmptyQuestionSet)
	}
	if g.Stage != models.StageCanceled {
		t.Errorf("stage = %q, want %q", g.Stage, models.StageCanceled)
	}
	if len(env.store.games) != 0 {
		t.Error("empty-theme cancel must not create a game row")
	}
}

func TestStartBlitzLimitsQuestionCount(t *testing.T) {
	questions := quizQuestions()
	questions = append(questions, models.Question{
		ID: 3, ThemeID: 1, Title: "Capital of France", Answers: []models.Answer{
			{ID: 31, QuestionID: 3, Title: "Paris", Score: 100},
		},
	})

	g, env := newTestInstance(t, models.VariantBlitz, questions)
	mustOutcome(t, g.Start, OutcomeOK)

	if g.Stage != models.StageAwaitingAnswer {
		t.Errorf("stage = %q, want %q", g.Stage, models.StageAwaitingAnswer)
	}
	if len(g.Questions) != 2 {
		t.Errorf("question count = %d, want the blitz limit of 2", len(g.Questions))
	}
	if len(env.sched) != 0 {
		t.Errorf("blitz must not schedule timers, got %v", env.sched)
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	g, _ := newTestInstance(t, models.VariantQuiz, quizQuestions())
	mustOutcome(t, g.Start, OutcomeOK)

	mustRegister(t, g, 1, "alice")

	outcome, err := g.Register(1, "alice", "cb2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeAlreadyRegistered {
		t.Errorf("second register = %v, want %v", outcome, OutcomeAlreadyRegistered)
	}
	if len(g.Roster) != 1 {
		t.Errorf("roster size = %d, want 1", len(g.Roster))
	}
}

func TestUnregisterBeforeClose(t *testing.T) {
	g, _ := newTestInstance(t, models.VariantQuiz, quizQuestions())
	mustOutcome(t, g.Start, OutcomeOK)
	mustRegister(t, g, 1, "alice")

	outcome, err := g.Unregister(1, "cb")
	if err != nil || outcome != OutcomeOK {
		t.Fatalf("Unregister() = %v, %v", outcome, err)
	}
	if len(g.Roster) != 0 {
		t.Errorf("roster size = %d, want 0", len(g.Roster))
	}

	outcome, _ = g.Unregister(1, "cb")
	if outcome != OutcomeNotRegistered {
		t.Errorf("repeat unregister = %v, want %v", outcome, OutcomeNotRegistered)
	}
}

func TestFullRosterClosesRegistrationEarly(t *testing.T) {
	g, env := newTestInstance(t, models.VariantQuiz, quizQuestions())
	mustOutcome(t, g.Start, OutcomeOK)

	mustRegister(t, g, 1, "alice")
	mustRegister(t, g, 2, "bob")
	mustRegister(t, g, 3, "carol") // MaxPlayers = 3

	if g.Stage != models.StageAwaitingBuzz {
		t.Errorf("stage = %q, want %q", g.Stage, models.StageAwaitingBuzz)
	}

	// The registration timer is now stale and must be a no-op.
	firstEpoch := env.sched[0].epoch
	outcome, err := g.RegistrationTimeout(firstEpoch)
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("stale RegistrationTimeout() = %v, %v, want ignored", outcome, err)
	}
}

func TestRegistrationUnderflowCancels(t *testing.T) {
	g, env := newTestInstance(t, models.VariantQuiz, quizQuestions())
	mustOutcome(t, g.Start, OutcomeOK)
	mustRegister(t, g, 1, "alice") // MinPlayers = 2

	outcome, err := g.RegistrationTimeout(g.Epoch)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCanceled {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeCanceled)
	}
	if row := env.store.games[g.ID]; row.Stage != models.StageCanceled {
		t.Errorf("persisted stage = %q, want %q", row.Stage, models.StageCanceled)
	}
}

func TestFirstBuzzWins(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())

	mustClaim(t, g, 1, "alice")

	if g.Stage != models.StageAwaitingAnswer {
		t.Fatalf("stage = %q, want %q", g.Stage, models.StageAwaitingAnswer)
	}
	if g.ResponderID != 1 {
		t.Errorf("responder = %d, want 1", g.ResponderID)
	}

	outcome, err := g.ClaimBuzz(2, "bob", "cb2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeTooLate {
		t.Errorf("second claim = %v, want %v", outcome, OutcomeTooLate)
	}
	if g.ResponderID != 1 {
		t.Errorf("responder changed to %d after a losing claim", g.ResponderID)
	}
	if env.notifier.lastAck() != MsgTooLate {
		t.Errorf("losing claim ack = %q, want %q", env.notifier.lastAck(), MsgTooLate)
	}
}

func TestBuzzFromNonPlayerRejected(t *testing.T) {
	g, _ := startedQuiz(t, quizQuestions())

	outcome, err := g.ClaimBuzz(99, "mallory", "cb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeNotRegistered {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeNotRegistered)
	}
	if g.Stage != models.StageAwaitingBuzz {
		t.Errorf("stage = %q, want unchanged %q", g.Stage, models.StageAwaitingBuzz)
	}
}

func TestAnswerFromNonResponderIgnored(t *testing.T) {
	g, _ := startedQuiz(t, quizQuestions())
	mustClaim(t, g, 1, "alice")

	outcome, err := g.SubmitAnswer(2, "bob", "Cat")
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("non-responder answer = %v, %v, want ignored", outcome, err)
	}
	if _, ok := g.Remaining["cat"]; !ok {
		t.Error("answer consumed by a non-responder")
	}
}

func TestWrongAnswerReopensQuestion(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	mustClaim(t, g, 1, "alice")

	outcome, err := g.SubmitAnswer(1, "alice", "Elephant")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeWrongAnswer {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeWrongAnswer)
	}
	if g.Stage != models.StageAwaitingBuzz {
		t.Errorf("stage = %q, want %q", g.Stage, models.StageAwaitingBuzz)
	}
	if g.ResponderID != 0 {
		t.Errorf("responder not cleared: %d", g.ResponderID)
	}
	if len(g.Remaining) != 2 {
		t.Errorf("remaining answers = %d, want 2", len(g.Remaining))
	}
	if env.notifier.lastText() != MsgWrongAnswer {
		t.Errorf("last text = %q, want %q", env.notifier.lastText(), MsgWrongAnswer)
	}
}

func TestCorrectAnswerShrinksBoardMonotonically(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())

	mustClaim(t, g, 1, "alice")
	outcome, err := g.SubmitAnswer(1, "alice", "  CAT ") // normalization applies
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCorrect {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeCorrect)
	}
	if len(g.Remaining) != 1 {
		t.Fatalf("remaining = %d, want 1", len(g.Remaining))
	}
	if _, ok := env.store.facts[factKey{g.ID, 1, 11}]; !ok {
		t.Error("answer fact not persisted")
	}

	// Consuming the last answer advances to the next question.
	mustClaim(t, g, 2, "bob")
	outcome, err = g.SubmitAnswer(2, "bob", "dog")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeAdvanced {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeAdvanced)
	}
	if g.QuestionIndex != 1 {
		t.Errorf("question index = %d, want 1", g.QuestionIndex)
	}
	if g.Stage != models.StageAwaitingBuzz {
		t.Errorf("stage = %q, want %q", g.Stage, models.StageAwaitingBuzz)
	}
	if len(env.store.indexWrites) != 1 || env.store.indexWrites[0] != 1 {
		t.Errorf("index writes = %v, want [1]", env.store.indexWrites)
	}
}

func TestLastQuestionFinishesWithLeaderboard(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	env.store.scores = []models.PlayerScore{
		{ChatUserID: 1, Total: 160},
		{ChatUserID: 2, Total: 40},
	}

	mustClaim(t, g, 1, "alice")
	if outcome, _ := g.SubmitAnswer(1, "alice", "Cat"); outcome != OutcomeCorrect {
		t.Fatalf("first answer outcome = %v", outcome)
	}
	mustClaim(t, g, 1, "alice")
	if outcome, _ := g.SubmitAnswer(1, "alice", "Dog"); outcome != OutcomeAdvanced {
		t.Fatalf("second answer outcome = %v", outcome)
	}

	mustClaim(t, g, 1, "alice")
	outcome, err := g.SubmitAnswer(1, "alice", "Mars")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeFinished {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeFinished)
	}
	if row := env.store.games[g.ID]; row.Stage != models.StageFinished {
		t.Errorf("persisted stage = %q, want %q", row.Stage, models.StageFinished)
	}
	if env.notifier.unpins != 1 {
		t.Errorf("unpins = %d, want 1", env.notifier.unpins)
	}

	board := env.notifier.lastText()
	if !strings.Contains(board, "alice") || !strings.Contains(board, "160") {
		t.Errorf("leaderboard missing winner: %q", board)
	}
	if strings.Index(board, "alice") > strings.Index(board, "bob") {
		t.Errorf("leaderboard not ordered by score: %q", board)
	}
}

func TestAnswerTimeoutReopensWithoutPenalty(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	mustClaim(t, g, 1, "alice")

	answerEpoch := env.lastSched().epoch
	outcome, err := g.AnswerTimeout(answerEpoch)
	if err != nil || outcome != OutcomeOK {
		t.Fatalf("AnswerTimeout() = %v, %v", outcome, err)
	}
	if g.Stage != models.StageAwaitingBuzz {
		t.Errorf("stage = %q, want %q", g.Stage, models.StageAwaitingBuzz)
	}
	if g.ResponderID != 0 {
		t.Errorf("responder not cleared: %d", g.ResponderID)
	}
	if len(env.store.facts) != 0 {
		t.Error("timeout must not record any answer fact")
	}
}

func TestStaleTimerIgnored(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	mustClaim(t, g, 1, "alice")
	answerEpoch := env.lastSched().epoch

	// Responder answers before the timer fires.
	if outcome, _ := g.SubmitAnswer(1, "alice", "Cat"); outcome != OutcomeCorrect {
		t.Fatal("setup answer failed")
	}

	outcome, err := g.AnswerTimeout(answerEpoch)
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("stale AnswerTimeout() = %v, %v, want ignored", outcome, err)
	}
	if g.Stage != models.StageAwaitingBuzz {
		t.Errorf("stale timer mutated stage to %q", g.Stage)
	}
}

func TestBlitzAcceptsAnyoneAndIgnoresChatter(t *testing.T) {
	g, _ := newTestInstance(t, models.VariantBlitz, quizQuestions())
	mustOutcome(t, g.Start, OutcomeOK)

	// Chatter that matches nothing is silently ignored.
	outcome, err := g.SubmitAnswer(7, "dave", "what is this")
	if err != nil || outcome != OutcomeIgnored {
		t.Fatalf("chatter = %v, %v, want ignored", outcome, err)
	}

	// First question has two weighted answers; blitz still consumes them.
	if outcome, _ = g.SubmitAnswer(7, "dave", "cat"); outcome != OutcomeCorrect {
		t.Fatalf("first blitz answer = %v", outcome)
	}
	if outcome, _ = g.SubmitAnswer(8, "erin", "Dog"); outcome != OutcomeAdvanced {
		t.Fatalf("second blitz answer = %v", outcome)
	}
	if g.Stage != models.StageAwaitingAnswer {
		t.Errorf("blitz stage = %q, want %q", g.Stage, models.StageAwaitingAnswer)
	}

	if outcome, _ = g.SubmitAnswer(7, "dave", "MARS"); outcome != OutcomeFinished {
		t.Fatalf("final blitz answer = %v", outcome)
	}
}

func TestStageWriteFailureLeavesStateUntouched(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	env.store.failStage = 2 // first attempt and its retry both fail

	outcome, err := g.ClaimBuzz(1, "alice", "cb")
	if err == nil {
		t.Fatal("expected an error from the failed transition")
	}
	if errors.Code(err) != errors.ErrCodeServiceDegraded {
		t.Errorf("error code = %q, want %q", errors.Code(err), errors.ErrCodeServiceDegraded)
	}
	if outcome != OutcomeIgnored {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeIgnored)
	}
	if g.Stage != models.StageAwaitingBuzz {
		t.Errorf("stage = %q, in-memory state must not move past a failed write", g.Stage)
	}
	if g.ResponderID != 0 {
		t.Errorf("responder set despite failed transition: %d", g.ResponderID)
	}
}

func TestStageWriteRetriesOnce(t *testing.T) {
	g, _ := startedQuiz(t, quizQuestions())
	g.deps.Store.(*fakeStore).failStage = 1 // first attempt fails, retry lands

	mustClaim(t, g, 1, "alice")
	if g.Stage != models.StageAwaitingAnswer {
		t.Errorf("stage = %q, want %q after the retried write", g.Stage, models.StageAwaitingAnswer)
	}
}

func TestTransitionFailureAfterFactKeepsAnswerConsumed(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	mustClaim(t, g, 1, "alice")
	answerEpoch := env.lastSched().epoch
	env.store.failStage = 2 // the reopen write and its retry both fail

	outcome, err := g.SubmitAnswer(1, "alice", "Cat")
	if err == nil {
		t.Fatal("expected an error from the failed transition")
	}
	if outcome != OutcomeIgnored {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeIgnored)
	}
	// The fact row is durable, so the answer must not come back.
	if _, ok := g.Remaining["cat"]; ok {
		t.Error("answer reopened despite a durable fact row")
	}
	if len(env.store.facts) != 1 {
		t.Fatalf("facts = %d, want 1", len(env.store.facts))
	}

	// Store recovers; the still-armed answer timer reopens the question.
	outcome, err = g.AnswerTimeout(answerEpoch)
	if err != nil || outcome != OutcomeOK {
		t.Fatalf("AnswerTimeout() = %v, %v", outcome, err)
	}

	// Nobody can collect the already-credited answer a second time.
	mustClaim(t, g, 2, "bob")
	outcome, err = g.SubmitAnswer(2, "bob", "Cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeWrongAnswer {
		t.Errorf("consumed answer resubmission = %v, want %v", outcome, OutcomeWrongAnswer)
	}
	if len(env.store.facts) != 1 {
		t.Errorf("facts = %d, the same answer was credited twice", len(env.store.facts))
	}
}

func TestExistingFactRowCountsAsCredited(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	// A fact row surviving a crash between the fact write and the stage
	// write of a previous process.
	env.store.facts[factKey{gameID: g.ID, playerID: 1, answerID: 11}] = struct{}{}

	mustClaim(t, g, 1, "alice")
	outcome, err := g.SubmitAnswer(1, "alice", "Cat")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeCorrect {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeCorrect)
	}
	if len(env.store.facts) != 1 {
		t.Errorf("facts = %d, want the original row only", len(env.store.facts))
	}
	if _, ok := g.Remaining["cat"]; ok {
		t.Error("credited answer still on the board")
	}
}

func TestFactWriteFailureKeepsAnswerOpen(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	mustClaim(t, g, 1, "alice")
	env.store.failFact = 2

	outcome, err := g.SubmitAnswer(1, "alice", "Cat")
	if err == nil {
		t.Fatal("expected an error from the failed fact write")
	}
	if outcome != OutcomeIgnored {
		t.Errorf("outcome = %v, want %v", outcome, OutcomeIgnored)
	}
	if _, ok := g.Remaining["cat"]; !ok {
		t.Error("answer removed from the board despite failed fact write")
	}
}

func TestPauseFreezesPlayAndResumeRearms(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	epochBefore := g.Epoch

	mustOutcome(t, g.Pause, OutcomeOK)
	if g.Epoch == epochBefore {
		t.Error("pause must invalidate outstanding timers")
	}

	outcome, err := g.ClaimBuzz(1, "alice", "cb")
	if err != nil || outcome != OutcomeIgnored {
		t.Errorf("buzz while paused = %v, %v, want ignored", outcome, err)
	}

	mustOutcome(t, g.Pause, OutcomeIgnored)

	schedBefore := len(env.sched)
	mustOutcome(t, g.Resume, OutcomeOK)
	// AWAITING_BUZZ needs no timer, only unfreezing.
	if len(env.sched) != schedBefore {
		t.Errorf("resume in awaiting_buzz scheduled a timer: %v", env.sched)
	}

	mustClaim(t, g, 1, "alice")
}

func TestResumeMidRegistrationRestartsWindow(t *testing.T) {
	g, env := newTestInstance(t, models.VariantQuiz, quizQuestions())
	mustOutcome(t, g.Start, OutcomeOK)
	mustOutcome(t, g.Pause, OutcomeOK)

	mustOutcome(t, g.Resume, OutcomeOK)

	last := env.lastSched()
	if last.kind != events.TimerRegistration {
		t.Fatalf("resumed timer kind = %q, want registration", last.kind)
	}
	if last.epoch != g.Epoch {
		t.Errorf("resumed timer epoch = %d, want current %d", last.epoch, g.Epoch)
	}
}

func TestCancelKeepsRecordedFacts(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	mustClaim(t, g, 1, "alice")
	if outcome, _ := g.SubmitAnswer(1, "alice", "Cat"); outcome != OutcomeCorrect {
		t.Fatal("setup answer failed")
	}

	outcome, err := g.Cancel()
	if err != nil || outcome != OutcomeCanceled {
		t.Fatalf("Cancel() = %v, %v", outcome, err)
	}
	if len(env.store.facts) != 1 {
		t.Errorf("facts = %d after cancel, want 1 kept", len(env.store.facts))
	}
	if env.notifier.unpins != 1 {
		t.Errorf("unpins = %d, want 1", env.notifier.unpins)
	}

	mustOutcome(t, g.Cancel, OutcomeIgnored)
}

func TestLeaderboardNamesUnknownPlayers(t *testing.T) {
	g, env := startedQuiz(t, quizQuestions())
	env.store.scores = []models.PlayerScore{{ChatUserID: 555, Total: 100}}

	if outcome, _ := g.Finish(); outcome != OutcomeFinished {
		t.Fatal("Finish() failed")
	}
	want := fmt.Sprintf("Player %d", 555)
	if !strings.Contains(env.notifier.lastText(), want) {
		t.Errorf("leaderboard %q missing fallback name %q", env.notifier.lastText(), want)
	}
}
