package telegram

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/saburov/quizbot/internal/config"
	"github.com/saburov/quizbot/internal/events"
	"github.com/saburov/quizbot/internal/game"
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/internal/orchestrator"
	"github.com/saburov/quizbot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type nopCatalog struct{}

func (nopCatalog) GetRandomQuestion() (*models.Question, error) { return nil, nil }
func (nopCatalog) GetQuestionsForTheme(themeID uint, offset, limit int) ([]models.Question, error) {
	return nil, nil
}

type nopStore struct{}

func (nopStore) CreateGame(conversationID int64, variant string, themeID uint, stage string) (*models.Game, error) {
	return &models.Game{ConversationID: conversationID, Variant: variant, ThemeID: themeID, Stage: stage}, nil
}
func (nopStore) UpdateStage(gameID uint, stage string) error       { return nil }
func (nopStore) UpdateQuestionIndex(gameID uint, index int) error  { return nil }
func (nopStore) SetPinnedMessage(gameID uint, messageID int) error { return nil }
func (nopStore) AddPlayer(gameID uint, chatUserID int64, name string) (bool, error) {
	return true, nil
}
func (nopStore) RemovePlayer(gameID uint, chatUserID int64) (bool, error) { return false, nil }
func (nopStore) GetPlayers(gameID uint) ([]models.Player, error)          { return nil, nil }
func (nopStore) RecordAnswerFact(gameID uint, chatUserID int64, answerID uint) error {
	return nil
}
func (nopStore) ConsumedAnswerIDs(gameID uint) ([]uint, error) { return nil, nil }
func (nopStore) LoadActiveGames() ([]models.Game, error)       { return nil, nil }
func (nopStore) LoadScore(gameID uint) ([]models.PlayerScore, error) {
	return nil, nil
}

// ackCountingNotifier is safe for concurrent use; the workers call it from
// their own goroutines.
type ackCountingNotifier struct {
	acks atomic.Int64
}

func (n *ackCountingNotifier) SendText(conversationID int64, text string) int { return 0 }
func (n *ackCountingNotifier) SendTextWithKeyboard(conversationID int64, text string, keyboard game.Keyboard) int {
	return 0
}
func (n *ackCountingNotifier) SendCallbackAck(callbackID string, popupText string) {
	n.acks.Add(1)
}
func (n *ackCountingNotifier) Pin(conversationID int64, messageRef int) {}
func (n *ackCountingNotifier) Unpin(conversationID int64)               {}

// newTestBot wires a bot whose API client is never used: these tests drive
// Enqueue and stopWorkers directly, without the long-poll listener.
func newTestBot(t *testing.T) (*Bot, *ackCountingNotifier) {
	t.Helper()
	notifier := &ackCountingNotifier{}
	orch := orchestrator.New(nopCatalog{}, nopStore{}, notifier, game.Settings{}, 1)
	return NewBot(&tgbotapi.BotAPI{}, &config.Config{}, orch), notifier
}

func TestEnqueueAfterShutdownDropsInsteadOfPanicking(t *testing.T) {
	bot, _ := newTestBot(t)
	bot.stopWorkers()

	// A game timer may still fire after shutdown and push its event here.
	// The send must return promptly instead of blocking on a dead worker
	// or panicking on a closed channel.
	returned := make(chan struct{})
	go func() {
		bot.Enqueue(events.TimerEvent{ConversationID: 100, GameID: 1, Epoch: 1})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked after shutdown")
	}
}

func TestShutdownDrainsQueuedEvents(t *testing.T) {
	bot, notifier := newTestBot(t)

	const n = 40
	for i := 0; i < n; i++ {
		bot.Enqueue(events.ButtonEvent{
			ConversationID: int64(i),
			SenderID:       1,
			CallbackID:     "cb",
			Payload:        events.PayloadRegister,
		})
	}

	bot.stopWorkers()

	if got := notifier.acks.Load(); got != n {
		t.Errorf("acknowledged %d events, want %d", got, n)
	}
}
