// Package game implements the per-conversation trivia state machine: player
// registration, question cycling, buzz arbitration, answer evaluation and
// scoring. Instances are mutated only from their conversation's ordered
// event stream; the package itself holds no locks.
package game

import (
	"time"

	"github.com/saburov/quizbot/internal/events"
	"github.com/saburov/quizbot/internal/models"
)

// Catalog is read-only access to quiz content.
type Catalog interface {
	GetRandomQuestion() (*models.Question, error)
	GetQuestionsForTheme(themeID uint, offset, limit int) ([]models.Question, error)
}

// Store is the durable record of games. Every stage transition is written
// through it before the in-memory state is allowed to change.
type Store interface {
	CreateGame(conversationID int64, variant string, themeID uint, stage string) (*models.Game, error)
	UpdateStage(gameID uint, stage string) error
	UpdateQuestionIndex(gameID uint, index int) error
	SetPinnedMessage(gameID uint, messageID int) error
	AddPlayer(gameID uint, chatUserID int64, name string) (bool, error)
	RemovePlayer(gameID uint, chatUserID int64) (bool, error)
	GetPlayers(gameID uint) ([]models.Player, error)
	RecordAnswerFact(gameID uint, chatUserID int64, answerID uint) error
	ConsumedAnswerIDs(gameID uint) ([]uint, error)
	LoadActiveGames() ([]models.Game, error)
	LoadScore(gameID uint) ([]models.PlayerScore, error)
}

// Button is one interactive keyboard button.
type Button struct {
	Label   string
	Payload string
}

// Keyboard is a platform-neutral keyboard spec; the transport layer renders
// it for the chat platform.
type Keyboard struct {
	Rows [][]Button
}

// Notifier delivers outbound messages. All methods are fire-and-forget:
// failures are logged by the implementation and never block game progress.
type Notifier interface {
	SendText(conversationID int64, text string) int
	SendTextWithKeyboard(conversationID int64, text string, keyboard Keyboard) int
	SendCallbackAck(callbackID string, popupText string)
	Pin(conversationID int64, messageRef int)
	Unpin(conversationID int64)
}

// ScheduleFunc arms a timeout for a game. The implementation must deliver
// the firing as a TimerEvent on the game's conversation stream, carrying the
// given epoch.
type ScheduleFunc func(conversationID int64, gameID uint, kind events.TimerKind, epoch uint64, d time.Duration)

// Settings are the tunable game parameters.
type Settings struct {
	RegistrationWindow time.Duration
	AnswerWindow       time.Duration
	MinPlayers         int
	MaxPlayers         int
	BlitzQuestionCount int
}

// Deps bundles the collaborators an instance drives.
type Deps struct {
	Catalog  Catalog
	Store    Store
	Notifier Notifier
	Schedule ScheduleFunc
	Settings Settings
}
