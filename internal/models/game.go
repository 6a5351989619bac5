package models

import "time"

// Game variant constants
const (
	VariantQuiz  = "quiz"
	VariantBlitz = "blitz"
)

// Game stage constants. Transitions follow the state machine in
// internal/game; a row is terminal once FINISHED or CANCELED.
const (
	StageAwaitingStart  = "awaiting_start"
	StageRegistration   = "registration"
	StageAwaitingBuzz   = "awaiting_buzz"
	StageAwaitingAnswer = "awaiting_answer"
	StageFinished       = "finished"
	StageCanceled       = "canceled"
)

// TerminalStage reports whether no further transitions are possible.
func TerminalStage(stage string) bool {
	return stage == StageFinished || stage == StageCanceled
}

// Game is the durable record of one game instance. One non-terminal row
// per conversation at most.
type Game struct {
	ID              uint      `gorm:"primaryKey"`
	ConversationID  int64     `gorm:"not null;index"`
	Variant         string    `gorm:"type:varchar(10);not null"`
	Stage           string    `gorm:"type:varchar(20);not null;index"`
	ThemeID         uint      `gorm:"not null"`
	QuestionIndex   int       `gorm:"not null;default:0"`
	PinnedMessageID int       `gorm:"default:0"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (Game) TableName() string {
	return "games"
}

// Player is a roster entry for a quiz-variant game.
type Player struct {
	ID         uint   `gorm:"primaryKey"`
	GameID     uint   `gorm:"not null;index;uniqueIndex:idx_game_chat_user"`
	ChatUserID int64  `gorm:"not null;uniqueIndex:idx_game_chat_user"`
	Name       string `gorm:"type:varchar(100)"`
}

func (Player) TableName() string {
	return "players"
}

// PlayerAnswer credits a player with one consumed answer. Append-only;
// final scores are sums over these rows.
type PlayerAnswer struct {
	ID         uint      `gorm:"primaryKey"`
	GameID     uint      `gorm:"not null;index;uniqueIndex:idx_game_player_answer"`
	ChatUserID int64     `gorm:"not null;uniqueIndex:idx_game_player_answer"`
	AnswerID   uint      `gorm:"not null;uniqueIndex:idx_game_player_answer"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (PlayerAnswer) TableName() string {
	return "player_answers"
}

// PlayerScore is a read-model row produced by the score query.
type PlayerScore struct {
	ChatUserID int64
	Total      int
}
