package repositories

import (
	stderrors "errors"

	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/pkg/errors"
	"gorm.io/gorm"
)

// GameRepository is the durable side of game sessions: one row per game,
// roster rows for quiz games, append-only answer facts for scoring.
type GameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{db: db}
}

// CreateGame inserts the row for a freshly started game and assigns its id.
func (r *GameRepository) CreateGame(conversationID int64, variant string, themeID uint, stage string) (*models.Game, error) {
	game := &models.Game{
		ConversationID: conversationID,
		Variant:        variant,
		Stage:          stage,
		ThemeID:        themeID,
	}

	if err := r.db.Create(game).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create game")
	}

	return game, nil
}

// UpdateStage persists a stage transition.
func (r *GameRepository) UpdateStage(gameID uint, stage string) error {
	result := r.db.Model(&models.Game{}).
		Where("id = ?", gameID).
		Update("stage", stage)

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update stage")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "game not found")
	}

	return nil
}

// UpdateQuestionIndex persists question progress.
func (r *GameRepository) UpdateQuestionIndex(gameID uint, index int) error {
	result := r.db.Model(&models.Game{}).
		Where("id = ?", gameID).
		Update("question_index", index)

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to update question index")
	}

	return nil
}

// SetPinnedMessage remembers the pinned announcement message for cleanup.
func (r *GameRepository) SetPinnedMessage(gameID uint, messageID int) error {
	result := r.db.Model(&models.Game{}).
		Where("id = ?", gameID).
		Update("pinned_message_id", messageID)

	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to set pinned message")
	}

	return nil
}

// AddPlayer registers a player for a game. Returns false without error when
// the player is already on the roster.
func (r *GameRepository) AddPlayer(gameID uint, chatUserID int64, name string) (bool, error) {
	var existing models.Player
	err := r.db.Where("game_id = ? AND chat_user_id = ?", gameID, chatUserID).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to check roster")
	}

	player := &models.Player{GameID: gameID, ChatUserID: chatUserID, Name: name}
	if err := r.db.Create(player).Error; err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternalError, "failed to add player")
	}

	return true, nil
}

// RemovePlayer drops a player from the roster. Returns false when the player
// was not registered.
func (r *GameRepository) RemovePlayer(gameID uint, chatUserID int64) (bool, error) {
	result := r.db.Where("game_id = ? AND chat_user_id = ?", gameID, chatUserID).
		Delete(&models.Player{})

	if result.Error != nil {
		return false, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to remove player")
	}

	return result.RowsAffected > 0, nil
}

// GetPlayers retrieves the roster of a game.
func (r *GameRepository) GetPlayers(gameID uint) ([]models.Player, error) {
	var players []models.Player
	if err := r.db.Where("game_id = ?", gameID).Order("id ASC").Find(&players).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get players")
	}
	return players, nil
}

// RecordAnswerFact appends one answer credit. A duplicate credit violates
// the unique index and is reported as ALREADY_EXISTS; any other failure is
// INTERNAL_ERROR so callers can tell a replay from an outage.
func (r *GameRepository) RecordAnswerFact(gameID uint, chatUserID int64, answerID uint) error {
	fact := &models.PlayerAnswer{
		GameID:     gameID,
		ChatUserID: chatUserID,
		AnswerID:   answerID,
	}

	if err := r.db.Create(fact).Error; err != nil {
		if stderrors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.Wrap(err, errors.ErrCodeAlreadyExists, "answer already recorded")
		}
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to record answer fact")
	}

	return nil
}

// ConsumedAnswerIDs lists answers already credited in a game, for rebuilding
// the remaining-answers set after a restart.
func (r *GameRepository) ConsumedAnswerIDs(gameID uint) ([]uint, error) {
	var ids []uint
	err := r.db.Model(&models.PlayerAnswer{}).
		Where("game_id = ?", gameID).
		Pluck("answer_id", &ids).Error

	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list consumed answers")
	}

	return ids, nil
}

// LoadActiveGames retrieves every non-terminal game row for bootstrap.
func (r *GameRepository) LoadActiveGames() ([]models.Game, error) {
	var games []models.Game
	err := r.db.Where("stage NOT IN ?", []string{models.StageFinished, models.StageCanceled}).
		Find(&games).Error

	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load active games")
	}

	return games, nil
}

// GetActiveGameByConversation retrieves the one non-terminal game of a
// conversation, or nil.
func (r *GameRepository) GetActiveGameByConversation(conversationID int64) (*models.Game, error) {
	var game models.Game
	result := r.db.Where("conversation_id = ? AND stage NOT IN ?",
		conversationID, []string{models.StageFinished, models.StageCanceled}).
		First(&game)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get active game")
	}

	return &game, nil
}

// LoadScore computes per-player totals for a game, highest first.
func (r *GameRepository) LoadScore(gameID uint) ([]models.PlayerScore, error) {
	var scores []models.PlayerScore
	err := r.db.Model(&models.PlayerAnswer{}).
		Select("player_answers.chat_user_id AS chat_user_id, SUM(answers.score) AS total").
		Joins("JOIN answers ON answers.id = player_answers.answer_id").
		Where("player_answers.game_id = ?", gameID).
		Group("player_answers.chat_user_id").
		Order("total DESC").
		Scan(&scores).Error

	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to load score")
	}

	return scores, nil
}
