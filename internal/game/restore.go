package game

import (
	"fmt"

	"github.com/saburov/quizbot/internal/events"
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/pkg/errors"
	"github.com/saburov/quizbot/pkg/logger"
)

// Rehydrate rebuilds an in-memory instance from a persisted row at process
// bootstrap. Stages that cannot be resumed safely are rolled back to the
// nearest safe prior stage: a game caught mid-answer re-enters AWAITING_BUZZ
// because the responder's claim is not durable. Returns (nil, nil) when the
// row is closed out instead of resumed.
func Rehydrate(row models.Game, deps Deps) (*Instance, error) {
	limit := 0
	if row.Variant == models.VariantBlitz {
		limit = deps.Settings.BlitzQuestionCount
	}

	questions, err := deps.Catalog.GetQuestionsForTheme(row.ThemeID, 0, limit)
	if err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		logger.Warn("Recovered game lost its question set, canceling", "game_id", row.ID)
		if err := deps.Store.UpdateStage(row.ID, models.StageCanceled); err != nil {
			return nil, err
		}
		return nil, nil
	}

	g := &Instance{
		ID:              row.ID,
		ConversationID:  row.ConversationID,
		Variant:         row.Variant,
		Stage:           row.Stage,
		ThemeID:         row.ThemeID,
		Questions:       questions,
		QuestionIndex:   row.QuestionIndex,
		Roster:          make(map[int64]string),
		PinnedMessageID: row.PinnedMessageID,
		deps:            deps,
	}

	if g.QuestionIndex >= len(questions) {
		// The catalog shrank under the game; nothing left to play.
		if err := deps.Store.UpdateStage(row.ID, models.StageFinished); err != nil {
			return nil, err
		}
		return nil, nil
	}

	players, err := deps.Store.GetPlayers(row.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		g.Roster[p.ChatUserID] = p.Name
	}

	consumed, err := deps.Store.ConsumedAnswerIDs(row.ID)
	if err != nil {
		return nil, err
	}
	consumedSet := make(map[uint]struct{}, len(consumed))
	for _, id := range consumed {
		consumedSet[id] = struct{}{}
	}

	g.loadRemaining()
	for key, ref := range g.Remaining {
		if _, ok := consumedSet[ref.ID]; ok {
			delete(g.Remaining, key)
		}
	}

	if len(g.Remaining) == 0 {
		// Crashed between consuming the last answer and advancing.
		next := g.QuestionIndex + 1
		if next >= len(g.Questions) {
			if err := deps.Store.UpdateStage(row.ID, models.StageFinished); err != nil {
				return nil, err
			}
			return nil, nil
		}
		if err := g.persistQuestionIndex(next); err != nil {
			return nil, err
		}
		g.QuestionIndex = next
		g.loadRemaining()
	}

	switch row.Stage {
	case models.StageRegistration:
		// The elapsed portion of the window is lost; restart it whole.
		g.deps.Schedule(g.ConversationID, g.ID, events.TimerRegistration, g.Epoch, g.deps.Settings.RegistrationWindow)

	case models.StageAwaitingAnswer:
		if g.Variant == models.VariantQuiz {
			if err := g.transition(models.StageAwaitingBuzz); err != nil {
				return nil, err
			}
			g.announceQuestion()
		} else {
			g.deps.Notifier.SendText(g.ConversationID, fmt.Sprintf(MsgQuestion, g.currentQuestion().Title))
		}

	case models.StageAwaitingBuzz:
		g.announceQuestion()

	default:
		return nil, errors.New(errors.ErrCodeInvalidStage,
			fmt.Sprintf("cannot resume stage %q", row.Stage))
	}

	return g, nil
}
