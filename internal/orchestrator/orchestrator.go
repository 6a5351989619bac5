// Package orchestrator owns the conversation → game registry. Every inbound
// event (message, callback, timer) is dispatched through it; it enforces the
// one-active-game-per-conversation invariant and rebuilds the registry from
// the store after a restart. Per-conversation FIFO is the caller's job (the
// transport hashes conversations onto ordered worker streams); the registry
// lock here only protects the map itself.
package orchestrator

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saburov/quizbot/internal/events"
	"github.com/saburov/quizbot/internal/game"
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/pkg/logger"
)

// Command vocabulary. Exact full-text matches, never prefixes — except the
// themed start, which carries the theme id in the token itself.
const (
	CmdStart       = "/start"
	CmdStartBlitz  = "/start_blitz"
	CmdPause       = "/pause"
	CmdResume      = "/resume"
	CmdFinish      = "/finish"
	CmdCancel      = "/cancel"
	cmdThemePrefix = "/start_theme_"
)

// Sink enqueues a synthetic event onto its conversation's ordered stream.
type Sink func(ev events.Event)

type Orchestrator struct {
	mu    sync.Mutex
	games map[int64]*game.Instance

	deps           game.Deps
	defaultThemeID uint

	sink Sink
}

func New(catalog game.Catalog, store game.Store, notifier game.Notifier, settings game.Settings, defaultThemeID uint) *Orchestrator {
	o := &Orchestrator{
		games:          make(map[int64]*game.Instance),
		defaultThemeID: defaultThemeID,
	}
	o.deps = game.Deps{
		Catalog:  catalog,
		Store:    store,
		Notifier: notifier,
		Schedule: o.scheduleTimer,
		Settings: settings,
	}
	return o
}

// SetSink wires the stream the timers feed back into. Must be set before
// any game can start.
func (o *Orchestrator) SetSink(sink Sink) {
	o.sink = sink
}

// Bootstrap reloads every non-terminal game row into the registry. Called
// once, before the event feed starts delivering. A row that fails to resume
// is logged and skipped; it must not block the others.
func (o *Orchestrator) Bootstrap() error {
	rows, err := o.deps.Store.LoadActiveGames()
	if err != nil {
		return err
	}

	for _, row := range rows {
		if _, taken := o.lookup(row.ConversationID); taken {
			logger.Warn("Duplicate active game for conversation, canceling the newer row",
				"conversation_id", row.ConversationID, "game_id", row.ID)
			if err := o.deps.Store.UpdateStage(row.ID, models.StageCanceled); err != nil {
				logger.Error("Failed to cancel duplicate game", "game_id", row.ID, "error", err)
			}
			continue
		}

		inst, err := game.Rehydrate(row, o.deps)
		if err != nil {
			logger.Error("Failed to rehydrate game", "game_id", row.ID,
				"conversation_id", row.ConversationID, "stage", row.Stage, "error", err)
			continue
		}
		if inst == nil {
			continue
		}

		o.put(inst)
		logger.Info("Recovered game", "game_id", inst.ID,
			"conversation_id", inst.ConversationID, "stage", inst.Stage)
	}

	return nil
}

// Dispatch applies one event. Returns the typed outcome so that transports
// and tests can observe what happened; errors never abort the stream.
func (o *Orchestrator) Dispatch(ev events.Event) (game.Outcome, error) {
	switch e := ev.(type) {
	case events.MessageEvent:
		return o.dispatchMessage(e)
	case events.ButtonEvent:
		return o.dispatchCallback(e)
	case events.TimerEvent:
		return o.dispatchTimer(e)
	default:
		logger.Warn("Unknown event type", "conversation_id", ev.Conversation())
		return game.OutcomeIgnored, nil
	}
}

func (o *Orchestrator) dispatchMessage(ev events.MessageEvent) (game.Outcome, error) {
	inst := o.active(ev.ConversationID)

	if inst == nil {
		variant, themeID, ok := o.parseStart(ev.Text)
		if !ok {
			// No game and no start command: plain chatter, ignore.
			return game.OutcomeIgnored, nil
		}
		return o.startGame(ev.ConversationID, variant, themeID)
	}

	switch {
	case ev.Text == CmdPause:
		return inst.Pause()
	case ev.Text == CmdResume:
		return inst.Resume()
	case ev.Text == CmdFinish:
		return inst.Finish()
	case ev.Text == CmdCancel:
		return inst.Cancel()
	}

	if _, _, isStart := o.parseStart(ev.Text); isStart {
		o.deps.Notifier.SendText(ev.ConversationID, game.MsgGameExists)
		return game.OutcomeIgnored, nil
	}

	return inst.SubmitAnswer(ev.SenderID, ev.SenderName, ev.Text)
}

func (o *Orchestrator) dispatchCallback(ev events.ButtonEvent) (game.Outcome, error) {
	inst := o.active(ev.ConversationID)
	if inst == nil {
		// A button press from a finished game's keyboard; expected noise.
		logger.Debug("Callback for conversation without active game",
			"conversation_id", ev.ConversationID, "payload", ev.Payload)
		o.deps.Notifier.SendCallbackAck(ev.CallbackID, "")
		return game.OutcomeIgnored, nil
	}

	switch ev.Payload {
	case events.PayloadRegister:
		return inst.Register(ev.SenderID, ev.SenderName, ev.CallbackID)
	case events.PayloadUnregister:
		return inst.Unregister(ev.SenderID, ev.CallbackID)
	case events.PayloadBuzz:
		return inst.ClaimBuzz(ev.SenderID, ev.SenderName, ev.CallbackID)
	default:
		logger.Warn("Unknown callback payload",
			"conversation_id", ev.ConversationID, "payload", ev.Payload)
		o.deps.Notifier.SendCallbackAck(ev.CallbackID, "")
		return game.OutcomeIgnored, nil
	}
}

func (o *Orchestrator) dispatchTimer(ev events.TimerEvent) (game.Outcome, error) {
	inst := o.active(ev.ConversationID)
	if inst == nil || inst.ID != ev.GameID {
		logger.Debug("Timer for gone game", "timer_id", ev.ID, "game_id", ev.GameID)
		return game.OutcomeIgnored, nil
	}

	switch ev.Kind {
	case events.TimerRegistration:
		return inst.RegistrationTimeout(ev.Epoch)
	case events.TimerAnswer:
		return inst.AnswerTimeout(ev.Epoch)
	default:
		return game.OutcomeIgnored, nil
	}
}

func (o *Orchestrator) startGame(conversationID int64, variant string, themeID uint) (game.Outcome, error) {
	inst := game.NewInstance(conversationID, variant, themeID, o.deps)
	o.put(inst)

	outcome, err := inst.Start()
	if inst.Terminal() || inst.ID == 0 {
		// Start never committed a playable game; free the slot.
		o.remove(conversationID)
	}
	if err != nil {
		logger.Error("Failed to start game", "conversation_id", conversationID,
			"variant", variant, "theme_id", themeID, "error", err)
	}
	return outcome, err
}

// parseStart recognizes the start commands and resolves variant and theme.
func (o *Orchestrator) parseStart(text string) (variant string, themeID uint, ok bool) {
	switch {
	case text == CmdStart:
		return models.VariantQuiz, o.defaultThemeID, true
	case text == CmdStartBlitz:
		return models.VariantBlitz, o.defaultThemeID, true
	case strings.HasPrefix(text, cmdThemePrefix):
		id, err := strconv.ParseUint(strings.TrimPrefix(text, cmdThemePrefix), 10, 32)
		if err != nil || id == 0 {
			return "", 0, false
		}
		return models.VariantQuiz, uint(id), true
	}
	return "", 0, false
}

// active returns the conversation's game, dropping it first if a previous
// dispatch left it terminal.
func (o *Orchestrator) active(conversationID int64) *game.Instance {
	inst, ok := o.lookup(conversationID)
	if !ok {
		return nil
	}
	if inst.Terminal() {
		o.remove(conversationID)
		return nil
	}
	return inst
}

func (o *Orchestrator) lookup(conversationID int64) (*game.Instance, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	inst, ok := o.games[conversationID]
	return inst, ok
}

func (o *Orchestrator) put(inst *game.Instance) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.games[inst.ConversationID] = inst
}

func (o *Orchestrator) remove(conversationID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.games, conversationID)
}

// FinishConversation force-finishes a conversation's game from the admin
// API. The finish is enqueued through the sink, onto the same stream a chat
// /finish would take, to preserve per-conversation ordering.
func (o *Orchestrator) FinishConversation(conversationID int64) bool {
	if _, ok := o.lookup(conversationID); !ok {
		return false
	}
	o.sink(events.MessageEvent{
		ConversationID: conversationID,
		Text:           CmdFinish,
	})
	return true
}

// scheduleTimer arms a timeout whose firing is delivered back through the
// conversation's ordered stream, never applied directly.
func (o *Orchestrator) scheduleTimer(conversationID int64, gameID uint, kind events.TimerKind, epoch uint64, d time.Duration) {
	ev := events.TimerEvent{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		GameID:         gameID,
		Kind:           kind,
		Epoch:          epoch,
	}

	time.AfterFunc(d, func() {
		if o.sink == nil {
			logger.Error("Timer fired with no sink configured", "timer_id", ev.ID)
			return
		}
		o.sink(ev)
	})
}
