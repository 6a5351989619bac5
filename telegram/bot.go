// Package telegram is the transport edge: it turns long-poll updates into
// typed events, fans them out to conversation-hashed workers so that each
// conversation is processed in arrival order, and renders outbound
// notifications.
package telegram

import (
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/saburov/quizbot/internal/config"
	"github.com/saburov/quizbot/internal/events"
	"github.com/saburov/quizbot/internal/orchestrator"
	"github.com/saburov/quizbot/pkg/logger"
)

const (
	workerCount   = 8
	workerBacklog = 100
)

type Bot struct {
	api    *tgbotapi.BotAPI
	config *config.Config
	orch   *orchestrator.Orchestrator

	// One channel per worker; a conversation always hashes to the same
	// worker, which gives per-conversation FIFO. Timer events enter through
	// Enqueue and share the stream with platform events.
	workerChans []chan events.Event
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewAPI authorizes against the bot API.
func NewAPI(cfg *config.Config) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	if cfg.AppEnv == "development" {
		api.Debug = true
	}

	logger.Info("Authorized on account", "username", api.Self.UserName)
	return api, nil
}

// NewBot wires the worker pool and registers itself as the orchestrator's
// timer sink. The long-poll listener is not started until Start, so the
// caller can Bootstrap the orchestrator first.
func NewBot(api *tgbotapi.BotAPI, cfg *config.Config, orch *orchestrator.Orchestrator) *Bot {
	bot := &Bot{
		api:         api,
		config:      cfg,
		orch:        orch,
		workerChans: make([]chan events.Event, workerCount),
		done:        make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		bot.workerChans[i] = make(chan events.Event, workerBacklog)
		bot.wg.Add(1)
		go bot.startWorker(bot.workerChans[i])
	}

	orch.SetSink(bot.Enqueue)

	return bot
}

// Start launches the long-poll update listener.
func (b *Bot) Start() {
	go b.startUpdateListener()
}

// Stop shuts the feed down and drains the workers.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
	b.stopWorkers()
	logger.Info("Bot stopped receiving updates")
}

// stopWorkers signals shutdown and waits for the workers to drain their
// backlogs. The worker channels are never closed: game timers fire from
// timer goroutines and may still call Enqueue after shutdown, and a send
// on a closed channel would panic. Enqueue drops those late events instead.
func (b *Bot) stopWorkers() {
	close(b.done)
	b.wg.Wait()
}

// Enqueue places an event on its conversation's ordered stream. After
// shutdown the event is dropped.
func (b *Bot) Enqueue(ev events.Event) {
	idx := ev.Conversation() % int64(len(b.workerChans))
	if idx < 0 {
		idx = -idx
	}
	select {
	case b.workerChans[idx] <- ev:
	case <-b.done:
		logger.Debug("Event dropped after shutdown",
			"conversation_id", ev.Conversation(), "event", fmt.Sprintf("%T", ev))
	}
}

func (b *Bot) startUpdateListener() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	logger.Info("Starting update listener...")
	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		ev, ok := b.toEvent(update)
		if !ok {
			continue
		}
		b.Enqueue(ev)
	}

	logger.Info("Update channel closed")
}

// toEvent maps a platform update onto one of the two inbound event shapes.
func (b *Bot) toEvent(update tgbotapi.Update) (events.Event, bool) {
	if update.Message != nil && update.Message.From != nil {
		return events.MessageEvent{
			ConversationID: update.Message.Chat.ID,
			SenderID:       update.Message.From.ID,
			SenderName:     senderName(update.Message.From),
			Text:           update.Message.Text,
			MessageRef:     update.Message.MessageID,
		}, true
	}

	if update.CallbackQuery != nil {
		query := update.CallbackQuery
		if query.Message == nil {
			// Inline-mode callbacks have no conversation to route to.
			return nil, false
		}
		return events.ButtonEvent{
			ConversationID: query.Message.Chat.ID,
			SenderID:       query.From.ID,
			SenderName:     senderName(query.From),
			CallbackID:     query.ID,
			Payload:        query.Data,
		}, true
	}

	return nil, false
}

func (b *Bot) startWorker(ch chan events.Event) {
	defer b.wg.Done()
	for {
		select {
		case ev := <-ch:
			b.handleEvent(ev)
		case <-b.done:
			// Finish what is already queued, then exit.
			for {
				select {
				case ev := <-ch:
					b.handleEvent(ev)
				default:
					return
				}
			}
		}
	}
}

// handleEvent applies one event. A fault in one event never stalls the
// stream: panics are recovered, errors are logged with full context.
func (b *Bot) handleEvent(ev events.Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in event handler",
				"conversation_id", ev.Conversation(), "panic", r)
		}
	}()

	outcome, err := b.orch.Dispatch(ev)
	if err != nil {
		logger.Error("Event dispatch failed",
			"conversation_id", ev.Conversation(),
			"outcome", outcome.String(),
			"event", fmt.Sprintf("%T", ev),
			"error", err)
		return
	}

	logger.Debug("Event dispatched",
		"conversation_id", ev.Conversation(), "outcome", outcome.String())
}

func senderName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	name := user.FirstName
	if user.LastName != "" {
		name += " " + user.LastName
	}
	return name
}
