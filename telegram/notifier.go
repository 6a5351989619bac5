package telegram

import (
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/saburov/quizbot/internal/game"
	"github.com/saburov/quizbot/pkg/logger"
)

// Notifier delivers outbound chat messages. All operations are best-effort:
// a failed delivery is logged and the game moves on.
type Notifier struct {
	api *tgbotapi.BotAPI
}

func NewNotifier(api *tgbotapi.BotAPI) *Notifier {
	return &Notifier{api: api}
}

func (n *Notifier) SendText(conversationID int64, text string) int {
	msg := tgbotapi.NewMessage(conversationID, text)
	return n.send(msg, conversationID)
}

func (n *Notifier) SendTextWithKeyboard(conversationID int64, text string, keyboard game.Keyboard) int {
	msg := tgbotapi.NewMessage(conversationID, text)
	msg.ReplyMarkup = RenderKeyboard(keyboard)
	return n.send(msg, conversationID)
}

func (n *Notifier) SendCallbackAck(callbackID string, popupText string) {
	callback := tgbotapi.NewCallback(callbackID, popupText)
	if _, err := n.api.Request(callback); err != nil {
		logger.Error("Failed to answer callback query", "callback_id", callbackID, "error", err)
	}
}

func (n *Notifier) Pin(conversationID int64, messageRef int) {
	pin := tgbotapi.PinChatMessageConfig{
		ChatID:              conversationID,
		MessageID:           messageRef,
		DisableNotification: true,
	}
	if _, err := n.api.Request(pin); err != nil {
		logger.Error("Failed to pin message", "conversation_id", conversationID, "error", err)
	}
}

func (n *Notifier) Unpin(conversationID int64) {
	unpin := tgbotapi.UnpinChatMessageConfig{ChatID: conversationID}
	if _, err := n.api.Request(unpin); err != nil {
		logger.Error("Failed to unpin message", "conversation_id", conversationID, "error", err)
	}
}

// send delivers with a short retry on transient network failures; the
// message id of the sent message is returned, 0 on failure.
func (n *Notifier) send(msg tgbotapi.MessageConfig, conversationID int64) int {
	maxRetries := 3
	for i := 0; i < maxRetries; i++ {
		sentMsg, err := n.api.Send(msg)
		if err != nil {
			logger.Error("Failed to send message", "error", err, "conversation_id", conversationID, "attempt", i+1)

			if strings.Contains(err.Error(), "connection reset") ||
				strings.Contains(err.Error(), "timeout") ||
				strings.Contains(err.Error(), "network is unreachable") {
				time.Sleep(time.Duration(i+1) * time.Second)
				continue
			}
			return 0
		}
		return sentMsg.MessageID
	}
	return 0
}
