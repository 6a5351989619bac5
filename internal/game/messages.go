package game

// User-visible chat texts. Internal failures always map to MsgTryAgain,
// never a raw error.
const (
	MsgQuizStarted      = "🎮 Quiz started! Press the button to join. Registration closes in %d seconds."
	MsgBlitzStarted     = "⚡ Blitz started! First correct answer scores. Question 1:\n%s"
	MsgNoQuestions      = "😔 This theme has no questions yet, game canceled."
	MsgGameExists       = "Game already running in this chat."
	MsgRegistered       = "You're in!"
	MsgAlreadyIn        = "You are already registered."
	MsgUnregistered     = "Registration withdrawn."
	MsgNotOnRoster      = "You were not registered."
	MsgRosterFull       = "Roster is full, starting!"
	MsgNotEnoughPlayers = "Not enough players registered, game canceled."
	MsgQuestion         = "❓ %s"
	MsgBuzzAccepted     = "Answering!"
	MsgAwaitingAnswer   = "🎤 %s, your answer?"
	MsgTooLate          = "Too late!"
	MsgNotRegistered    = "You are not playing this round."
	MsgCorrectAnswer    = "✅ %s is right: %s (+%d). %d answer(s) left."
	MsgCorrectBlitz     = "✅ %s scores! Next question:\n%s"
	MsgWrongAnswer      = "❌ Not on the board. The question is open again!"
	MsgAnswerTimeout    = "⌛ Time's up, the question is open again!"
	MsgPaused           = "⏸ Game paused."
	MsgResumed          = "▶️ Game resumed."
	MsgCanceled         = "🚫 Game canceled."
	MsgFinishedHeader   = "🏁 Game over! Results:"
	MsgNoScores         = "🏁 Game over! Nobody scored."
	MsgTryAgain         = "Something went wrong, please try again."

	BtnJoin       = "I'm in"
	BtnLeave      = "Leave"
	BtnKnowAnswer = "I know it!"
)
