package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/internal/security"
	"github.com/saburov/quizbot/pkg/errors"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	admin, err := s.adminRepo.GetByEmail(req.Email)
	if err != nil || !security.VerifyPassword(req.Password, admin.PasswordHash) {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := security.GenerateJWT(admin.ID, admin.Email, s.cfg.JWTSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type themeRequest struct {
	Title       string `json:"title" binding:"required,max=100"`
	Description string `json:"description" binding:"max=1000"`
}

func (s *Server) createTheme(c *gin.Context) {
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	theme, err := s.quizRepo.CreateTheme(
		security.SanitizeQuestionText(req.Title),
		security.SanitizeQuestionText(req.Description),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, theme)
}

func (s *Server) listThemes(c *gin.Context) {
	themes, err := s.quizRepo.ListThemes()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"themes": themes})
}

func (s *Server) deleteTheme(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.quizRepo.DeleteTheme(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type answerRequest struct {
	Title string `json:"title" binding:"required,max=200"`
	Score int    `json:"score" binding:"required,min=1"`
}

type questionRequest struct {
	Title   string          `json:"title" binding:"required"`
	Answers []answerRequest `json:"answers" binding:"required,min=1,dive"`
}

func (s *Server) createQuestion(c *gin.Context) {
	themeID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req questionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if _, err := s.quizRepo.GetThemeByID(themeID); err != nil {
		respondError(c, err)
		return
	}

	answers := make([]models.Answer, 0, len(req.Answers))
	for _, a := range req.Answers {
		answers = append(answers, models.Answer{
			Title: security.SanitizeQuestionText(a.Title),
			Score: a.Score,
		})
	}

	question, err := s.quizRepo.CreateQuestion(themeID, security.SanitizeQuestionText(req.Title), answers)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

func (s *Server) listQuestions(c *gin.Context) {
	themeID, ok := pathID(c, "id")
	if !ok {
		return
	}

	questions, err := s.quizRepo.ListQuestions(themeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

func (s *Server) deleteQuestion(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := s.quizRepo.DeleteQuestion(id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type activeGame struct {
	GameID         uint   `json:"game_id"`
	ConversationID int64  `json:"conversation_id"`
	Variant        string `json:"variant"`
	Stage          string `json:"stage"`
	ThemeID        uint   `json:"theme_id"`
	QuestionIndex  int    `json:"question_index"`
}

func (s *Server) listGames(c *gin.Context) {
	games, err := s.gameRepo.LoadActiveGames()
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]activeGame, 0, len(games))
	for _, g := range games {
		out = append(out, activeGame{
			GameID:         g.ID,
			ConversationID: g.ConversationID,
			Variant:        g.Variant,
			Stage:          g.Stage,
			ThemeID:        g.ThemeID,
			QuestionIndex:  g.QuestionIndex,
		})
	}

	c.JSON(http.StatusOK, gin.H{"games": out})
}

func (s *Server) finishGame(c *gin.Context) {
	conversationID, err := strconv.ParseInt(c.Param("conversation_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	if !s.orch.FinishConversation(conversationID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active game for conversation"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "finish requested"})
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func respondError(c *gin.Context, err error) {
	switch errors.Code(err) {
	case errors.ErrCodeNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.ErrCodeAlreadyExists:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.ErrCodeValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
