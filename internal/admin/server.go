// Package admin is the backend operators' HTTP surface: question-bank
// management and game oversight. It talks to the running orchestrator only
// through its public entry points, never to game state directly.
package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/saburov/quizbot/internal/config"
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/internal/orchestrator"
	"github.com/saburov/quizbot/internal/repositories"
	"github.com/saburov/quizbot/pkg/logger"
)

// ActiveGameSource lists the durable non-terminal game rows. Listing reads
// the store, never the live orchestrator registry; game instances are owned
// by their conversation workers.
type ActiveGameSource interface {
	LoadActiveGames() ([]models.Game, error)
}

type Server struct {
	cfg       *config.Config
	quizRepo  *repositories.QuizRepository
	gameRepo  ActiveGameSource
	adminRepo *repositories.AdminRepository
	orch      *orchestrator.Orchestrator
	srv       *http.Server
}

func NewServer(cfg *config.Config, quizRepo *repositories.QuizRepository, gameRepo ActiveGameSource, adminRepo *repositories.AdminRepository, orch *orchestrator.Orchestrator) *Server {
	s := &Server{
		cfg:       cfg,
		quizRepo:  quizRepo,
		gameRepo:  gameRepo,
		adminRepo: adminRepo,
		orch:      orch,
	}

	if cfg.AppEnv != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/admin/login", s.login)

	authorized := r.Group("/admin", AuthRequired(cfg.JWTSecret))
	{
		authorized.GET("/themes", s.listThemes)
		authorized.POST("/themes", s.createTheme)
		authorized.DELETE("/themes/:id", s.deleteTheme)

		authorized.GET("/themes/:id/questions", s.listQuestions)
		authorized.POST("/themes/:id/questions", s.createQuestion)
		authorized.DELETE("/questions/:id", s.deleteQuestion)

		authorized.GET("/games", s.listGames)
		authorized.POST("/games/:conversation_id/finish", s.finishGame)
	}

	s.srv = &http.Server{
		Addr:    ":" + cfg.AdminPort,
		Handler: r,
	}

	return s
}

// Run blocks serving the admin API until Shutdown.
func (s *Server) Run() error {
	logger.Info("Admin API listening", "port", s.cfg.AdminPort)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
