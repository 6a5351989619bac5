package repositories

import (
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/pkg/errors"
	"gorm.io/gorm"
)

// QuizRepository is the question/theme catalog. Read-only from the game
// core's perspective; the admin API writes through it.
type QuizRepository struct {
	db *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// GetRandomQuestion retrieves one random question with its answers.
func (r *QuizRepository) GetRandomQuestion() (*models.Question, error) {
	var question models.Question
	result := r.db.Preload("Answers").Order("RANDOM()").First(&question)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "no questions found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get question")
	}

	return &question, nil
}

// GetQuestionsForTheme retrieves questions of a theme in stable order.
// A zero limit means no limit.
func (r *QuizRepository) GetQuestionsForTheme(themeID uint, offset, limit int) ([]models.Question, error) {
	var questions []models.Question
	query := r.db.Preload("Answers").
		Where("theme_id = ?", themeID).
		Order("id ASC").
		Offset(offset)

	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&questions).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to get theme questions")
	}

	return questions, nil
}

// GetQuestionByID retrieves a question with its answers.
func (r *QuizRepository) GetQuestionByID(id uint) (*models.Question, error) {
	var question models.Question
	result := r.db.Preload("Answers").First(&question, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "question not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get question")
	}

	return &question, nil
}

// CreateTheme creates a theme; duplicate titles are rejected.
func (r *QuizRepository) CreateTheme(title, description string) (*models.Theme, error) {
	var existing models.Theme
	if err := r.db.Where("title = ?", title).First(&existing).Error; err == nil {
		return nil, errors.New(errors.ErrCodeAlreadyExists, "theme already exists")
	}

	theme := &models.Theme{Title: title, Description: description}
	if err := r.db.Create(theme).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create theme")
	}

	return theme, nil
}

// GetThemeByID retrieves a theme.
func (r *QuizRepository) GetThemeByID(id uint) (*models.Theme, error) {
	var theme models.Theme
	result := r.db.First(&theme, id)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "theme not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get theme")
	}

	return &theme, nil
}

// ListThemes retrieves all themes.
func (r *QuizRepository) ListThemes() ([]models.Theme, error) {
	var themes []models.Theme
	if err := r.db.Order("id ASC").Find(&themes).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to list themes")
	}
	return themes, nil
}

// DeleteTheme deletes a theme and cascades to its questions.
func (r *QuizRepository) DeleteTheme(id uint) error {
	result := r.db.Delete(&models.Theme{}, id)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to delete theme")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "theme not found")
	}
	return nil
}

// CreateQuestion creates a question together with its answers.
func (r *QuizRepository) CreateQuestion(themeID uint, title string, answers []models.Answer) (*models.Question, error) {
	if len(answers) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "question needs at least one answer")
	}

	question := &models.Question{
		ThemeID: themeID,
		Title:   title,
		Answers: answers,
	}

	if err := r.db.Create(question).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternalError, "failed to create question")
	}

	return question, nil
}

// ListQuestions retrieves all questions of a theme with answers.
func (r *QuizRepository) ListQuestions(themeID uint) ([]models.Question, error) {
	return r.GetQuestionsForTheme(themeID, 0, 0)
}

// DeleteQuestion deletes a question and its answers.
func (r *QuizRepository) DeleteQuestion(id uint) error {
	result := r.db.Delete(&models.Question{}, id)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to delete question")
	}
	if result.RowsAffected == 0 {
		return errors.New(errors.ErrCodeNotFound, "question not found")
	}
	return nil
}

// CountQuestions counts questions across all themes.
func (r *QuizRepository) CountQuestions() (int64, error) {
	var count int64
	if err := r.db.Model(&models.Question{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeInternalError, "failed to count questions")
	}
	return count, nil
}
