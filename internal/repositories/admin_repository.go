package repositories

import (
	"github.com/saburov/quizbot/internal/models"
	"github.com/saburov/quizbot/pkg/errors"
	"gorm.io/gorm"
)

type AdminRepository struct {
	db *gorm.DB
}

func NewAdminRepository(db *gorm.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// GetByEmail retrieves an admin account.
func (r *AdminRepository) GetByEmail(email string) (*models.Admin, error) {
	var admin models.Admin
	result := r.db.Where("email = ?", email).First(&admin)

	if result.Error == gorm.ErrRecordNotFound {
		return nil, errors.New(errors.ErrCodeNotFound, "admin not found")
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, errors.ErrCodeInternalError, "failed to get admin")
	}

	return &admin, nil
}

// EnsureAdmin creates the bootstrap admin account if it does not exist.
func (r *AdminRepository) EnsureAdmin(email, passwordHash string) error {
	var existing models.Admin
	err := r.db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to check admin")
	}

	admin := &models.Admin{Email: email, PasswordHash: passwordHash}
	if err := r.db.Create(admin).Error; err != nil {
		return errors.Wrap(err, errors.ErrCodeInternalError, "failed to create admin")
	}

	return nil
}
