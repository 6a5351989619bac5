package models

import "time"

// Theme is a named collection of questions.
type Theme struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"type:varchar(100);not null;uniqueIndex" json:"title"`
	Description string     `gorm:"type:varchar(1000)" json:"description,omitempty"`
	Questions   []Question `gorm:"foreignKey:ThemeID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"-"`
}

func (Theme) TableName() string {
	return "themes"
}

type Question struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ThemeID   uint      `gorm:"not null;index" json:"theme_id"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	Answers   []Answer  `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"answers"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
}

func (Question) TableName() string {
	return "questions"
}

// Answer is one weighted answer to a question. A quiz question carries
// several (scores summing to 100 at authoring time); a blitz question
// carries exactly one.
type Answer struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	QuestionID uint   `gorm:"not null;index" json:"-"`
	Title      string `gorm:"type:varchar(200);not null" json:"title"`
	Score      int    `gorm:"not null;default:1" json:"score"`
}

func (Answer) TableName() string {
	return "answers"
}
