package models

import "time"

// Exam groups the questions graded together for a cohort of students.
type Exam struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description"`
	Duration    int        `gorm:"not null;default:60" json:"duration_minutes"`
	CreatedBy   uint       `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Questions   []Question `json:"questions"`
}

// Question holds one free-text prompt and its grading reference.
type Question struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ExamID          uint      `gorm:"not null;index" json:"exam_id"`
	Text            string    `gorm:"type:text;not null" json:"text"`
	ReferenceAnswer string    `gorm:"type:text;not null" json:"reference_answer"`
	MaxMarks        float64   `gorm:"not null" json:"max_marks"`
	QuestionOrder   int       `gorm:"default:0" json:"question_order"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	Exam            Exam      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
