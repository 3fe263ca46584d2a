package models

import "time"

// Department groups staff members; evaluations are sharded by the ratee's department.
type Department struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffMember is a rater or ratee known to the directory.
type StaffMember struct {
	ID           string     `gorm:"primaryKey;size:64" json:"id"`
	FullName     string     `gorm:"size:255" json:"full_name"`
	DepartmentID string     `gorm:"size:64;not null;index" json:"department_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Department   Department `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"department"`
}

// FormQuestion stores the questions of an evaluation form. Question ids are unique per form.
type FormQuestion struct {
	FormID    string    `gorm:"primaryKey;size:64" json:"form_id"`
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Position  int       `gorm:"not null;default:0" json:"position"`
	Content   string    `gorm:"type:text" json:"content"`
	MaxScore  int       `gorm:"not null;default:0" json:"max_score"`
	Required  bool      `gorm:"not null;default:false" json:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AsQuestion converts the stored row into the scoring input.
func (q FormQuestion) AsQuestion() Question {
	return Question{ID: q.ID, MaxScore: q.MaxScore, Required: q.Required}
}
