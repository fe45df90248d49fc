package classroom

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// Capacity bounds enforced on Settings.MaxStudents.
const (
	DefaultMaxStudents = 50
	MinMaxStudents     = 1
	MaxMaxStudents     = 200
)

type (
	// Settings gates how students may join a Classroom.
	Settings struct {
		MaxStudents      int  `json:"max_students"`
		AllowStudentJoin bool `json:"allow_student_join"`
		RequireApproval  bool `json:"require_approval"` // stored for clients; joins are not gated on it yet
	}

	// Student is one student's membership in a Classroom, captured at join time.
	Student struct {
		StudentID   string    `json:"student_id"`
		StudentName string    `json:"student_name"`
		RollNumber  string    `json:"roll_number"`
		JoinedAt    time.Time `json:"joined_at"` // UTC
		IsActive    bool      `json:"is_active"`
	}

	Classroom struct {
		ID          string    `json:"id"`
		Code        string    `json:"code"`
		Name        string    `json:"name"`
		Description string    `json:"description"`
		Subject     string    `json:"subject"`
		GradeLevel  string    `json:"grade_level"`
		TeacherID   string    `json:"teacher_id"`
		TeacherName string    `json:"teacher_name"`
		Students    []Student `json:"students"`
		Settings    Settings  `json:"settings"`
		IsActive    bool      `json:"is_active"`
		CreatedAt   time.Time `json:"created_at"` // UTC
		UpdatedAt   time.Time `json:"updated_at"` // UTC
	}

	// PublicClassroom is the projection served on anonymous code lookups.
	// Anything not listed here is private to the owning teacher.
	PublicClassroom struct {
		ID           string `json:"id"`
		Code         string `json:"code"`
		Name         string `json:"name"`
		Subject      string `json:"subject"`
		GradeLevel   string `json:"grade_level"`
		TeacherName  string `json:"teacher_name"`
		StudentCount int    `json:"student_count"`
		MaxStudents  int    `json:"max_students"`
		AllowJoin    bool   `json:"allow_join"`
	}
)

func (c *Classroom) HasStudent(studentID string) bool {
	for _, s := range c.Students {
		if s.StudentID == studentID {
			return true
		}
	}
	return false
}

func (c *Classroom) IsFull() bool {
	return len(c.Students) >= c.Settings.MaxStudents
}

func (c *Classroom) Public() PublicClassroom {
	return PublicClassroom{
		ID:           c.ID,
		Code:         c.Code,
		Name:         c.Name,
		Subject:      c.Subject,
		GradeLevel:   c.GradeLevel,
		TeacherName:  c.TeacherName,
		StudentCount: len(c.Students),
		MaxStudents:  c.Settings.MaxStudents,
		AllowJoin:    c.IsActive && c.Settings.AllowStudentJoin,
	}
}

// NewClassroom contains information needed to create a new Classroom.
// Teacher identity comes from the caller's claims, never from the payload.
type NewClassroom struct {
	Name        string `json:"name" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Subject     string `json:"subject" validate:"omitempty,max=100"`
	GradeLevel  string `json:"grade_level" validate:"omitempty,max=20"`

	MaxStudents      *int  `json:"max_students" validate:"omitempty,min=1,max=200"`
	AllowStudentJoin *bool `json:"allow_student_join"`
	RequireApproval  *bool `json:"require_approval"`

	TeacherID    string `json:"-" validate:"required"`
	TeacherName  string `json:"-" validate:"required,min=2,max=100"`
	TeacherEmail string `json:"-"` // notification only; not persisted
}

func (nc *NewClassroom) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Subject = core.CleanString(nc.Subject)
	nc.GradeLevel = core.CleanString(nc.GradeLevel)
	nc.TeacherName = core.CleanString(nc.TeacherName)
	return validate.Struct(nc)
}

// UpdateClassroom defines what may be modified on an existing Classroom.
// ID, Code, TeacherID, Students and CreatedAt are deliberately absent: they
// cannot be changed through an update, only through their dedicated
// operations (code rotation, membership mutation).
type UpdateClassroom struct {
	Name        string  `json:"name" validate:"omitempty,min=3,max=100"`
	Description *string `json:"description" validate:"omitempty,max=500"`
	Subject     *string `json:"subject" validate:"omitempty,max=100"`
	GradeLevel  *string `json:"grade_level" validate:"omitempty,max=20"`

	MaxStudents      *int  `json:"max_students" validate:"omitempty,min=1,max=200"`
	AllowStudentJoin *bool `json:"allow_student_join"`
	RequireApproval  *bool `json:"require_approval"`
}

func (uc *UpdateClassroom) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	if uc.Description != nil {
		*uc.Description = core.CleanString(*uc.Description)
	}
	if uc.Subject != nil {
		*uc.Subject = core.CleanString(*uc.Subject)
	}
	if uc.GradeLevel != nil {
		*uc.GradeLevel = core.CleanString(*uc.GradeLevel)
	}
	return validate.Struct(uc)
}

// NewStudent contains information needed to add a student to a Classroom.
// Student identity comes from the caller's claims.
type NewStudent struct {
	RollNumber string `json:"roll_number" validate:"omitempty,max=20"`

	StudentID   string `json:"-" validate:"required"`
	StudentName string `json:"-" validate:"required,min=2,max=100"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.RollNumber = core.CleanString(ns.RollNumber)
	ns.StudentName = core.CleanString(ns.StudentName)
	return validate.Struct(ns)
}

// GetFilter selects a single Classroom by ID or by join code.
type GetFilter struct {
	ID   string
	Code string
}

// QueryFilter applies AND operation on available fields.
// Search does a case-insensitive match on Classroom.Name.
type QueryFilter struct {
	TeacherID string `query:"-"`
	Search    string `query:"search"`
	Subject   string `query:"subject"`
	IsActive  *bool  `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Subject = core.CleanString(qf.Subject)
}
