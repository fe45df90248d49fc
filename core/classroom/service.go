package classroom

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("classroom not found")
	ErrStudentExists  = errors.New("student is already in this classroom")
	ErrClassroomFull  = errors.New("classroom is full")
	ErrJoinNotAllowed = errors.New("classroom is not accepting new students")
	ErrCodeExhausted  = errors.New("could not generate a unique classroom code")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateClassroom persists a new record and assigns its ID.
		CreateClassroom(ctx context.Context, room Classroom) (Classroom, error)
		// GetClassroom returns ErrNotFound when no Classroom matches the filter.
		// Inactive (soft-deleted) classrooms are returned as well; callers
		// must check IsActive when "joinable" is the intent.
		GetClassroom(ctx context.Context, filter GetFilter) (Classroom, error)
		// QueryClassrooms applies AND operation on available QueryFilter fields.
		QueryClassrooms(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Classroom, error)
		// QueryAllCodes returns the join codes of all classrooms, active and
		// inactive: soft-deleted classrooms keep their code, so it stays
		// unavailable for reassignment.
		QueryAllCodes(ctx context.Context) ([]string, error)
		UpdateClassroom(ctx context.Context, room Classroom) (Classroom, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewClassroom) (Classroom, error)
		GetByID(ctx context.Context, id string) (Classroom, error)
		GetByCode(ctx context.Context, code string) (Classroom, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Classroom, error)
		Update(ctx context.Context, id string, uc UpdateClassroom) (Classroom, error)
		Deactivate(ctx context.Context, id string) error
		AddStudent(ctx context.Context, id string, ns NewStudent) (Classroom, error)
		RemoveStudent(ctx context.Context, id, studentID string) (Classroom, error)
		RegenerateCode(ctx context.Context, id string) (Classroom, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService

		// codeMu serializes code assignment (create + regenerate) so two
		// concurrent callers cannot mint the same code off overlapping
		// snapshots of the existing-code set.
		codeMu sync.Mutex

		// all mutations of one classroom funnel through one mutex, keyed by
		// classroom ID; reads stay unsynchronized.
		mu        sync.Mutex
		roomLocks map[string]*sync.Mutex
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{
		repo:      repo,
		mailSvc:   mailSvc,
		roomLocks: make(map[string]*sync.Mutex),
	}
}

func (svc *service) lockRoom(id string) func() {
	svc.mu.Lock()
	l, ok := svc.roomLocks[id]
	if !ok {
		l = new(sync.Mutex)
		svc.roomLocks[id] = l
	}
	svc.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (svc *service) Create(ctx context.Context, nc NewClassroom) (Classroom, error) {
	// defend our own invariants even though handlers validate first
	if nc.Name == "" || nc.TeacherID == "" || nc.TeacherName == "" {
		return Classroom{}, core.NewValidationError(errors.New("name, teacher_id and teacher_name are required"))
	}

	svc.codeMu.Lock()
	defer svc.codeMu.Unlock()

	codes, err := svc.repo.QueryAllCodes(ctx)
	if err != nil {
		return Classroom{}, errors.Wrap(err, "querying existing codes")
	}
	code, err := generateUniqueCode(codes)
	if err != nil {
		return Classroom{}, err
	}

	now := nowFunc().UTC()
	room := Classroom{
		Code:        code,
		Name:        nc.Name,
		Description: nc.Description,
		Subject:     nc.Subject,
		GradeLevel:  nc.GradeLevel,
		TeacherID:   nc.TeacherID,
		TeacherName: nc.TeacherName,
		Students:    []Student{},
		Settings: Settings{
			MaxStudents:      DefaultMaxStudents,
			AllowStudentJoin: true,
		},
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if nc.MaxStudents != nil {
		room.Settings.MaxStudents = *nc.MaxStudents
	}
	if nc.AllowStudentJoin != nil {
		room.Settings.AllowStudentJoin = *nc.AllowStudentJoin
	}
	if nc.RequireApproval != nil {
		room.Settings.RequireApproval = *nc.RequireApproval
	}

	room, err = svc.repo.CreateClassroom(ctx, room)
	if err != nil {
		return Classroom{}, errors.Wrap(err, "creating classroom")
	}
	if nc.TeacherEmail != "" {
		svc.sendClassroomCreatedMail(room, nc.TeacherEmail)
	}
	return room, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Classroom, error) {
	return svc.repo.GetClassroom(ctx, GetFilter{ID: id})
}

func (svc *service) GetByCode(ctx context.Context, code string) (Classroom, error) {
	return svc.repo.GetClassroom(ctx, GetFilter{Code: core.CleanStringUpper(code)})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Classroom, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	if filter.IsActive == nil {
		// listings exclude soft-deleted classrooms by default
		active := true
		filter.IsActive = &active
	}
	return svc.repo.QueryClassrooms(ctx, filter, ordering)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateClassroom) (Classroom, error) {
	unlock := svc.lockRoom(id)
	defer unlock()

	room, err := svc.repo.GetClassroom(ctx, GetFilter{ID: id})
	if err != nil {
		return Classroom{}, err
	}

	if uc.Name != "" {
		room.Name = uc.Name
	}
	if uc.Description != nil {
		room.Description = *uc.Description
	}
	if uc.Subject != nil {
		room.Subject = *uc.Subject
	}
	if uc.GradeLevel != nil {
		room.GradeLevel = *uc.GradeLevel
	}
	if uc.MaxStudents != nil {
		room.Settings.MaxStudents = *uc.MaxStudents
	}
	if uc.AllowStudentJoin != nil {
		room.Settings.AllowStudentJoin = *uc.AllowStudentJoin
	}
	if uc.RequireApproval != nil {
		room.Settings.RequireApproval = *uc.RequireApproval
	}
	room.UpdatedAt = nowFunc().UTC()

	return svc.repo.UpdateClassroom(ctx, room)
}

// Deactivate soft-deletes a Classroom: it disappears from listings but the
// record, and its join code, persist.
func (svc *service) Deactivate(ctx context.Context, id string) error {
	unlock := svc.lockRoom(id)
	defer unlock()

	room, err := svc.repo.GetClassroom(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	room.IsActive = false
	room.UpdatedAt = nowFunc().UTC()

	_, err = svc.repo.UpdateClassroom(ctx, room)
	return err
}

func (svc *service) AddStudent(ctx context.Context, id string, ns NewStudent) (Classroom, error) {
	unlock := svc.lockRoom(id)
	defer unlock()

	room, err := svc.repo.GetClassroom(ctx, GetFilter{ID: id})
	if err != nil {
		return Classroom{}, err
	}

	// check order matters: a full classroom the student already joined must
	// report ErrStudentExists, not ErrClassroomFull.
	if room.HasStudent(ns.StudentID) {
		return Classroom{}, ErrStudentExists
	}
	if !room.IsActive || !room.Settings.AllowStudentJoin {
		return Classroom{}, ErrJoinNotAllowed
	}
	if room.IsFull() {
		return Classroom{}, ErrClassroomFull
	}

	now := nowFunc().UTC()
	room.Students = append(room.Students, Student{
		StudentID:   ns.StudentID,
		StudentName: ns.StudentName,
		RollNumber:  ns.RollNumber,
		JoinedAt:    now,
		IsActive:    true,
	})
	room.UpdatedAt = now

	return svc.repo.UpdateClassroom(ctx, room)
}

// RemoveStudent hard-removes the membership. Removing a student that is not
// in the classroom is not an error; the classroom is returned unchanged.
func (svc *service) RemoveStudent(ctx context.Context, id, studentID string) (Classroom, error) {
	unlock := svc.lockRoom(id)
	defer unlock()

	room, err := svc.repo.GetClassroom(ctx, GetFilter{ID: id})
	if err != nil {
		return Classroom{}, err
	}

	idx := -1
	for i, s := range room.Students {
		if s.StudentID == studentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return room, nil
	}

	room.Students = append(room.Students[:idx], room.Students[idx+1:]...)
	room.UpdatedAt = nowFunc().UTC()

	return svc.repo.UpdateClassroom(ctx, room)
}

// RegenerateCode rotates the join code. The classroom's current code is kept
// in the exclusion set, so the new code can never equal the prior one.
func (svc *service) RegenerateCode(ctx context.Context, id string) (Classroom, error) {
	svc.codeMu.Lock()
	defer svc.codeMu.Unlock()
	unlock := svc.lockRoom(id)
	defer unlock()

	room, err := svc.repo.GetClassroom(ctx, GetFilter{ID: id})
	if err != nil {
		return Classroom{}, err
	}

	codes, err := svc.repo.QueryAllCodes(ctx)
	if err != nil {
		return Classroom{}, errors.Wrap(err, "querying existing codes")
	}
	code, err := generateUniqueCode(codes)
	if err != nil {
		return Classroom{}, err
	}

	room.Code = code
	room.UpdatedAt = nowFunc().UTC()

	return svc.repo.UpdateClassroom(ctx, room)
}

func (svc *service) sendClassroomCreatedMail(room Classroom, email string) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: room.TeacherName, Address: email}},
		Subject:      fmt.Sprintf("Your classroom %q is ready", room.Name),
		TemplateName: "classroom_created",
		TemplateData: room,
	})
}
