package classroom

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
)

// fakeRepository is a minimal in-memory Repository for exercising the service.
type fakeRepository struct {
	mu    sync.RWMutex
	table map[string]*Classroom
}

var _ Repository = (*fakeRepository)(nil) // interface compliance check

func newFakeRepository() *fakeRepository {
	return &fakeRepository{table: make(map[string]*Classroom)}
}

func (repo *fakeRepository) CreateClassroom(_ context.Context, room Classroom) (Classroom, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	room.ID = uuid.New().String()
	repo.table[room.ID] = &room
	return room, nil
}

func (repo *fakeRepository) GetClassroom(_ context.Context, filter GetFilter) (Classroom, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	if filter.ID != "" {
		if room, ok := repo.table[filter.ID]; ok {
			return *room, nil
		}
		return Classroom{}, ErrNotFound
	}
	for _, room := range repo.table {
		if room.Code == filter.Code {
			return *room, nil
		}
	}
	return Classroom{}, ErrNotFound
}

func (repo *fakeRepository) QueryClassrooms(_ context.Context, filter *QueryFilter, _ []core.DBOrdering) ([]Classroom, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	rooms := make([]Classroom, 0, len(repo.table))
	for _, room := range repo.table {
		if filter != nil {
			if filter.TeacherID != "" && room.TeacherID != filter.TeacherID {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(room.Name), strings.ToLower(filter.Search)) {
				continue
			}
			if filter.Subject != "" && room.Subject != filter.Subject {
				continue
			}
			if filter.IsActive != nil && room.IsActive != *filter.IsActive {
				continue
			}
		}
		rooms = append(rooms, *room)
	}
	return rooms, nil
}

func (repo *fakeRepository) QueryAllCodes(_ context.Context) ([]string, error) {
	repo.mu.RLock()
	defer repo.mu.RUnlock()
	codes := make([]string, 0, len(repo.table))
	for _, room := range repo.table {
		codes = append(codes, room.Code)
	}
	return codes, nil
}

func (repo *fakeRepository) UpdateClassroom(_ context.Context, room Classroom) (Classroom, error) {
	repo.mu.Lock()
	defer repo.mu.Unlock()
	if _, ok := repo.table[room.ID]; !ok {
		return Classroom{}, ErrNotFound
	}
	repo.table[room.ID] = &room
	return room, nil
}

// fakeMailService captures messages instead of sending them.
type fakeMailService struct {
	sent []*core.EmailMessage
}

func (svc *fakeMailService) SendMessages(messages ...*core.EmailMessage) {
	svc.sent = append(svc.sent, messages...)
}

func newTestService() (Service, *fakeRepository, *fakeMailService) {
	repo := newFakeRepository()
	mailSvc := new(fakeMailService)
	return NewService(repo, mailSvc), repo, mailSvc
}

func intPtr(i int) *int    { return &i }
func boolPtr(b bool) *bool { return &b }

func createRoom(t *testing.T, svc Service, nc NewClassroom) Classroom {
	t.Helper()
	if nc.TeacherID == "" {
		nc.TeacherID = "t1"
	}
	if nc.TeacherName == "" {
		nc.TeacherName = "Mr. Kim"
	}
	room, err := svc.Create(context.Background(), nc)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return room
}

func TestServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		svc, _, mailSvc := newTestService()
		room := createRoom(t, svc, NewClassroom{Name: "Math 101"})

		if room.ID == "" {
			t.Error("Create() did not assign an ID")
		}
		if !IsValidCode(room.Code) {
			t.Errorf("Create() code = %q, want a well-formed join code", room.Code)
		}
		if room.Settings.MaxStudents != DefaultMaxStudents {
			t.Errorf("Create() MaxStudents = %d, want %d", room.Settings.MaxStudents, DefaultMaxStudents)
		}
		if !room.Settings.AllowStudentJoin {
			t.Error("Create() AllowStudentJoin = false, want true")
		}
		if room.Settings.RequireApproval {
			t.Error("Create() RequireApproval = true, want false")
		}
		if !room.IsActive {
			t.Error("Create() IsActive = false, want true")
		}
		if len(room.Students) != 0 {
			t.Errorf("Create() Students = %v, want empty", room.Students)
		}
		if room.CreatedAt.IsZero() || !room.CreatedAt.Equal(room.UpdatedAt) {
			t.Errorf("Create() CreatedAt = %v, UpdatedAt = %v", room.CreatedAt, room.UpdatedAt)
		}
		if len(mailSvc.sent) != 0 {
			t.Errorf("Create() sent %d mails without a teacher email", len(mailSvc.sent))
		}
	})

	t.Run("overrides", func(t *testing.T) {
		svc, _, _ := newTestService()
		room := createRoom(t, svc, NewClassroom{
			Name:             "Chemistry",
			MaxStudents:      intPtr(30),
			AllowStudentJoin: boolPtr(false),
			RequireApproval:  boolPtr(true),
		})
		if room.Settings.MaxStudents != 30 {
			t.Errorf("MaxStudents = %d, want 30", room.Settings.MaxStudents)
		}
		if room.Settings.AllowStudentJoin {
			t.Error("AllowStudentJoin = true, want false")
		}
		if !room.Settings.RequireApproval {
			t.Error("RequireApproval = false, want true")
		}
	})

	t.Run("missing required fields", func(t *testing.T) {
		svc, _, _ := newTestService()
		_, err := svc.Create(ctx, NewClassroom{Name: "Math 101"})
		if _, ok := err.(*core.ValidationError); !ok {
			t.Errorf("Create() error = %v, want a validation error", err)
		}
	})

	t.Run("codes are unique", func(t *testing.T) {
		svc, _, _ := newTestService()
		codes := make(map[string]struct{})
		for i := 0; i < 20; i++ {
			room := createRoom(t, svc, NewClassroom{Name: "Math 101"})
			if _, ok := codes[room.Code]; ok {
				t.Fatalf("Create() reused code %q", room.Code)
			}
			codes[room.Code] = struct{}{}
		}
	})

	t.Run("retries on collision", func(t *testing.T) {
		svc, _, _ := newTestService()
		existing := createRoom(t, svc, NewClassroom{Name: "Math 101"})

		next := 0
		generateCodeFunc = func() string {
			defer func() { next++ }()
			return []string{existing.Code, "ZZZ999"}[next]
		}
		defer func() { generateCodeFunc = generateCode }() // reset

		room := createRoom(t, svc, NewClassroom{Name: "Math 102"})
		if room.Code != "ZZZ999" {
			t.Errorf("Create() code = %q, want %q", room.Code, "ZZZ999")
		}
	})

	t.Run("code space exhausted", func(t *testing.T) {
		svc, _, _ := newTestService()
		existing := createRoom(t, svc, NewClassroom{Name: "Math 101"})

		generateCodeFunc = func() string { return existing.Code }
		defer func() { generateCodeFunc = generateCode }() // reset

		if _, err := svc.Create(ctx, NewClassroom{Name: "Math 102", TeacherID: "t1", TeacherName: "Mr. Kim"}); err != ErrCodeExhausted {
			t.Errorf("Create() error = %v, want %v", err, ErrCodeExhausted)
		}
	})

	t.Run("notifies teacher by email", func(t *testing.T) {
		svc, _, mailSvc := newTestService()
		createRoom(t, svc, NewClassroom{Name: "Math 101", TeacherEmail: "kim@school.test"})
		if len(mailSvc.sent) != 1 {
			t.Fatalf("Create() sent %d mails, want 1", len(mailSvc.sent))
		}
		if to := mailSvc.sent[0].To[0].Address; to != "kim@school.test" {
			t.Errorf("mail To = %q, want %q", to, "kim@school.test")
		}
	})
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	room := createRoom(t, svc, NewClassroom{Name: "Math 101"})

	t.Run("by id", func(t *testing.T) {
		got, err := svc.GetByID(ctx, room.ID)
		if err != nil {
			t.Fatalf("GetByID() error = %v", err)
		}
		if got.ID != room.ID {
			t.Errorf("GetByID() ID = %q, want %q", got.ID, room.ID)
		}
	})

	t.Run("by code normalizes case", func(t *testing.T) {
		got, err := svc.GetByCode(ctx, "  "+strings.ToLower(room.Code)+" ")
		if err != nil {
			t.Fatalf("GetByCode() error = %v", err)
		}
		if got.ID != room.ID {
			t.Errorf("GetByCode() ID = %q, want %q", got.ID, room.ID)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := svc.GetByID(ctx, "nope"); err != ErrNotFound {
			t.Errorf("GetByID() error = %v, want %v", err, ErrNotFound)
		}
		if _, err := svc.GetByCode(ctx, "XXX000"); err != ErrNotFound {
			t.Errorf("GetByCode() error = %v, want %v", err, ErrNotFound)
		}
	})
}

func TestServiceQuery(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	createRoom(t, svc, NewClassroom{Name: "Math 101", Subject: "Math", TeacherID: "t1"})
	createRoom(t, svc, NewClassroom{Name: "Advanced Math", Subject: "Math", TeacherID: "t2"})
	createRoom(t, svc, NewClassroom{Name: "Biology", Subject: "Science", TeacherID: "t1"})

	tests := []struct {
		name   string
		filter *QueryFilter
		want   int
	}{
		{name: "all", filter: nil, want: 3},
		{name: "by teacher", filter: &QueryFilter{TeacherID: "t1"}, want: 2},
		{name: "by subject", filter: &QueryFilter{Subject: "Math"}, want: 2},
		{name: "search is case-insensitive", filter: &QueryFilter{Search: "math"}, want: 2},
		{name: "teacher and subject", filter: &QueryFilter{TeacherID: "t1", Subject: "Math"}, want: 1},
		{name: "no match", filter: &QueryFilter{Search: "history"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms, err := svc.Query(ctx, tt.filter, nil)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(rooms) != tt.want {
				t.Errorf("Query() returned %d classrooms, want %d", len(rooms), tt.want)
			}
		})
	}
}

func TestServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	room := createRoom(t, svc, NewClassroom{Name: "Math 101", Description: "intro"})

	newDesc := "algebra and geometry"
	got, err := svc.Update(ctx, room.ID, UpdateClassroom{
		Name:        "Math 102",
		Description: &newDesc,
		MaxStudents: intPtr(25),
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got.Name != "Math 102" || got.Description != newDesc || got.Settings.MaxStudents != 25 {
		t.Errorf("Update() = %+v", got)
	}
	// untouched fields survive
	if !got.Settings.AllowStudentJoin {
		t.Error("Update() reset AllowStudentJoin")
	}
	// identity and code never change through an update
	if got.ID != room.ID || got.Code != room.Code || !got.CreatedAt.Equal(room.CreatedAt) {
		t.Errorf("Update() changed ID/Code/CreatedAt: %+v", got)
	}
	if !got.UpdatedAt.After(room.UpdatedAt) && !got.UpdatedAt.Equal(room.UpdatedAt) {
		t.Errorf("Update() UpdatedAt = %v, want >= %v", got.UpdatedAt, room.UpdatedAt)
	}

	t.Run("empty update is a no-op", func(t *testing.T) {
		again, err := svc.Update(ctx, room.ID, UpdateClassroom{})
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if again.Name != "Math 102" || again.Description != newDesc {
			t.Errorf("Update() = %+v", again)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := svc.Update(ctx, "nope", UpdateClassroom{Name: "X"}); err != ErrNotFound {
			t.Errorf("Update() error = %v, want %v", err, ErrNotFound)
		}
	})
}

func TestServiceDeactivate(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	room := createRoom(t, svc, NewClassroom{Name: "Math 101"})

	if err := svc.Deactivate(ctx, room.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	// record survives, flagged inactive
	got, err := svc.GetByID(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.IsActive {
		t.Error("Deactivate() left IsActive = true")
	}

	// code lookup still resolves; joinability is the caller's check
	if _, err := svc.GetByCode(ctx, room.Code); err != nil {
		t.Errorf("GetByCode() error = %v", err)
	}

	// gone from default listings
	rooms, err := svc.Query(ctx, nil, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rooms) != 0 {
		t.Errorf("Query() returned %d classrooms after deactivation, want 0", len(rooms))
	}

	// still reachable when asked for explicitly
	rooms, err = svc.Query(ctx, &QueryFilter{IsActive: boolPtr(false)}, nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(rooms) != 1 {
		t.Errorf("Query(inactive) returned %d classrooms, want 1", len(rooms))
	}

	// code stays reserved: a new classroom cannot mint it
	next := 0
	generateCodeFunc = func() string {
		defer func() { next++ }()
		return []string{room.Code, "YYY888"}[next]
	}
	defer func() { generateCodeFunc = generateCode }() // reset
	fresh := createRoom(t, svc, NewClassroom{Name: "Math 102"})
	if fresh.Code != "YYY888" {
		t.Errorf("Create() code = %q, want %q", fresh.Code, "YYY888")
	}
}

func TestServiceAddStudent(t *testing.T) {
	ctx := context.Background()

	t.Run("joins", func(t *testing.T) {
		svc, _, _ := newTestService()
		room := createRoom(t, svc, NewClassroom{Name: "Math 101"})

		before := time.Now().UTC()
		got, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s1", StudentName: "Ada", RollNumber: "17"})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}
		if len(got.Students) != 1 {
			t.Fatalf("AddStudent() Students = %v", got.Students)
		}
		s := got.Students[0]
		if s.StudentID != "s1" || s.StudentName != "Ada" || s.RollNumber != "17" || !s.IsActive {
			t.Errorf("AddStudent() Student = %+v", s)
		}
		if s.JoinedAt.Before(before) {
			t.Errorf("AddStudent() JoinedAt = %v", s.JoinedAt)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		svc, _, _ := newTestService()
		room := createRoom(t, svc, NewClassroom{Name: "Math 101"})
		mustAddStudent(t, svc, room.ID, "s1")

		if _, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s1", StudentName: "Ada"}); err != ErrStudentExists {
			t.Errorf("AddStudent() error = %v, want %v", err, ErrStudentExists)
		}
	})

	t.Run("full", func(t *testing.T) {
		svc, _, _ := newTestService()
		room := createRoom(t, svc, NewClassroom{Name: "Math 101", MaxStudents: intPtr(1)})
		mustAddStudent(t, svc, room.ID, "s1")

		if _, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s2", StudentName: "Grace"}); err != ErrClassroomFull {
			t.Errorf("AddStudent() error = %v, want %v", err, ErrClassroomFull)
		}
	})

	t.Run("duplicate beats full", func(t *testing.T) {
		svc, _, _ := newTestService()
		room := createRoom(t, svc, NewClassroom{Name: "Math 101", MaxStudents: intPtr(1)})
		mustAddStudent(t, svc, room.ID, "s1")

		if _, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s1", StudentName: "Ada"}); err != ErrStudentExists {
			t.Errorf("AddStudent() error = %v, want %v", err, ErrStudentExists)
		}
	})

	t.Run("joins closed", func(t *testing.T) {
		svc, _, _ := newTestService()
		room := createRoom(t, svc, NewClassroom{Name: "Math 101", AllowStudentJoin: boolPtr(false)})

		if _, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s1", StudentName: "Ada"}); err != ErrJoinNotAllowed {
			t.Errorf("AddStudent() error = %v, want %v", err, ErrJoinNotAllowed)
		}
	})

	t.Run("deactivated classroom", func(t *testing.T) {
		svc, _, _ := newTestService()
		room := createRoom(t, svc, NewClassroom{Name: "Math 101"})
		if err := svc.Deactivate(ctx, room.ID); err != nil {
			t.Fatalf("Deactivate() error = %v", err)
		}

		if _, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s1", StudentName: "Ada"}); err != ErrJoinNotAllowed {
			t.Errorf("AddStudent() error = %v, want %v", err, ErrJoinNotAllowed)
		}
	})

	t.Run("not found", func(t *testing.T) {
		svc, _, _ := newTestService()
		if _, err := svc.AddStudent(ctx, "nope", NewStudent{StudentID: "s1", StudentName: "Ada"}); err != ErrNotFound {
			t.Errorf("AddStudent() error = %v, want %v", err, ErrNotFound)
		}
	})
}

func TestServiceRemoveStudent(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	room := createRoom(t, svc, NewClassroom{Name: "Math 101"})
	mustAddStudent(t, svc, room.ID, "s1")
	mustAddStudent(t, svc, room.ID, "s2")

	got, err := svc.RemoveStudent(ctx, room.ID, "s1")
	if err != nil {
		t.Fatalf("RemoveStudent() error = %v", err)
	}
	if len(got.Students) != 1 || got.Students[0].StudentID != "s2" {
		t.Errorf("RemoveStudent() Students = %+v", got.Students)
	}

	t.Run("idempotent", func(t *testing.T) {
		got, err := svc.RemoveStudent(ctx, room.ID, "s1")
		if err != nil {
			t.Fatalf("RemoveStudent() error = %v", err)
		}
		if len(got.Students) != 1 {
			t.Errorf("RemoveStudent() Students = %+v", got.Students)
		}
	})

	t.Run("can rejoin", func(t *testing.T) {
		got, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s1", StudentName: "Ada"})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}
		if !got.HasStudent("s1") {
			t.Error("AddStudent() did not re-add the removed student")
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := svc.RemoveStudent(ctx, "nope", "s1"); err != ErrNotFound {
			t.Errorf("RemoveStudent() error = %v, want %v", err, ErrNotFound)
		}
	})
}

func TestServiceRegenerateCode(t *testing.T) {
	ctx := context.Background()

	t.Run("rotates", func(t *testing.T) {
		svc, _, _ := newTestService()
		room := createRoom(t, svc, NewClassroom{Name: "Math 101"})

		got, err := svc.RegenerateCode(ctx, room.ID)
		if err != nil {
			t.Fatalf("RegenerateCode() error = %v", err)
		}
		if got.Code == room.Code {
			t.Errorf("RegenerateCode() returned the prior code %q", got.Code)
		}
		if !IsValidCode(got.Code) {
			t.Errorf("RegenerateCode() code = %q, want a well-formed join code", got.Code)
		}

		// old code no longer resolves
		if _, err := svc.GetByCode(ctx, room.Code); err != ErrNotFound {
			t.Errorf("GetByCode(old) error = %v, want %v", err, ErrNotFound)
		}
		if fresh, err := svc.GetByCode(ctx, got.Code); err != nil || fresh.ID != room.ID {
			t.Errorf("GetByCode(new) = %+v, %v", fresh, err)
		}
	})

	t.Run("own code stays excluded", func(t *testing.T) {
		svc, _, _ := newTestService()
		room := createRoom(t, svc, NewClassroom{Name: "Math 101"})

		next := 0
		generateCodeFunc = func() string {
			defer func() { next++ }()
			return []string{room.Code, "WWW777"}[next]
		}
		defer func() { generateCodeFunc = generateCode }() // reset

		got, err := svc.RegenerateCode(ctx, room.ID)
		if err != nil {
			t.Fatalf("RegenerateCode() error = %v", err)
		}
		if got.Code != "WWW777" {
			t.Errorf("RegenerateCode() code = %q, want %q", got.Code, "WWW777")
		}
	})

	t.Run("not found", func(t *testing.T) {
		svc, _, _ := newTestService()
		if _, err := svc.RegenerateCode(ctx, "nope"); err != ErrNotFound {
			t.Errorf("RegenerateCode() error = %v, want %v", err, ErrNotFound)
		}
	})
}

// TestMembershipScenario walks a small classroom through its whole life:
// joins, a duplicate, a capacity bounce, a removal freeing a seat.
func TestMembershipScenario(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()
	room := createRoom(t, svc, NewClassroom{Name: "Math 101", MaxStudents: intPtr(2)})

	if _, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s1", StudentName: "Ada"}); err != nil {
		t.Fatalf("s1 join: %v", err)
	}
	if _, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s1", StudentName: "Ada"}); err != ErrStudentExists {
		t.Fatalf("s1 rejoin: error = %v, want %v", err, ErrStudentExists)
	}
	if _, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s2", StudentName: "Grace"}); err != nil {
		t.Fatalf("s2 join: %v", err)
	}
	if _, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s3", StudentName: "Alan"}); err != ErrClassroomFull {
		t.Fatalf("s3 join: error = %v, want %v", err, ErrClassroomFull)
	}
	if _, err := svc.RemoveStudent(ctx, room.ID, "s1"); err != nil {
		t.Fatalf("s1 leave: %v", err)
	}
	got, err := svc.AddStudent(ctx, room.ID, NewStudent{StudentID: "s3", StudentName: "Alan"})
	if err != nil {
		t.Fatalf("s3 rejoin: %v", err)
	}
	if len(got.Students) != 2 || !got.HasStudent("s2") || !got.HasStudent("s3") {
		t.Errorf("final roster = %+v", got.Students)
	}
}

func mustAddStudent(t *testing.T, svc Service, roomID, studentID string) {
	t.Helper()
	if _, err := svc.AddStudent(context.Background(), roomID, NewStudent{StudentID: studentID, StudentName: "Student " + studentID}); err != nil {
		t.Fatalf("AddStudent(%s) failed: %v", studentID, err)
	}
}
