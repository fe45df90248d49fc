package dummydb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

type classroomRepository struct {
	db *classroomTable
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{db: db.classroom}
}

func (repo *classroomRepository) query() []classroom.Classroom {
	rooms := make([]classroom.Classroom, 0, len(repo.db.table))
	for _, room := range repo.db.table {
		rooms = append(rooms, *room)
	}
	return rooms
}

func (repo *classroomRepository) CreateClassroom(_ context.Context, room classroom.Classroom) (classroom.Classroom, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	room.ID = uuid.New().String()
	repo.db.table[room.ID] = &room
	return room, nil
}

func (repo *classroomRepository) GetClassroom(_ context.Context, filter classroom.GetFilter) (classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if room, ok := repo.db.table[filter.ID]; ok {
			return *room, nil
		}
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	if filter.Code != "" {
		for _, room := range repo.query() {
			if strings.EqualFold(room.Code, filter.Code) {
				return room, nil
			}
		}
	}
	return classroom.Classroom{}, classroom.ErrNotFound
}

func (repo *classroomRepository) QueryClassrooms(_ context.Context, filter *classroom.QueryFilter, _ []core.DBOrdering) ([]classroom.Classroom, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rooms := repo.query()
	if filter == nil {
		return rooms, nil
	}

	if filter.TeacherID != "" {
		var filtered []classroom.Classroom
		for _, room := range rooms {
			if room.TeacherID == filter.TeacherID {
				filtered = append(filtered, room)
			}
		}
		rooms = filtered
	}
	// classrooms with name matching the search keyword ?
	if rooms != nil && filter.Search != "" {
		var filtered []classroom.Classroom
		for _, room := range rooms {
			if strings.Contains(strings.ToLower(room.Name), strings.ToLower(filter.Search)) {
				filtered = append(filtered, room)
			}
		}
		rooms = filtered
	}
	if rooms != nil && filter.Subject != "" {
		var filtered []classroom.Classroom
		for _, room := range rooms {
			if strings.EqualFold(room.Subject, filter.Subject) {
				filtered = append(filtered, room)
			}
		}
		rooms = filtered
	}
	if rooms != nil && filter.IsActive != nil {
		var filtered []classroom.Classroom
		for _, room := range rooms {
			if room.IsActive == *filter.IsActive {
				filtered = append(filtered, room)
			}
		}
		rooms = filtered
	}

	return rooms, nil
}

func (repo *classroomRepository) QueryAllCodes(_ context.Context) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	codes := make([]string, 0, len(repo.db.table))
	for _, room := range repo.db.table {
		codes = append(codes, room.Code)
	}
	return codes, nil
}

func (repo *classroomRepository) UpdateClassroom(_ context.Context, room classroom.Classroom) (classroom.Classroom, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[room.ID]; !ok {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	repo.db.table[room.ID] = &room
	return room, nil
}
