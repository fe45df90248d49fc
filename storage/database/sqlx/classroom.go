package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

type classroomRepository struct {
	db *sqlx.DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *sql.DB) classroom.Repository {
	return &classroomRepository{db: sqlx.NewDb(db, "postgres")}
}

// dbClassroom is the row representation of a classroom.Classroom.
// Students and Settings live in jsonb columns; a classroom's roster is always
// read and written whole, so there is no gain in normalizing it out.
type dbClassroom struct {
	ID          string         `db:"id"`
	Code        string         `db:"code"`
	Name        string         `db:"name"`
	Description null.String    `db:"description"`
	Subject     null.String    `db:"subject"`
	GradeLevel  null.String    `db:"grade_level"`
	TeacherID   string         `db:"teacher_id"`
	TeacherName string         `db:"teacher_name"`
	Students    types.JSONText `db:"students"`
	Settings    types.JSONText `db:"settings"`
	IsActive    bool           `db:"is_active"`
	CreatedAt   null.Time      `db:"created_at"`
	UpdatedAt   null.Time      `db:"updated_at"`
}

func (repo classroomRepository) toRow(room classroom.Classroom) (dbClassroom, error) {
	students, err := json.Marshal(room.Students)
	if err != nil {
		return dbClassroom{}, errors.Wrap(err, "marshaling students")
	}
	settings, err := json.Marshal(room.Settings)
	if err != nil {
		return dbClassroom{}, errors.Wrap(err, "marshaling settings")
	}
	return dbClassroom{
		ID:          room.ID,
		Code:        room.Code,
		Name:        room.Name,
		Description: null.NewString(room.Description, room.Description != ""),
		Subject:     null.NewString(room.Subject, room.Subject != ""),
		GradeLevel:  null.NewString(room.GradeLevel, room.GradeLevel != ""),
		TeacherID:   room.TeacherID,
		TeacherName: room.TeacherName,
		Students:    students,
		Settings:    settings,
		IsActive:    room.IsActive,
		CreatedAt:   null.NewTime(room.CreatedAt.UTC(), !room.CreatedAt.IsZero()),
		UpdatedAt:   null.NewTime(room.UpdatedAt.UTC(), !room.UpdatedAt.IsZero()),
	}, nil
}

func (repo classroomRepository) fromRow(row dbClassroom) (classroom.Classroom, error) {
	room := classroom.Classroom{
		ID:          row.ID,
		Code:        row.Code,
		Name:        row.Name,
		Description: row.Description.String,
		Subject:     row.Subject.String,
		GradeLevel:  row.GradeLevel.String,
		TeacherID:   row.TeacherID,
		TeacherName: row.TeacherName,
		Students:    []classroom.Student{},
		IsActive:    row.IsActive,
		CreatedAt:   row.CreatedAt.Time,
		UpdatedAt:   row.UpdatedAt.Time,
	}
	if len(row.Students) > 0 {
		if err := json.Unmarshal(row.Students, &room.Students); err != nil {
			return classroom.Classroom{}, errors.Wrap(err, "unmarshaling students")
		}
	}
	if len(row.Settings) > 0 {
		if err := json.Unmarshal(row.Settings, &room.Settings); err != nil {
			return classroom.Classroom{}, errors.Wrap(err, "unmarshaling settings")
		}
	}
	return room, nil
}

func (repo classroomRepository) fromRowSlice(rows []dbClassroom) ([]classroom.Classroom, error) {
	rooms := make([]classroom.Classroom, 0, len(rows))
	for _, row := range rows {
		room, err := repo.fromRow(row)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

// trapNoRowsErr maps psql "no rows" err to classroom.ErrNotFound
func (repo classroomRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return classroom.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo classroomRepository) CreateClassroom(ctx context.Context, room classroom.Classroom) (classroom.Classroom, error) {
	room.ID = uuid.New().String()
	row, err := repo.toRow(room)
	if err != nil {
		return classroom.Classroom{}, err
	}

	const q = `
		INSERT INTO classroom
			(id, code, name, description, subject, grade_level, teacher_id, teacher_name, students, settings, is_active, created_at, updated_at)
		VALUES
			(:id, :code, :name, :description, :subject, :grade_level, :teacher_id, :teacher_name, :students, :settings, :is_active, :created_at, :updated_at)`
	if _, err = repo.db.NamedExecContext(ctx, q, row); err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "inserting classroom")
	}
	return room, nil
}

func (repo classroomRepository) GetClassroom(ctx context.Context, filter classroom.GetFilter) (classroom.Classroom, error) {
	var (
		row dbClassroom
		err error
	)
	switch {
	case filter.ID != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM classroom WHERE id = $1`, filter.ID)
	case filter.Code != "":
		err = repo.db.GetContext(ctx, &row, `SELECT * FROM classroom WHERE code = $1`, filter.Code)
	default:
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	if err != nil {
		return classroom.Classroom{}, repo.trapNoRowsErr(err, "finding classroom")
	}
	return repo.fromRow(row)
}

// orderable maps the public ordering fields to their columns.
var orderable = map[string]string{
	"name":       "name",
	"subject":    "subject",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

func (repo classroomRepository) QueryClassrooms(ctx context.Context, filter *classroom.QueryFilter, ordering []core.DBOrdering) ([]classroom.Classroom, error) {
	q := strings.Builder{}
	q.WriteString(`SELECT * FROM classroom`)

	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter != nil {
		if filter.TeacherID != "" {
			where = append(where, "teacher_id = "+arg(filter.TeacherID))
		}
		if filter.Search != "" {
			where = append(where, "name ILIKE "+arg("%"+filter.Search+"%"))
		}
		if filter.Subject != "" {
			// ILIKE without wildcards: case-insensitive equality, as in dummydb
			where = append(where, "subject ILIKE "+arg(filter.Subject))
		}
		if filter.IsActive != nil {
			where = append(where, "is_active = "+arg(*filter.IsActive))
		}
	}
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	var orderBy []string
	for _, ord := range ordering {
		if _, ok := orderable[ord.Field]; ok {
			orderBy = append(orderBy, ord.String())
		}
	}
	if len(orderBy) == 0 {
		orderBy = append(orderBy, "created_at DESC")
	}
	q.WriteString(" ORDER BY " + strings.Join(orderBy, ", "))

	var rows []dbClassroom
	if err := repo.db.SelectContext(ctx, &rows, q.String(), args...); err != nil {
		return nil, errors.Wrap(err, "querying classrooms")
	}
	return repo.fromRowSlice(rows)
}

func (repo classroomRepository) QueryAllCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := repo.db.SelectContext(ctx, &codes, `SELECT code FROM classroom`); err != nil {
		return nil, errors.Wrap(err, "querying classroom codes")
	}
	return codes, nil
}

func (repo classroomRepository) UpdateClassroom(ctx context.Context, room classroom.Classroom) (classroom.Classroom, error) {
	row, err := repo.toRow(room)
	if err != nil {
		return classroom.Classroom{}, err
	}

	const q = `
		UPDATE classroom
		SET code         = :code,
			name         = :name,
			description  = :description,
			subject      = :subject,
			grade_level  = :grade_level,
			students     = :students,
			settings     = :settings,
			is_active    = :is_active,
			updated_at   = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, row)
	if err != nil {
		return classroom.Classroom{}, errors.Wrap(err, "updating classroom")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	return room, nil
}
