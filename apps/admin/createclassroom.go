package main

import (
	"context"
	"fmt"

	"github.com/trezcool/darasa/core/classroom"
)

// createClassroom creates a classroom on a teacher's behalf and prints the
// join code to hand out.
func (cli *commandLine) createClassroom(teacherID, teacherName, name, subject, grade string, maxStudents int) error {
	nc := classroom.NewClassroom{
		Name:        name,
		Subject:     subject,
		GradeLevel:  grade,
		TeacherID:   teacherID,
		TeacherName: teacherName,
	}
	if maxStudents > 0 {
		nc.MaxStudents = &maxStudents
	}

	room, err := cli.svc.Create(context.Background(), nc)
	if err != nil {
		return err
	}
	fmt.Printf("classroom %q created; join code: %s\n", room.Name, room.Code)
	return nil
}
