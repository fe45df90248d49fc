package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/darasa/core/classroom"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db  *sql.DB
	svc classroom.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	fmt.Println("  createclassroom -teacher-id ID -teacher-name NAME -name NAME [-subject SUBJECT] [-grade GRADE] [-max-students N] - create a classroom and print its join code")
	fmt.Println("  regencode -id ID - rotate a classroom's join code and print the new one")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createCmd := flag.NewFlagSet("createclassroom", flag.ExitOnError)
	createTeacherID := createCmd.String("teacher-id", "", "The owning teacher's ID.")
	createTeacherName := createCmd.String("teacher-name", "", "The owning teacher's display name.")
	createName := createCmd.String("name", "", "The classroom's name.")
	createSubject := createCmd.String("subject", "", "The classroom's subject.")
	createGrade := createCmd.String("grade", "", "The classroom's grade level.")
	createMaxStudents := createCmd.Int("max-students", 0, "The classroom's capacity (defaults apply when 0).")

	regenCmd := flag.NewFlagSet("regencode", flag.ExitOnError)
	regenID := regenCmd.String("id", "", "The classroom's ID.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "createclassroom":
		if err := createCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createTeacherID == "" || *createTeacherName == "" || *createName == "" {
			createCmd.Usage()
			return errHelp
		}
		return cli.createClassroom(*createTeacherID, *createTeacherName, *createName, *createSubject, *createGrade, *createMaxStudents)
	case "regencode":
		if err := regenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *regenID == "" {
			regenCmd.Usage()
			return errHelp
		}
		return cli.regenCode(*regenID)
	default:
		cli.printUsage()
		return errHelp
	}
}
