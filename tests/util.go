package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/classroom"
)

// NewConfig returns a Config suitable for tests; no env vars are read.
func NewConfig() *core.Config {
	return &core.Config{
		TestMode:  true,
		Env:       "TEST",
		AppName:   "Darasa",
		SecretKey: []byte("secret"),
		DefaultFromEmail: mail.Address{
			Name:    "Darasa",
			Address: "noreply@localhost",
		},
		Server: core.ServerConfig{
			Addr:                      ":8000",
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
	}
}

// CreateClassroom persists a classroom through the service, failing the test on error.
func CreateClassroom(
	t *testing.T,
	svc classroom.Service,
	teacherID, teacherName string,
	nc classroom.NewClassroom,
) classroom.Classroom {
	t.Helper()
	nc.TeacherID = teacherID
	nc.TeacherName = teacherName
	room, err := svc.Create(context.Background(), nc)
	if err != nil {
		t.Fatalf("CreateClassroom() failed: %v", err)
	}
	return room
}
