package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
)

func CreateTeacher(
	t *testing.T,
	repo teacher.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) teacher.Teacher {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	tchr := teacher.Teacher{
		FirstName: name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := tchr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateTeacher() failed: %v", err)
		}
	}
	tchr, err := repo.CreateTeacher(context.Background(), tchr)
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return tchr
}

func CreateClassroom(t *testing.T, repo classroom.Repository, gradeLetter string, classNumber int) classroom.Classroom {
	t.Helper()
	room, err := repo.CreateClassroom(context.Background(), classroom.Classroom{
		GradeLetter:  null.NewString(gradeLetter, gradeLetter != ""),
		ClassNumber:  null.IntFrom(classNumber),
		BuildingName: "Main",
		FloorNumber:  1,
	})
	if err != nil {
		t.Fatalf("CreateClassroom() failed: %v", err)
	}
	return room
}

// CreateClass persists a class through `creator`; pass the ledger service for classes created attended.
func CreateClass(
	t *testing.T,
	creator schedule.Creator,
	tchr teacher.Teacher,
	room classroom.Classroom,
	date core.Date,
	period int,
	attended bool,
) schedule.ScheduledClass {
	t.Helper()
	c, err := creator.CreateClass(context.Background(), schedule.ScheduledClass{
		TeacherID:   tchr.ID,
		ClassroomID: room.ID,
		Period:      period,
		Date:        date,
		Attended:    attended,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return c
}

// Clock is a settable time source for services taking a `now func() time.Time`.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}
