package inmemdb

import (
	"context"
	"errors"
	"sort"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
)

// mirrors the CHECK constraints of the postgres schema
var (
	errNegativeHours = errors.New("check constraint violated: hours must not be negative")
	errHoursRange    = errors.New("check constraint violated: hours_added must be between 0 and 7")
	errPeriodRange   = errors.New("check constraint violated: period must be between 1 and 6")
)

type classroomRepository struct {
	s store
}

var _ classroom.Repository = (*classroomRepository)(nil)

func NewClassroomRepository(db *DB) *classroomRepository {
	return &classroomRepository{s: db}
}

func sameCode(c classroom.Classroom, gradeLetter string, classNumber *int) bool {
	if c.GradeLetter.Valid != (gradeLetter != "") || c.GradeLetter.String != gradeLetter {
		return false
	}
	if classNumber == nil {
		return !c.ClassNumber.Valid
	}
	return c.ClassNumber.Valid && c.ClassNumber.Int == *classNumber
}

func (repo *classroomRepository) CreateClassroom(ctx context.Context, c classroom.Classroom) (classroom.Classroom, error) {
	err := repo.s.write(func(tb *tables) error {
		for _, other := range tb.classrooms {
			if sameCode(other, c.GradeLetter.String, c.ClassNumber.Ptr()) {
				return classroom.ErrExists
			}
		}
		c.ID = tb.nextPK()
		tb.classrooms[c.ID] = c
		return nil
	})
	if err != nil {
		return classroom.Classroom{}, err
	}
	return c, nil
}

func (repo *classroomRepository) GetClassroom(ctx context.Context, id int) (classroom.Classroom, error) {
	var (
		c  classroom.Classroom
		ok bool
	)
	repo.s.read(func(tb *tables) { c, ok = tb.classrooms[id] })
	if !ok {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	return c, nil
}

func (repo *classroomRepository) GetClassroomByCode(ctx context.Context, gradeLetter string, classNumber *int) (classroom.Classroom, error) {
	var matches []classroom.Classroom
	repo.s.read(func(tb *tables) {
		for _, c := range tb.classrooms {
			if sameCode(c, gradeLetter, classNumber) {
				matches = append(matches, c)
			}
		}
	})
	if len(matches) == 0 {
		return classroom.Classroom{}, classroom.ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches[0], nil
}

func (repo *classroomRepository) QueryClassrooms(ctx context.Context) ([]classroom.Classroom, error) {
	rooms := make([]classroom.Classroom, 0)
	repo.s.read(func(tb *tables) {
		for _, c := range tb.classrooms {
			rooms = append(rooms, c)
		}
	})
	sort.Slice(rooms, func(i, j int) bool {
		a, b := rooms[i], rooms[j]
		if a.GradeLetter.String != b.GradeLetter.String {
			return a.GradeLetter.String < b.GradeLetter.String
		}
		if a.ClassNumber.Int != b.ClassNumber.Int {
			return a.ClassNumber.Int < b.ClassNumber.Int
		}
		return a.ID < b.ID
	})
	return rooms, nil
}

func (repo *classroomRepository) DeleteClassroom(ctx context.Context, id int) error {
	return repo.s.write(func(tb *tables) error {
		if _, ok := tb.classrooms[id]; !ok {
			return classroom.ErrNotFound
		}
		delete(tb.classrooms, id)
		for cid, c := range tb.classes {
			if c.ClassroomID == id {
				deleteClass(tb, cid)
			}
		}
		return nil
	})
}

type classRepository struct {
	s store
}

var (
	_ schedule.Repository = (*classRepository)(nil)
	_ ledger.ClassStore   = (*classRepository)(nil)
)

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{s: db}
}

// withClassroom joins the classroom, like the SQL repository does.
func withClassroom(tb *tables, c schedule.ScheduledClass) schedule.ScheduledClass {
	if room, ok := tb.classrooms[c.ClassroomID]; ok {
		c.Classroom = &room
	}
	return c
}

func deleteClass(tb *tables, id int) {
	delete(tb.classes, id)
	for rid, r := range tb.attendance {
		if r.ClassID == id {
			delete(tb.attendance, rid)
		}
	}
}

func (repo *classRepository) CreateClass(ctx context.Context, c schedule.ScheduledClass) (schedule.ScheduledClass, error) {
	err := repo.s.write(func(tb *tables) error {
		if c.Period < schedule.MinPeriod || c.Period > schedule.MaxPeriod {
			return errPeriodRange
		}
		if _, ok := tb.teachers[c.TeacherID]; !ok {
			return errors.New("foreign key violated: teacher does not exist")
		}
		if _, ok := tb.classrooms[c.ClassroomID]; !ok {
			return classroom.ErrNotFound
		}
		c.ID = tb.nextPK()
		c.Classroom = nil
		tb.classes[c.ID] = c
		c = withClassroom(tb, c)
		return nil
	})
	if err != nil {
		return schedule.ScheduledClass{}, err
	}
	return c, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id int) (schedule.ScheduledClass, error) {
	var (
		c  schedule.ScheduledClass
		ok bool
	)
	repo.s.read(func(tb *tables) {
		if c, ok = tb.classes[id]; ok {
			c = withClassroom(tb, c)
		}
	})
	if !ok {
		return schedule.ScheduledClass{}, schedule.ErrNotFound
	}
	return c, nil
}

// GetClassForUpdate needs no row lock: transactions are serialized.
func (repo *classRepository) GetClassForUpdate(ctx context.Context, id int) (schedule.ScheduledClass, error) {
	return repo.GetClass(ctx, id)
}

func (repo *classRepository) SetAttended(ctx context.Context, id int, attended bool) error {
	return repo.s.write(func(tb *tables) error {
		c, ok := tb.classes[id]
		if !ok {
			return schedule.ErrNotFound
		}
		c.Attended = attended
		tb.classes[id] = c
		return nil
	})
}

func (repo *classRepository) QueryClasses(ctx context.Context, filter schedule.QueryFilter, orderings ...core.DBOrdering) ([]schedule.ScheduledClass, error) {
	classes := make([]schedule.ScheduledClass, 0)
	repo.s.read(func(tb *tables) {
		for _, c := range tb.classes {
			if filter.TeacherID != 0 && c.TeacherID != filter.TeacherID {
				continue
			}
			if !filter.Date.IsZero() && !c.Date.Equal(filter.Date) {
				continue
			}
			if !filter.From.IsZero() && c.Date.Before(filter.From) {
				continue
			}
			if !filter.To.IsZero() && c.Date.After(filter.To) {
				continue
			}
			classes = append(classes, withClassroom(tb, c))
		}
	})

	if len(orderings) == 0 {
		orderings = []core.DBOrdering{{Field: "date", Ascending: true}, {Field: "period", Ascending: true}}
	}
	sort.SliceStable(classes, func(i, j int) bool {
		a, b := classes[i], classes[j]
		for _, ord := range orderings {
			var cmp int
			switch ord.Field {
			case "id":
				cmp = a.ID - b.ID
			case "date":
				cmp = compareDates(a.Date, b.Date)
			case "period":
				cmp = a.Period - b.Period
			}
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return a.ID < b.ID
	})
	return classes, nil
}

func (repo *classRepository) DeleteClass(ctx context.Context, id int) error {
	return repo.s.write(func(tb *tables) error {
		if _, ok := tb.classes[id]; !ok {
			return schedule.ErrNotFound
		}
		deleteClass(tb, id)
		return nil
	})
}

func compareDates(a, b core.Date) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
