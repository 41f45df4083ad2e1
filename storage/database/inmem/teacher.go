package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/teacher"
)

type teacherRepository struct {
	s store
}

var (
	_ teacher.Repository  = (*teacherRepository)(nil)
	_ ledger.TeacherStore = (*teacherRepository)(nil)
)

func NewTeacherRepository(db *DB) *teacherRepository {
	return &teacherRepository{s: db}
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	err := repo.s.write(func(tb *tables) error {
		for _, other := range tb.teachers {
			if other.Username == t.Username {
				return teacher.ErrUsernameExists
			}
		}
		t.ID = tb.nextPK()
		t.Roles = append([]string(nil), t.Roles...)
		tb.teachers[t.ID] = t
		return nil
	})
	if err != nil {
		return teacher.Teacher{}, err
	}
	return t, nil
}

func (repo *teacherRepository) GetTeacher(ctx context.Context, id int) (teacher.Teacher, error) {
	var (
		t  teacher.Teacher
		ok bool
	)
	repo.s.read(func(tb *tables) { t, ok = tb.teachers[id] })
	if !ok {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	return t, nil
}

func (repo *teacherRepository) GetTeacherByUsername(ctx context.Context, username string) (teacher.Teacher, error) {
	var (
		t  teacher.Teacher
		ok bool
	)
	repo.s.read(func(tb *tables) {
		for _, other := range tb.teachers {
			if other.Username == username || (other.Email != "" && other.Email == username) {
				t, ok = other, true
				return
			}
		}
	})
	if !ok {
		return teacher.Teacher{}, teacher.ErrNotFound
	}
	return t, nil
}

func (repo *teacherRepository) QueryTeachers(ctx context.Context, activeOnly bool) ([]teacher.Teacher, error) {
	teachers := make([]teacher.Teacher, 0)
	repo.s.read(func(tb *tables) {
		for _, t := range tb.teachers {
			if activeOnly && !t.IsActive {
				continue
			}
			teachers = append(teachers, t)
		}
	})
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].Username < teachers[j].Username })
	return teachers, nil
}

func (repo *teacherRepository) UpdateTeacher(ctx context.Context, t teacher.Teacher) (teacher.Teacher, error) {
	err := repo.s.write(func(tb *tables) error {
		orig, ok := tb.teachers[t.ID]
		if !ok {
			return teacher.ErrNotFound
		}
		for _, other := range tb.teachers {
			if other.ID != t.ID && other.Username == t.Username {
				return teacher.ErrUsernameExists
			}
		}
		t.MonthlyHours = orig.MonthlyHours
		t.CreatedAt = orig.CreatedAt
		t.Roles = append([]string(nil), t.Roles...)
		tb.teachers[t.ID] = t
		return nil
	})
	if err != nil {
		return teacher.Teacher{}, err
	}
	return t, nil
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id int) error {
	return repo.s.write(func(tb *tables) error {
		if _, ok := tb.teachers[id]; !ok {
			return teacher.ErrNotFound
		}
		delete(tb.teachers, id)
		// ON DELETE CASCADE
		for cid, c := range tb.classes {
			if c.TeacherID == id {
				deleteClass(tb, cid)
			}
		}
		for eid, e := range tb.entries {
			if e.TeacherID == id {
				delete(tb.entries, eid)
			}
		}
		for rid, r := range tb.attendance {
			if r.TeacherID == id {
				delete(tb.attendance, rid)
			}
		}
		return nil
	})
}

// GetTeacherForUpdate needs no row lock: transactions are serialized.
func (repo *teacherRepository) GetTeacherForUpdate(ctx context.Context, id int) (teacher.Teacher, error) {
	return repo.GetTeacher(ctx, id)
}

func (repo *teacherRepository) SetMonthlyHours(ctx context.Context, id int, hours int) error {
	return repo.s.write(func(tb *tables) error {
		t, ok := tb.teachers[id]
		if !ok {
			return teacher.ErrNotFound
		}
		if hours < 0 {
			return errNegativeHours
		}
		t.MonthlyHours = hours
		tb.teachers[id] = t
		return nil
	})
}
