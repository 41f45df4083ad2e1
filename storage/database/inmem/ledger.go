package inmemdb

import (
	"context"
	"errors"
	"sort"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
)

type ledgerRepository struct {
	s store
}

var (
	_ ledger.EntryStore      = (*ledgerRepository)(nil)
	_ ledger.AttendanceStore = (*ledgerRepository)(nil)
)

func NewLedgerRepository(db *DB) *ledgerRepository {
	return &ledgerRepository{s: db}
}

func (repo *ledgerRepository) GetEntry(ctx context.Context, teacherID int, date core.Date) (ledger.DailyHourEntry, error) {
	var (
		entry ledger.DailyHourEntry
		ok    bool
	)
	repo.s.read(func(tb *tables) {
		for _, e := range tb.entries {
			if e.TeacherID == teacherID && e.Date.Equal(date) {
				entry, ok = e, true
				return
			}
		}
	})
	if !ok {
		return ledger.DailyHourEntry{}, ledger.ErrEntryNotFound
	}
	return entry, nil
}

func (repo *ledgerRepository) CreateEntry(ctx context.Context, e ledger.DailyHourEntry) (ledger.DailyHourEntry, error) {
	err := repo.s.write(func(tb *tables) error {
		if e.HoursAdded < 0 || e.HoursAdded > ledger.MaxDailyHours {
			return errHoursRange
		}
		if _, ok := tb.teachers[e.TeacherID]; !ok {
			return teacher.ErrNotFound
		}
		for _, other := range tb.entries {
			if other.TeacherID == e.TeacherID && other.Date.Equal(e.Date) {
				return errors.New("unique constraint violated: daily_hour_entry (teacher_id, date)")
			}
		}
		e.ID = tb.nextPK()
		tb.entries[e.ID] = e
		return nil
	})
	if err != nil {
		return ledger.DailyHourEntry{}, err
	}
	return e, nil
}

func (repo *ledgerRepository) SetEntryHours(ctx context.Context, id int, hours int) error {
	return repo.s.write(func(tb *tables) error {
		e, ok := tb.entries[id]
		if !ok {
			return ledger.ErrEntryNotFound
		}
		if hours < 0 || hours > ledger.MaxDailyHours {
			return errHoursRange
		}
		e.HoursAdded = hours
		tb.entries[id] = e
		return nil
	})
}

func (repo *ledgerRepository) QueryEntries(ctx context.Context, teacherID int, from, to core.Date) ([]ledger.DailyHourEntry, error) {
	entries := make([]ledger.DailyHourEntry, 0)
	repo.s.read(func(tb *tables) {
		for _, e := range tb.entries {
			if e.TeacherID != teacherID || e.Date.Before(from) || e.Date.After(to) {
				continue
			}
			entries = append(entries, e)
		}
	})
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
	return entries, nil
}

func (repo *ledgerRepository) UpsertAttendance(ctx context.Context, r ledger.AttendanceRecord) (ledger.AttendanceRecord, error) {
	err := repo.s.write(func(tb *tables) error {
		if _, ok := tb.classes[r.ClassID]; !ok {
			return schedule.ErrNotFound
		}
		for id, other := range tb.attendance {
			if other.TeacherID == r.TeacherID && other.ClassID == r.ClassID && other.Date.Equal(r.Date) {
				r.ID = id
				tb.attendance[id] = r
				return nil
			}
		}
		r.ID = tb.nextPK()
		tb.attendance[r.ID] = r
		return nil
	})
	if err != nil {
		return ledger.AttendanceRecord{}, err
	}
	return r, nil
}

func (repo *ledgerRepository) QueryAttendance(ctx context.Context, teacherID int, date core.Date) ([]ledger.AttendanceRecord, error) {
	records := make([]ledger.AttendanceRecord, 0)
	repo.s.read(func(tb *tables) {
		for _, r := range tb.attendance {
			if r.TeacherID == teacherID && r.Date.Equal(date) {
				records = append(records, r)
			}
		}
	})
	sort.Slice(records, func(i, j int) bool { return records[i].ClassID < records[j].ClassID })
	return records, nil
}
