package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
)

type tables struct {
	teachers   map[int]teacher.Teacher
	classrooms map[int]classroom.Classroom
	classes    map[int]schedule.ScheduledClass
	entries    map[int]ledger.DailyHourEntry
	attendance map[int]ledger.AttendanceRecord
	pkCount    int
}

func newTables() *tables {
	return &tables{
		teachers:   make(map[int]teacher.Teacher),
		classrooms: make(map[int]classroom.Classroom),
		classes:    make(map[int]schedule.ScheduledClass),
		entries:    make(map[int]ledger.DailyHourEntry),
		attendance: make(map[int]ledger.AttendanceRecord),
	}
}

func (tb *tables) nextPK() int {
	tb.pkCount++
	return tb.pkCount
}

func (tb *tables) clone() *tables {
	c := &tables{
		teachers:   make(map[int]teacher.Teacher, len(tb.teachers)),
		classrooms: make(map[int]classroom.Classroom, len(tb.classrooms)),
		classes:    make(map[int]schedule.ScheduledClass, len(tb.classes)),
		entries:    make(map[int]ledger.DailyHourEntry, len(tb.entries)),
		attendance: make(map[int]ledger.AttendanceRecord, len(tb.attendance)),
		pkCount:    tb.pkCount,
	}
	for k, v := range tb.teachers {
		v.Roles = append([]string(nil), v.Roles...)
		c.teachers[k] = v
	}
	for k, v := range tb.classrooms {
		c.classrooms[k] = v
	}
	for k, v := range tb.classes {
		c.classes[k] = v
	}
	for k, v := range tb.entries {
		c.entries[k] = v
	}
	for k, v := range tb.attendance {
		c.attendance[k] = v
	}
	return c
}

// store gives repositories access to the tables, either shared (DB) or private to a transaction.
type store interface {
	read(fn func(tb *tables))
	write(fn func(tb *tables) error) error
}

// DB is an in-memory database.
// Writes, transactions included, are serialized; a transaction works on a copy of the tables
// that replaces them on commit, so a failed transaction leaves no trace.
type DB struct {
	writeMu sync.Mutex   // serializes writers
	mu      sync.RWMutex // guards data
	data    *tables
}

func NewDB() *DB {
	return &DB{data: newTables()}
}

func (db *DB) read(fn func(tb *tables)) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fn(db.data)
}

func (db *DB) write(fn func(tb *tables) error) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn(db.data)
}

// Reset drops all data.
func (db *DB) Reset() {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.data = newTables()
}

func (db *DB) Close() error { return nil }

// txStore is the private copy of the tables used by one transaction.
type txStore struct {
	data *tables
}

func (s *txStore) read(fn func(tb *tables))              { fn(s.data) }
func (s *txStore) write(fn func(tb *tables) error) error { return fn(s.data) }

type txManager struct {
	db *DB
}

var _ ledger.TxManager = (*txManager)(nil)

func NewTxManager(db *DB) ledger.TxManager {
	return &txManager{db: db}
}

func (m *txManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos ledger.TxRepositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.db.writeMu.Lock()
	defer m.db.writeMu.Unlock()

	m.db.mu.RLock()
	tx := &txStore{data: m.db.data.clone()}
	m.db.mu.RUnlock()

	repos := ledger.TxRepositories{
		Teachers:   &teacherRepository{s: tx},
		Classes:    &classRepository{s: tx},
		Entries:    &ledgerRepository{s: tx},
		Attendance: &ledgerRepository{s: tx},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.db.mu.Lock()
	m.db.data = tx.data
	m.db.mu.Unlock()
	return nil
}
