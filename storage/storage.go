// Package storage selects and wires the repositories of the configured database engine.
package storage

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/classroom"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	"github.com/trezcool/mahudhurio/core/teacher"
	"github.com/trezcool/mahudhurio/storage/database"
	inmemdb "github.com/trezcool/mahudhurio/storage/database/inmem"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
)

// LedgerRepository reads daily entries and attendance records outside of a transaction.
type LedgerRepository interface {
	ledger.EntryStore
	ledger.AttendanceStore
}

type Repositories struct {
	Teachers   teacher.Repository
	Classrooms classroom.Repository
	Classes    schedule.Repository
	Ledger     LedgerRepository
	Tx         ledger.TxManager

	// DB is nil for the in-memory engine.
	DB *sqlx.DB
	// Memory is nil for the postgres engine.
	Memory *inmemdb.DB
}

// Open connects to the database of conf.Database.Engine.
func Open(conf *core.Config) (*Repositories, error) {
	if conf.Database.InMemory() {
		return NewMemory(inmemdb.NewDB()), nil
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening postgres")
	}
	return NewPostgres(db), nil
}

func NewMemory(db *inmemdb.DB) *Repositories {
	return &Repositories{
		Teachers:   inmemdb.NewTeacherRepository(db),
		Classrooms: inmemdb.NewClassroomRepository(db),
		Classes:    inmemdb.NewClassRepository(db),
		Ledger:     inmemdb.NewLedgerRepository(db),
		Tx:         inmemdb.NewTxManager(db),
		Memory:     db,
	}
}

func NewPostgres(db *sqlx.DB) *Repositories {
	return &Repositories{
		Teachers:   sqlxrepos.NewTeacherRepository(db),
		Classrooms: sqlxrepos.NewClassroomRepository(db),
		Classes:    sqlxrepos.NewClassRepository(db),
		Ledger:     sqlxrepos.NewLedgerRepository(db),
		Tx:         sqlxrepos.NewTxManager(db),
		DB:         db,
	}
}

func (r *Repositories) Close() error {
	if r.DB != nil {
		return r.DB.Close()
	}
	if r.Memory != nil {
		return r.Memory.Close()
	}
	return nil
}
