package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/ledger"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func pqErrCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}

// trapNoRowsErr maps sql.ErrNoRows to the domain's not found error.
func trapNoRowsErr(err, notFound error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return err
}

// checkAffected returns notFound when res affected no row.
func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

type txManager struct {
	db *sqlx.DB
}

var _ ledger.TxManager = (*txManager)(nil)

func NewTxManager(db *sqlx.DB) ledger.TxManager {
	return &txManager{db: db}
}

func (m *txManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos ledger.TxRepositories) error) error {
	tx, err := m.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}

	ledgerRepo := NewLedgerRepository(tx)
	repos := ledger.TxRepositories{
		Teachers:   NewTeacherRepository(tx),
		Classes:    NewClassRepository(tx),
		Entries:    ledgerRepo,
		Attendance: ledgerRepo,
	}

	if err := fn(ctx, repos); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrapf(rollbackErr, "rolling back after %v", err)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
