package sqlxrepos_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/ledger"
	"github.com/trezcool/mahudhurio/core/schedule"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
	"github.com/trezcool/mahudhurio/tests"
)

// prepareDB connects to TEST_DATABASE_URL, migrates it and empties every table.
func prepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db.DB))
	_, err = db.Exec(`TRUNCATE attendance_record, daily_hour_entry, scheduled_class, classroom, teacher RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return db
}

func TestLedger_postgres(t *testing.T) {
	ctx := context.Background()
	db := prepareDB(t)

	teachers := sqlxrepos.NewTeacherRepository(db)
	rooms := sqlxrepos.NewClassroomRepository(db)
	classes := sqlxrepos.NewClassRepository(db)
	entries := sqlxrepos.NewLedgerRepository(db)
	clock := testutil.NewClock(time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC))

	svc := ledger.NewService(ledger.ServiceDeps{
		TxManager:  sqlxrepos.NewTxManager(db),
		Entries:    entries,
		Attendance: entries,
		Logger:     logsvc.NewNopLogger(),
		Now:        clock.Now,
	})

	today := core.NewDate(2024, 5, 2)
	dana := testutil.CreateTeacher(t, teachers, "Dana", "dlevi", "dana@school.test", "", nil, true)
	b3 := testutil.CreateClassroom(t, rooms, "B", 3)

	t.Run("concurrent additions respect the daily cap", func(t *testing.T) {
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
			rejected int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.AddHours(ctx, dana.ID, today, 1)
				mu.Lock()
				defer mu.Unlock()
				switch errors.Cause(err) {
				case nil:
					accepted++
				case ledger.ErrDailyCapExceeded:
					rejected++
				default:
					t.Errorf("AddHours() unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, ledger.MaxDailyHours, accepted)
		assert.Equal(t, 10-ledger.MaxDailyHours, rejected)

		hours, err := svc.DailyHours(ctx, dana.ID, today)
		require.NoError(t, err)
		assert.Equal(t, ledger.MaxDailyHours, hours)

		got, err := teachers.GetTeacher(ctx, dana.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.MaxDailyHours, got.MonthlyHours)
	})

	t.Run("attendance", func(t *testing.T) {
		tomorrow := today.AddDays(1)
		c := testutil.CreateClass(t, classes, dana, b3, tomorrow, 1, false)

		res, err := svc.SetAttendance(ctx, c.ID, true, dana)
		require.NoError(t, err)
		assert.True(t, res.Attended)

		hours, err := svc.DailyHours(ctx, dana.ID, tomorrow)
		require.NoError(t, err)
		assert.Equal(t, 1, hours)

		_, err = svc.SetAttendance(ctx, c.ID, false, dana)
		require.NoError(t, err)
		hours, err = svc.DailyHours(ctx, dana.ID, tomorrow)
		require.NoError(t, err)
		assert.Zero(t, hours)

		_, err = svc.SetAttendance(ctx, 999999, true, dana)
		assert.Equal(t, schedule.ErrNotFound, errors.Cause(err))
	})

	t.Run("reconcile", func(t *testing.T) {
		require.NoError(t, teachers.SetMonthlyHours(ctx, dana.ID, 42))

		report, err := svc.Reconcile(ctx, dana.ID, core.MonthOf(today))
		require.NoError(t, err)
		assert.True(t, report.Reconciled)
		assert.Equal(t, 42, report.Cached)
		assert.Equal(t, ledger.MaxDailyHours, report.Total)

		report, err = svc.Verify(ctx, dana.ID, core.MonthOf(today))
		require.NoError(t, err)
		assert.False(t, report.Drift)
	})
}
