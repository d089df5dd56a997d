package ledger

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/tweetrelay/internal/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestPostgresExists(t *testing.T) {
	for _, want := range []bool{true, false} {
		repo, mock, db := newRepoWithMock(t)

		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM published_tweets WHERE tweet_id = \$1\)`).
			WithArgs("101").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(want))

		got, err := repo.Exists(context.Background(), "101")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("Exists = %v, want %v", got, want)
		}
		db.Close()
	}
}

func TestPostgresExists_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errors.New("conn reset"))

	if _, err := repo.Exists(context.Background(), "101"); err == nil || err.Error() != "db error: conn reset" {
		t.Fatalf("want wrapped db error, got %v", err)
	}
}

func TestPostgresInsert_OnConflictDoNothing(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`INSERT INTO published_tweets .* ON CONFLICT \(tweet_id\) DO NOTHING`).
		WithArgs("101", int64(1), int64(555), "@alice_feed", ts, `{"id":"101"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Insert(context.Background(), &models.PublicationRecord{
		PostID: "101", AccountID: 1, DeliveryID: 555, Channel: "@alice_feed",
		PublishedAt: ts, Payload: []byte(`{"id":"101"}`),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresInsert_NilPayloadAndDefaultTime(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO published_tweets`).
		WithArgs("102", int64(1), int64(0), "@c", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Insert(context.Background(), &models.PublicationRecord{PostID: "102", AccountID: 1, Channel: "@c"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPostgresInsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO published_tweets`).WillReturnError(errors.New("disk full"))

	if err := repo.Insert(context.Background(), &models.PublicationRecord{PostID: "1"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPostgresCountPublished(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM published_tweets$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM published_tweets WHERE account_id = \$1`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	all, err := repo.CountPublished(context.Background(), nil)
	if err != nil || all != 12 {
		t.Fatalf("CountPublished(nil) = %d, %v", all, err)
	}
	id := int64(3)
	one, err := repo.CountPublished(context.Background(), &id)
	if err != nil || one != 4 {
		t.Fatalf("CountPublished(3) = %d, %v", one, err)
	}
}

func TestPostgresPruneOlderThan(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM published_tweets WHERE published_at < NOW\(\) - \(\$1 \* INTERVAL '1 day'\)`).
		WithArgs(30).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.PruneOlderThan(context.Background(), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 7 {
		t.Fatalf("want 7 pruned, got %d", n)
	}
}

func TestPostgresPruneBefore(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`DELETE FROM published_tweets WHERE published_at < \$1`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.PruneBefore(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 pruned, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresPruneBefore_Error(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM published_tweets`).WillReturnError(errors.New("conn reset"))

	if _, err := repo.PruneBefore(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error")
	}
}

func TestPostgresListOlderThan(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-48 * time.Hour)
	mock.ExpectQuery(`SELECT tweet_id, .* FROM published_tweets WHERE published_at < \$1 ORDER BY published_at`).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"tweet_id", "account_id", "telegram_message_id", "telegram_channel_id", "published_at", "tweet_data"}).
			AddRow("90", int64(1), int64(10), "@c", old, `{"id":"90"}`).
			AddRow("91", int64(1), int64(11), "@c", old, ""))

	recs, err := repo.ListOlderThan(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("want 2 records, got %d", len(recs))
	}
	if string(recs[0].Payload) != `{"id":"90"}` || recs[1].Payload != nil {
		t.Fatalf("unexpected payloads: %q %q", recs[0].Payload, recs[1].Payload)
	}
}
