// internal/journal/store_test.go
//
// Unit-tests for the prompt journal using sqlmock.
//
// Run: go test ./internal/journal -v

package journal

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/yanizio/hmi/extensions/hmi"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "mysql"), nil), mock
}

func TestRecord(t *testing.T) {
	st, mock := newMockStore(t)
	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	st.now = func() time.Time { return at }

	p := &hmi.Prompt{
		ID:      3,
		Kind:    hmi.KindQuestion,
		Text:    "Stop the pump?",
		Buttons: []hmi.Button{hmi.ButtonYes, hmi.ButtonNo},
	}

	mock.ExpectExec(regexp.QuoteMeta(insertSQL)).
		WithArgs(uint64(3), "question", "Stop the pump?", "", "yes,no", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := st.Record(context.Background(), p); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestRecent(t *testing.T) {
	st, mock := newMockStore(t)
	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

	cols := []string{"id", "prompt_id", "kind", "text", "informative_text", "buttons", "requested_at"}
	mock.ExpectQuery(regexp.QuoteMeta(recentSQL)).
		WithArgs(2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(9), uint64(5), "critical", "Overheat", "", "ok", at).
			AddRow(int64(8), uint64(4), "note", "Started", "", "ok", at))

	got, err := st.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].Text != "Overheat" || got[1].PromptID != 4 {
		t.Fatalf("unexpected rows: %#v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func TestMigrate(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS prompt_journal")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet SQL expectations: %v", err)
	}
}

func waitForExpectations(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for mock.ExpectationsWereMet() != nil {
		if time.Now().After(deadline) {
			t.Fatalf("journal write never happened: %v", mock.ExpectationsWereMet())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestObserver_RecordsRequestOnUnboundBridge(t *testing.T) {
	st, mock := newMockStore(t)
	mock.ExpectExec(regexp.QuoteMeta(insertSQL)).
		WithArgs(uint64(1), "critical", "Overheat", "", "ok", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- st.Run(ctx) }()

	bridge := hmi.NewPopupBridge()
	bridge.OnAccepted(st.Observer())
	if err := bridge.Request(hmi.Critical("Overheat")); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if bridge.Bound() {
		t.Fatal("bridge should be unbound")
	}

	waitForExpectations(t, mock)
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestRun_FlushesQueueOnCancel(t *testing.T) {
	st, mock := newMockStore(t)
	at := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	st.now = func() time.Time { return at }

	for i := uint64(1); i <= 3; i++ {
		mock.ExpectExec(regexp.QuoteMeta(insertSQL)).
			WithArgs(i, "note", "tick", "", "ok", at).
			WillReturnResult(sqlmock.NewResult(int64(i), 1))
	}
	mock.MatchExpectationsInOrder(false)

	obs := st.Observer()
	for i := uint64(1); i <= 3; i++ {
		obs(&hmi.Prompt{ID: i, Kind: hmi.KindNote, Text: "tick", Buttons: []hmi.Button{hmi.ButtonOK}})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := st.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("queued rows not flushed: %v", err)
	}
}

func TestObserver_FullQueueDoesNotBlock(t *testing.T) {
	st, _ := newMockStore(t)
	obs := st.Observer()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueSize+10; i++ {
			obs(&hmi.Prompt{ID: uint64(i + 1), Kind: hmi.KindNote, Text: "burst"})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("observer blocked on a full queue")
	}
	if len(st.queue) != queueSize {
		t.Fatalf("queued = %d, want %d", len(st.queue), queueSize)
	}
}
