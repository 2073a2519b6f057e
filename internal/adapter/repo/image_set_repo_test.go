package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"shaggydog/internal/domain"
	"shaggydog/internal/sqlinline"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type stubRows struct {
	records [][]any
	idx     int
	closed  bool
}

func (r *stubRows) Close()                                       { r.closed = true }
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, errors.New("not supported") }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.idx >= len(r.records) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	return assign(r.records[r.idx-1], dest)
}

type stubExecutor struct {
	execQuery string
	execArgs  []any
	execTag   pgconn.CommandTag
	execErr   error
	rowQuery  string
	rowArgs   []any
	row       pgx.Row
	rows      *stubRows
}

func (s *stubExecutor) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execQuery = query
	s.execArgs = args
	return s.execTag, s.execErr
}

func (s *stubExecutor) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.rowQuery = query
	s.rowArgs = args
	if s.row == nil {
		return stubRow{}
	}
	return s.row
}

func (s *stubExecutor) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.rowQuery = query
	s.rowArgs = args
	if s.rows == nil {
		return nil, errors.New("no rows configured")
	}
	return s.rows, nil
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: got %d dest, want %d", len(dest), len(values))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *[]byte:
			*d = v.([]byte)
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("unsupported dest %T", dest[i])
		}
	}
	return nil
}

func TestCreateImageSet(t *testing.T) {
	created := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	exec := &stubExecutor{row: stubRow{scan: func(dest ...any) error {
		return assign([]any{"a5b1c3d4-0000-4000-8000-000000000001", created}, dest)
	}}}
	r := NewImageSetRepository(exec)
	set := &domain.ImageSet{OwnerID: "7", OriginalPath: "7_20240102_150405_original.png", BreedLabel: "Beagle"}

	id, err := r.Create(context.Background(), set)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if id != "a5b1c3d4-0000-4000-8000-000000000001" || set.ID != id {
		t.Fatalf("id = %q, set.ID = %q", id, set.ID)
	}
	if exec.rowQuery != sqlinline.QInsertImageSet {
		t.Fatal("Create did not use QInsertImageSet")
	}
	if got := exec.rowArgs[4]; got != string(domain.RunStateStarted) {
		t.Fatalf("run_state arg = %v, want %q", got, domain.RunStateStarted)
	}
	if string(exec.rowArgs[3].([]byte)) != "{}" {
		t.Fatalf("stage_paths arg = %s, want {}", exec.rowArgs[3])
	}
	if !set.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt = %s, want %s", set.CreatedAt, created)
	}
}

func TestUpdateStagesDropsEmptyPaths(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 1")}
	r := NewImageSetRepository(exec)
	err := r.UpdateStages(context.Background(), "id-1", map[domain.Stage]string{
		domain.StageFinal:       "7_x_final.png",
		domain.StageTransition1: "",
	}, domain.RunStatePartial)
	if err != nil {
		t.Fatalf("UpdateStages error: %v", err)
	}
	var payload map[string]string
	if err := json.Unmarshal(exec.execArgs[1].([]byte), &payload); err != nil {
		t.Fatalf("payload decode: %v", err)
	}
	if len(payload) != 1 || payload["final"] != "7_x_final.png" {
		t.Fatalf("payload = %#v", payload)
	}
	if exec.execArgs[2] != "PARTIAL" {
		t.Fatalf("state arg = %v, want PARTIAL", exec.execArgs[2])
	}
}

func TestUpdateStagesNotFound(t *testing.T) {
	exec := &stubExecutor{execTag: pgconn.NewCommandTag("UPDATE 0")}
	r := NewImageSetRepository(exec)
	err := r.UpdateStages(context.Background(), "missing", nil, domain.RunStateComplete)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestGetImageSet(t *testing.T) {
	now := time.Now().UTC()
	exec := &stubExecutor{row: stubRow{scan: func(dest ...any) error {
		return assign([]any{"id-1", "7", "orig.png", "Beagle", []byte(`{"final":"f.png"}`), "COMPLETE", "corr", now, now}, dest)
	}}}
	r := NewImageSetRepository(exec)
	set, err := r.Get(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if set.StagePaths[domain.StageFinal] != "f.png" {
		t.Fatalf("StagePaths = %#v", set.StagePaths)
	}
	if set.RunState != domain.RunStateComplete {
		t.Fatalf("RunState = %q", set.RunState)
	}
}

func TestGetImageSetNotFound(t *testing.T) {
	r := NewImageSetRepository(&stubExecutor{})
	if _, err := r.Get(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListByOwner(t *testing.T) {
	now := time.Now().UTC()
	rows := &stubRows{records: [][]any{
		{"id-2", "7", "b.png", "Pug", []byte(`{}`), "STARTED", "", now, now},
		{"id-1", "7", "a.png", "Beagle", []byte(`{"full_dog":"d.png"}`), "PARTIAL", "", now, now},
	}}
	exec := &stubExecutor{rows: rows}
	r := NewImageSetRepository(exec)
	sets, err := r.ListByOwner(context.Background(), "7", 0)
	if err != nil {
		t.Fatalf("ListByOwner error: %v", err)
	}
	if len(sets) != 2 || sets[0].ID != "id-2" || sets[1].StagePaths[domain.StageFullDog] != "d.png" {
		t.Fatalf("sets = %#v", sets)
	}
	if exec.rowArgs[1] != 50 {
		t.Fatalf("limit arg = %v, want 50", exec.rowArgs[1])
	}
	if !rows.closed {
		t.Fatal("rows not closed")
	}
	if !strings.Contains(exec.rowQuery, "order by created_at desc") {
		t.Fatal("unexpected list query")
	}
}
