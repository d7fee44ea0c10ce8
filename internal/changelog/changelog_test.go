package changelog

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/confdrift/confdrift/internal/cferrors"
)

func record(tool string) Record {
	return Record{
		Tool:          tool,
		Timestamp:     time.Now().UTC(),
		ChangedFields: []string{"env.ANTHROPIC_BASE_URL"},
	}
}

func TestAddAndPage(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Add(record("claude-code")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	records, total, err := s.Page(1, 20)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Fatalf("total=%d records=%d", total, len(records))
	}
	if records[0].Tool != "claude-code" || records[0].Action != "" {
		t.Fatalf("unexpected record %+v", records[0])
	}
}

func TestAddSupersedesPendingSameTool(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Add(record("codex")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(record("gemini-cli")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(record("codex")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	records, _, err := s.Page(1, 20)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	// Newest first: codex (pending), gemini-cli (pending), codex (superseded).
	if records[0].Tool != "codex" || records[0].Action != "" {
		t.Fatalf("newest codex record not pending: %+v", records[0])
	}
	if records[1].Tool != "gemini-cli" || records[1].Action != "" {
		t.Fatalf("gemini record must stay pending: %+v", records[1])
	}
	if records[2].Tool != "codex" || records[2].Action != ActionSuperseded {
		t.Fatalf("older codex record not superseded: %+v", records[2])
	}
}

func TestUpdateAction(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Add(record("codex")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.UpdateAction("codex", ActionAllow); err != nil {
		t.Fatalf("UpdateAction: %v", err)
	}

	records, _, _ := s.Page(1, 20)
	if records[0].Action != ActionAllow {
		t.Fatalf("action not recorded: %+v", records[0])
	}

	err := s.UpdateAction("codex", ActionBlock)
	if !errors.Is(err, cferrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for resolved tool, got %v", err)
	}
}

func TestMarkPendingExpired(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Add(record("codex")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(record("claude-code")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.UpdateAction("codex", ActionBlock); err != nil {
		t.Fatalf("UpdateAction: %v", err)
	}

	if err := s.MarkPendingExpired(); err != nil {
		t.Fatalf("MarkPendingExpired: %v", err)
	}

	records, _, _ := s.Page(1, 20)
	for _, r := range records {
		switch r.Tool {
		case "claude-code":
			if r.Action != ActionExpired {
				t.Fatalf("pending record not expired: %+v", r)
			}
		case "codex":
			if r.Action != ActionBlock {
				t.Fatalf("resolved record must keep its action: %+v", r)
			}
		}
	}
}

func TestCapEvictsOldest(t *testing.T) {
	s := NewStore(t.TempDir())
	for i := 0; i < MaxRecords+10; i++ {
		r := record("claude-code")
		r.ChangedFields = []string{fmt.Sprintf("field-%d", i)}
		if err := s.Add(r); err != nil {
			t.Fatalf("Add %d: %v", i, err)
		}
	}

	records, total, err := s.Page(1, MaxRecords+10)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if total != MaxRecords {
		t.Fatalf("total=%d want %d", total, MaxRecords)
	}
	newest := fmt.Sprintf("field-%d", MaxRecords+9)
	if records[0].ChangedFields[0] != newest {
		t.Fatalf("newest record evicted: %+v", records[0].ChangedFields)
	}
}

func TestPaging(t *testing.T) {
	s := NewStore(t.TempDir())
	for i := 0; i < 25; i++ {
		r := record("codex")
		r.ChangedFields = []string{fmt.Sprintf("field-%d", i)}
		if err := s.Add(r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	page1, total, err := s.Page(1, 10)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if total != 25 || len(page1) != 10 {
		t.Fatalf("total=%d len=%d", total, len(page1))
	}
	if page1[0].ChangedFields[0] != "field-24" {
		t.Fatalf("page 1 not newest first: %+v", page1[0].ChangedFields)
	}

	page3, _, err := s.Page(3, 10)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page3) != 5 {
		t.Fatalf("page 3 len=%d want 5", len(page3))
	}

	page4, _, err := s.Page(4, 10)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if len(page4) != 0 {
		t.Fatalf("page past the end must be empty, got %d", len(page4))
	}
}

func TestRecent(t *testing.T) {
	s := NewStore(t.TempDir())
	for i := 0; i < 3; i++ {
		r := record("codex")
		r.ChangedFields = []string{fmt.Sprintf("codex-field-%d", i)}
		if err := s.Add(r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := s.Add(record("claude-code")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	records, err := s.Recent("codex", 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len=%d want 2", len(records))
	}
	for _, r := range records {
		if r.Tool != "codex" {
			t.Fatalf("foreign record in filtered result: %+v", r)
		}
	}
	if records[0].ChangedFields[0] != "codex-field-2" {
		t.Fatalf("not newest first: %+v", records[0].ChangedFields)
	}

	all, err := s.Recent("", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("unfiltered len=%d want 4", len(all))
	}
	if all[0].Tool != "claude-code" {
		t.Fatalf("unfiltered not newest first: %+v", all[0])
	}
}

func TestClearTool(t *testing.T) {
	s := NewStore(t.TempDir())
	if err := s.Add(record("codex")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(record("claude-code")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.ClearTool("codex"); err != nil {
		t.Fatalf("ClearTool: %v", err)
	}
	records, total, _ := s.Page(1, 20)
	if total != 1 || records[0].Tool != "claude-code" {
		t.Fatalf("unexpected records after ClearTool: %+v", records)
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	_, total, _ = s.Page(1, 20)
	if total != 0 {
		t.Fatalf("records survived ClearAll: %d", total)
	}
}
