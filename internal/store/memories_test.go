package store

import (
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGetMemory(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateMemory("gym closes early on sundays", "logistics", []string{"gym"})
	if err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if created.ID == 0 {
		t.Error("expected assigned id")
	}

	got, err := db.GetMemory(created.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got == nil {
		t.Fatal("memory not found")
	}
	if got.Content != "gym closes early on sundays" || got.Category != "logistics" {
		t.Errorf("memory = %+v", got)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "gym" {
		t.Errorf("tags = %v", got.Tags)
	}
}

func TestGetMemoryMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetMemory(999)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if got != nil {
		t.Errorf("got = %+v, want nil", got)
	}
}

func TestCreateMemoryDefaults(t *testing.T) {
	db := testDB(t)

	m, err := db.CreateMemory("note", "", nil)
	if err != nil {
		t.Fatalf("CreateMemory: %v", err)
	}
	if m.Category != "general" {
		t.Errorf("category = %q, want general", m.Category)
	}
	if m.Tags == nil {
		t.Error("tags should default to empty slice, not nil")
	}
}

func TestListMemoriesByCategory(t *testing.T) {
	db := testDB(t)

	db.CreateMemory("a", "health", nil)
	db.CreateMemory("b", "health", nil)
	db.CreateMemory("c", "work", nil)

	health, err := db.ListMemories("health", 0)
	if err != nil {
		t.Fatalf("ListMemories: %v", err)
	}
	if len(health) != 2 {
		t.Errorf("health memories = %d, want 2", len(health))
	}

	all, err := db.ListMemories("", 0)
	if err != nil {
		t.Fatalf("ListMemories all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all memories = %d, want 3", len(all))
	}
}

func TestUpdateMemory(t *testing.T) {
	db := testDB(t)

	m, _ := db.CreateMemory("draft", "work", nil)

	updated, err := db.UpdateMemory(m.ID, "final", "work", []string{"done"})
	if err != nil {
		t.Fatalf("UpdateMemory: %v", err)
	}
	if updated == nil || updated.Content != "final" {
		t.Errorf("updated = %+v", updated)
	}

	missing, err := db.UpdateMemory(999, "x", "y", nil)
	if err != nil {
		t.Fatalf("UpdateMemory missing: %v", err)
	}
	if missing != nil {
		t.Errorf("updating a missing memory returned %+v", missing)
	}
}

func TestDeleteMemory(t *testing.T) {
	db := testDB(t)

	m, _ := db.CreateMemory("temp", "", nil)

	ok, err := db.DeleteMemory(m.ID)
	if err != nil {
		t.Fatalf("DeleteMemory: %v", err)
	}
	if !ok {
		t.Error("expected delete to report existing row")
	}

	ok, err = db.DeleteMemory(m.ID)
	if err != nil {
		t.Fatalf("second DeleteMemory: %v", err)
	}
	if ok {
		t.Error("second delete should report missing row")
	}
}

func TestAppendAndReadTriggers(t *testing.T) {
	db := testDB(t)

	records := []TriggerRecord{
		{Action: "vibrate", Intensity: 40, Duration: 2, Allowed: true, Outcome: OutcomeSent},
		{Action: "shock", Intensity: 10, Duration: 1, Allowed: false, Outcome: OutcomeBlocked, Detail: "cooldown"},
		{Action: "shock", Intensity: 10, Duration: 1, Allowed: true, Outcome: OutcomeFailed, Detail: "device offline"},
	}
	for _, rec := range records {
		if err := db.AppendTrigger(rec); err != nil {
			t.Fatalf("AppendTrigger: %v", err)
		}
	}

	got, err := db.RecentTriggers(10)
	if err != nil {
		t.Fatalf("RecentTriggers: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	// Newest first.
	if got[0].Outcome != OutcomeFailed || got[0].Detail != "device offline" {
		t.Errorf("latest = %+v", got[0])
	}
	if got[1].Allowed {
		t.Error("blocked record lost its allowed=false flag")
	}

	limited, err := db.RecentTriggers(1)
	if err != nil {
		t.Fatalf("RecentTriggers limited: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit ignored: got %d", len(limited))
	}
}

func TestSearchMemories(t *testing.T) {
	db := testDB(t)

	for _, content := range []string{
		"gym closed on public holidays",
		"dentist prefers morning appointments",
		"holiday cottage booking code 4417",
	} {
		if _, err := db.CreateMemory(content, "", nil); err != nil {
			t.Fatalf("CreateMemory: %v", err)
		}
	}

	got, err := db.SearchMemories("holiday", 0)
	if err != nil {
		t.Fatalf("SearchMemories: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}

	got, err = db.SearchMemories("submarine", 0)
	if err != nil {
		t.Fatalf("SearchMemories: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d matches, want 0", len(got))
	}
}
