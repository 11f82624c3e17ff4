package db

import (
	"context"
	"testing"
)

func TestStreamForExport(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for i, id := range []string{"b", "a", "c"} {
		author := "me"
		if id == "c" {
			author = "dad"
		}
		if err := Insert(ctx, db, newTestPost(id, author, "2024-05-17", int64(i))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := SoftDelete(ctx, db, "a"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	collect := func(author string, includeDeleted bool) []string {
		t.Helper()
		rows, err := StreamForExport(ctx, db, author, includeDeleted)
		if err != nil {
			t.Fatalf("StreamForExport failed: %v", err)
		}
		defer rows.Close()
		var ids []string
		for rows.Next() {
			p, err := ScanPostFromRows(rows)
			if err != nil {
				t.Fatalf("ScanPostFromRows failed: %v", err)
			}
			if len(p.Image) == 0 {
				t.Errorf("post %s exported without image", p.ID)
			}
			ids = append(ids, p.ID)
		}
		if err := rows.Err(); err != nil {
			t.Fatalf("rows error: %v", err)
		}
		return ids
	}

	if got := collect("", false); len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("active export = %v, want [b c]", got)
	}
	if got := collect("", true); len(got) != 3 || got[1] != "a" {
		t.Errorf("full export = %v, want [b a c]", got)
	}
	if got := collect("dad", true); len(got) != 1 || got[0] != "c" {
		t.Errorf("author export = %v, want [c]", got)
	}
}

func TestExists(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := Insert(ctx, db, newTestPost("p1", "me", "2024-05-17", 1)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := SoftDelete(ctx, db, "p1"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx failed: %v", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if ok, err := Exists(ctx, tx, "p1"); err != nil || !ok {
		t.Errorf("Exists(p1) = %v, %v; want true", ok, err)
	}
	if ok, err := Exists(ctx, tx, "p2"); err != nil || ok {
		t.Errorf("Exists(p2) = %v, %v; want false", ok, err)
	}

	// Insert accepts a transaction
	if err := Insert(ctx, tx, newTestPost("p2", "me", "2024-05-17", 2)); err != nil {
		t.Fatalf("Insert in tx failed: %v", err)
	}
	if ok, _ := Exists(ctx, tx, "p2"); !ok {
		t.Error("p2 should exist inside the transaction")
	}
}

func TestPurgeDeleted(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"old", "recent", "active"} {
		if err := Insert(ctx, db, newTestPost(id, "me", "2024-05-17", 1)); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := SoftDelete(ctx, db, "recent"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}
	if _, err := db.Exec(`UPDATE posts SET deleted_at = 1 WHERE id = 'old'`); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	days := 7
	n, err := PurgeDeleted(ctx, db, &days)
	if err != nil {
		t.Fatalf("PurgeDeleted failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}

	n, err = PurgeDeleted(ctx, db, nil)
	if err != nil {
		t.Fatalf("PurgeDeleted failed: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}

	if _, err := GetByID(ctx, db, "active", false); err != nil {
		t.Errorf("active post should survive purge: %v", err)
	}
}
