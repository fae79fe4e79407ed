package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/AppleFlash/BackgroundRealm/internal/record"
	"github.com/AppleFlash/BackgroundRealm/internal/schema"
)

// testSchema declares a keyed kind, a container kind and a keyless kind.
func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		schema.Kind{Name: "User", PrimaryKey: "id"},
		schema.Kind{Name: "UserContainer", PrimaryKey: "id", Lists: []string{"users"}},
		schema.Kind{Name: "Note"},
	)
	if err != nil {
		t.Fatalf("schema.New() failed: %v", err)
	}
	return s
}

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "test.db"))
	cfg.Schema = testSchema(t)
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func user(id, name string, age int64) record.Object {
	return record.Object{
		"id":   record.String(id),
		"name": record.String(name),
		"age":  record.Int(age),
	}
}

// save writes objs of kind in one transaction.
func save(t *testing.T, s *Store, kind string, policy UpdatePolicy, objs ...record.Object) {
	t.Helper()
	err := s.Update(context.Background(), func(ctx context.Context, tx *Tx) error {
		for _, obj := range objs {
			if err := tx.Save(ctx, kind, obj, policy); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
}

func names(recs []Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i], _ = r.Body.StringField("name")
	}
	return out
}
