package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/nbhd/internal/community"
)

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// mustCreate inserts a community or fails the test.
func mustCreate(t *testing.T, s *Store, id, name string, by community.ActorID, at time.Time) community.Community {
	t.Helper()
	c, err := s.CreateCommunity(context.Background(), community.Community{
		ID:        id,
		Name:      name,
		CreatedBy: by,
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("CreateCommunity(%q) failed: %v", id, err)
	}
	return c
}

func communityIDs(list []community.Community) []string {
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = c.ID
	}
	return out
}
