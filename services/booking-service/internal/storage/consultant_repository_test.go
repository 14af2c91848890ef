package storage

import (
	"context"
	"errors"
	"testing"
)

// public_id is a uuid column; a malformed identifier must come back as
// ErrNotFound instead of hitting the bind layer and surfacing a 5xx.
func TestConsultantLookup_MalformedPublicID(t *testing.T) {
	// nil pool: the guard has to reject before any query is issued.
	r := NewConsultantRepository(nil)
	ctx := context.Background()

	for _, id := range []string{"", "abc", "11111111-2222", "xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx"} {
		if _, err := r.GetActiveByPublicID(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetActiveByPublicID(%q) = %v, want ErrNotFound", id, err)
		}
		if _, err := r.GetByPublicID(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByPublicID(%q) = %v, want ErrNotFound", id, err)
		}
		if _, err := r.SetActiveByPublicID(ctx, id, true); !errors.Is(err, ErrNotFound) {
			t.Errorf("SetActiveByPublicID(%q) = %v, want ErrNotFound", id, err)
		}
	}
}
