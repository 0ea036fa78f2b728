package indexer

import (
	"context"

	"treasurySync/internal/storage"
)

// ResolveCursor returns the inclusive first block to scan for a treasury.
// An override always wins; otherwise the scan resumes after the highest stored block.
func ResolveCursor(ctx context.Context, store storage.CursorStore, treasuryID string, override *uint64) (uint64, error) {
	if override != nil {
		return *override, nil
	}

	last, ok, err := store.MaxBlockNumber(ctx, treasuryID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return last + 1, nil
}
