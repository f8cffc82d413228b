// Package maintenance implements the administrative log mutations reachable
// only through magic commands or admin endpoints.
package maintenance

import (
	"fmt"

	"tanchat/pkg/logger"
	"tanchat/pkg/store"
)

// BatchGuardBody replaces the newest targeted message's body when a delete
// batch does not match the exact required size.
const BatchGuardBody = "Sorry buddy, there aren't enough messages to do that! Try again :P"

// ResetLog deletes every message and reinserts a single complete seed
// message when seedAuthor is non-empty.
func ResetLog(seedAuthor, seedBody string) error {
	if err := store.Reset(); err != nil {
		return err
	}
	if seedAuthor != "" {
		if _, err := store.Append(seedAuthor, seedBody, true); err != nil {
			return err
		}
	}
	logger.Info("log_reset_with_seed", "seed_author", seedAuthor)
	return nil
}

// DeleteLastBatch deletes exactly batchSize messages: the given ids, or the
// most recent ones when ids is nil. A batch of any other size deletes
// nothing; instead one targeted message is patched with an explanatory
// body. This guards against partial destructive batches.
func DeleteLastBatch(ids []string, batchSize int) error {
	derived := false
	if ids == nil {
		derived = true
		recent, err := store.ListRecent(batchSize)
		if err != nil {
			return err
		}
		for _, m := range recent {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("delete batch: no messages to target")
	}
	if len(ids) != batchSize {
		logger.Warn("delete_batch_size_mismatch", "want", batchSize, "got", len(ids))
		body := BatchGuardBody
		// Derived ids come newest-first, and the guard belongs on the newest
		// row (typically the requesting post itself) so the feedback shows
		// up at the bottom of the chat. Explicit lists patch the last id
		// given.
		target := ids[len(ids)-1]
		if derived {
			target = ids[0]
		}
		return store.Patch(target, &body, nil)
	}
	for _, id := range ids {
		if err := store.Delete(id); err != nil {
			return err
		}
	}
	logger.Info("delete_batch_done", "count", len(ids))
	return nil
}
