// Package window selects ordered context windows from the message log.
// Storage queries run in descending recency order; the slice is reversed
// exactly once here so callers only ever see chronological order.
package window

import (
	"errors"

	"tanchat/pkg/models"
	"tanchat/pkg/store"
)

// ErrNoUsableContext reports that filtering incomplete messages emptied the
// requested window.
var ErrNoUsableContext = errors.New("no usable context: window contains no complete messages")

func reverse(msgs []models.Message) []models.Message {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}

// Select returns the most recent size messages in chronological order.
func Select(size int) ([]models.Message, error) {
	msgs, err := store.ListRecent(size)
	if err != nil {
		return nil, err
	}
	return reverse(msgs), nil
}

// SelectBefore returns the size messages strictly preceding cutoffTS, in
// chronological order.
func SelectBefore(cutoffTS int64, size int) ([]models.Message, error) {
	msgs, err := store.ListBefore(cutoffTS, size)
	if err != nil {
		return nil, err
	}
	return reverse(msgs), nil
}

func dropIncomplete(msgs []models.Message) ([]models.Message, error) {
	out := msgs[:0]
	for _, m := range msgs {
		if m.Complete {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoUsableContext
	}
	return out, nil
}

// SelectComplete returns the most recent size messages, chronological, with
// incomplete placeholders filtered out. An incomplete placeholder is not
// valid conversational content and is never fed to the generator.
func SelectComplete(size int) ([]models.Message, error) {
	msgs, err := Select(size)
	if err != nil {
		return nil, err
	}
	return dropIncomplete(msgs)
}

// SelectCompleteBefore is SelectBefore with incomplete messages filtered.
func SelectCompleteBefore(cutoffTS int64, size int) ([]models.Message, error) {
	msgs, err := SelectBefore(cutoffTS, size)
	if err != nil {
		return nil, err
	}
	return dropIncomplete(msgs)
}
