package models

// Message is the sole persisted entity: one row in the chat log.
type Message struct {
	ID     string `json:"id"`
	Author string `json:"author,omitempty"`
	// TS is the creation time in UTC nanoseconds, assigned by the store at
	// insert. It is the single ordering key for the log.
	TS   int64  `json:"ts"`
	Body string `json:"body"`
	// Complete is false only while an AI reply is being generated or after
	// its generation failed. Human posts are always inserted complete.
	Complete bool `json:"complete"`
}
