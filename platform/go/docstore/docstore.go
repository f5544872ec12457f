// Package docstore defines the partial-write vocabulary shared by the
// document repositories. Services describe a mutation as a list of field
// updates with delete and server-timestamp sentinels; each repository
// translates the list into its backend's native form.
package docstore

import (
	"time"

	"cloud.google.com/go/firestore"
)

type sentinel int

const (
	// Delete removes the field from the document.
	Delete sentinel = iota
	// ServerTimestamp stores the write time as observed by the store.
	ServerTimestamp
)

// Update sets, deletes, or stamps a single top-level field.
type Update struct {
	Field string
	Value any
}

// Set builds a plain field write.
func Set(field string, value any) Update {
	return Update{Field: field, Value: value}
}

// Del builds a field deletion.
func Del(field string) Update {
	return Update{Field: field, Value: Delete}
}

// Stamp builds a server-timestamp write.
func Stamp(field string) Update {
	return Update{Field: field, Value: ServerTimestamp}
}

// ToFirestore maps the updates onto the Firestore client's update form.
func ToFirestore(updates []Update) []firestore.Update {
	out := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		fu := firestore.Update{Path: u.Field}
		switch u.Value {
		case Delete:
			fu.Value = firestore.Delete
		case ServerTimestamp:
			fu.Value = firestore.ServerTimestamp
		default:
			fu.Value = u.Value
		}
		out = append(out, fu)
	}
	return out
}

// ApplyToDoc applies the updates to an in-memory document, resolving
// ServerTimestamp to now. Used by the memory repositories and their tests.
func ApplyToDoc(doc map[string]any, updates []Update, now time.Time) {
	for _, u := range updates {
		switch u.Value {
		case Delete:
			delete(doc, u.Field)
		case ServerTimestamp:
			doc[u.Field] = now
		default:
			doc[u.Field] = u.Value
		}
	}
}
