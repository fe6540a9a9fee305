package list

import (
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Document is the opaque payload type the design's example flows push
// through the Linked Container — a bson.D, the same representation the
// teacher's pkg/storage/bson.go uses for row values.
type Document = bson.D

// NewDocument builds a Document from the given fields and stamps it
// with a fresh time-ordered identity, grounded in the teacher's use of
// google/uuid for row/document identity. The id is always the first
// field so a predicate matching on "_id" doesn't need to scan the
// whole element.
func NewDocument(fields ...bson.E) Document {
	doc := make(Document, 0, len(fields)+1)
	doc = append(doc, bson.E{Key: "_id", Value: uuid.Must(uuid.NewV7()).String()})
	doc = append(doc, fields...)
	return doc
}

// Get returns the value stored under key and whether it was present.
func Get(doc Document, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// With returns a copy of doc with key set to value, adding it if
// absent. Documents are small, predicate-matched records, so a linear
// copy-on-write is simpler than a map and matches bson.D's ordered-
// field semantics.
func With(doc Document, key string, value any) Document {
	out := make(Document, 0, len(doc)+1)
	replaced := false
	for _, e := range doc {
		if e.Key == key {
			out = append(out, bson.E{Key: key, Value: value})
			replaced = true
			continue
		}
		out = append(out, e)
	}
	if !replaced {
		out = append(out, bson.E{Key: key, Value: value})
	}
	return out
}
