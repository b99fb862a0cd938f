package models

import "fmt"

// Kind names one of the three entity collections.
type Kind string

const (
	KindUser    Kind = "user"
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

// Kinds lists every entity kind in a stable order.
var Kinds = []Kind{KindUser, KindPost, KindComment}

// Entity is a stored User, Post or Comment.
//
// Rev is an optimistic-concurrency revision owned by the store: it is bumped on
// every committed update and never exposed to callers.
type Entity interface {
	EntityKind() Kind
	EntityID() string
	Revision() int64
	SetRevision(rev int64)
	// Attr returns a scalar or reference field by its stored name, used by
	// stores that filter in memory.
	Attr(name string) (string, bool)
	Clone() Entity
}

// New returns an empty entity of the given kind, ready to be decoded into.
func New(kind Kind) (Entity, error) {
	switch kind {
	case KindUser:
		return &User{}, nil
	case KindPost:
		return &Post{}, nil
	case KindComment:
		return &Comment{}, nil
	}
	return nil, fmt.Errorf("unknown entity kind %q", kind)
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
