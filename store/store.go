// Package store holds the MongoDB-backed repositories. Every state
// transition the lifecycle machine performs is a conditional update here
// (predicated on the expected prior status), and stock movements are atomic
// $inc operations guarded by availability filters. Callers never do plain
// read-then-write for anything two requests may race on.
package store

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound          = errors.New("store: not found")
	ErrInsufficientStock = errors.New("store: insufficient stock")
	ErrDuplicate         = errors.New("store: duplicate")
)

func isDuplicateKey(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}
