// Package qdrant wraps the official Qdrant gRPC client with retries, timeouts
// and the small point/filter model the vector index needs.
package qdrant

import (
	"context"
)

// Client is the subset of Qdrant the tenant chunk index uses.
type Client interface {
	// Collection operations
	CreateCollection(ctx context.Context, name string, vectorSize uint64) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	CreateKeywordIndex(ctx context.Context, collection, field string) error

	// Point operations
	Upsert(ctx context.Context, collection string, points []*Point) error
	Search(ctx context.Context, collection string, vector []float32, limit uint64, threshold float32, filter *Filter) ([]*ScoredPoint, error)
	Scroll(ctx context.Context, collection string, filter *Filter, limit uint32, offset string) ([]*Point, string, error)
	DeleteByFilter(ctx context.Context, collection string, filter *Filter) error

	Health(ctx context.Context) error
	Close() error
}

// Point represents a vector point in Qdrant.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// ScoredPoint represents a search result with score.
type ScoredPoint struct {
	Point
	Score float32
}

// Filter is a conjunction of keyword conditions.
type Filter struct {
	Must []Condition
}

// Condition matches a payload field against one keyword, or any of several.
type Condition struct {
	Field    string
	Match    string
	MatchAny []string
}

// MatchKeyword returns a single-keyword condition.
func MatchKeyword(field, value string) Condition {
	return Condition{Field: field, Match: value}
}

// MatchAnyKeyword returns a condition satisfied by any of values.
func MatchAnyKeyword(field string, values ...string) Condition {
	return Condition{Field: field, MatchAny: values}
}
