// Package grouping partitions reading-list items into named batches: items by
// the same author and site are kept together, everything else is cut into
// chunks of roughly one hour of reading.
package grouping

import (
	"slices"

	"github.com/Sternrassler/readwise-epub/pkg/readwise"
)

// DefaultChunkWords is the word budget of one remainder chunk (about an hour
// of reading).
const DefaultChunkWords = 8000

// DateLayout names chunk batches after the first item's update date.
const DateLayout = "2006-01-02"

// Kind tells how a batch was formed.
type Kind string

const (
	// KindAffinity batches share author and/or site.
	KindAffinity Kind = "affinity"

	// KindChunk batches are word-count bounded runs of unrelated items.
	KindChunk Kind = "chunk"
)

// Batch is one named group of items rendered into one output file.
type Batch struct {
	Name  string
	Kind  Kind
	Items []readwise.Item
}

// URLs returns the source URLs of the batch in order.
func (b Batch) URLs() []string {
	urls := make([]string, len(b.Items))
	for i, item := range b.Items {
		urls[i] = item.SourceURL
	}
	return urls
}

// WordCount sums the word counts of the batch.
func (b Batch) WordCount() int {
	total := 0
	for _, item := range b.Items {
		total += item.WordCount
	}
	return total
}

// Options tune the grouping.
type Options struct {
	// ChunkWords closes a remainder chunk once its total reaches this value.
	ChunkWords int
}

// DefaultOptions returns the default grouping options.
func DefaultOptions() Options {
	return Options{ChunkWords: DefaultChunkWords}
}

// SortByUpdated stable-sorts items ascending by UpdatedAt in place.
func SortByUpdated(items []readwise.Item) {
	slices.SortStableFunc(items, func(a, b readwise.Item) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})
}

// Group sorts a copy of items by UpdatedAt and splits it into batches:
// affinity batches first in discovery order, then remainder chunks in order.
// Every item lands in exactly one batch.
func Group(items []readwise.Item, opts Options) []Batch {
	if opts.ChunkWords <= 0 {
		opts.ChunkWords = DefaultChunkWords
	}

	sorted := slices.Clone(items)
	SortByUpdated(sorted)

	batches, remainder := groupByAffinity(sorted)
	return append(batches, chunkRemainder(remainder, opts.ChunkWords)...)
}
