package grouping

import (
	"github.com/Sternrassler/readwise-epub/pkg/readwise"
)

// chunkRemainder cuts items into consecutive chunks. An item joins the
// current chunk while the chunk's total is below limit; otherwise it opens
// a new chunk. The check uses the total before the item is added.
func chunkRemainder(items []readwise.Item, limit int) []Batch {
	var (
		chunks  [][]readwise.Item
		current []readwise.Item
		total   int
	)

	for _, item := range items {
		if total < limit {
			current = append(current, item)
			total += item.WordCount
			continue
		}
		chunks = append(chunks, current)
		current = []readwise.Item{item}
		total = item.WordCount
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	batches := make([]Batch, 0, len(chunks))
	for _, chunk := range chunks {
		batches = append(batches, Batch{
			Name:  chunk[0].UpdatedAt.Format(DateLayout),
			Kind:  KindChunk,
			Items: chunk,
		})
	}
	return batches
}
