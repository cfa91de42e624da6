package grouping

import (
	"github.com/Sternrassler/readwise-epub/pkg/readwise"
)

// affinityKey identifies an (author, site) partition. Absent and empty values
// are distinct.
type affinityKey struct {
	author    string
	hasAuthor bool
	site      string
	hasSite   bool
}

func keyOf(item readwise.Item) affinityKey {
	return affinityKey{
		author:    readwise.StringValue(item.Author),
		hasAuthor: item.Author != nil,
		site:      readwise.StringValue(item.SiteName),
		hasSite:   item.SiteName != nil,
	}
}

// promotable reports whether a partition of size n becomes its own batch.
func (k affinityKey) promotable(n int) bool {
	return (k.hasAuthor || k.hasSite) && n > 1
}

// name returns "author - site", or whichever of the two is present.
func (k affinityKey) name() string {
	switch {
	case k.hasAuthor && k.hasSite:
		return k.author + " - " + k.site
	case k.hasAuthor:
		return k.author
	default:
		return k.site
	}
}

// partitions is an insertion-ordered map from key to items.
type partitions struct {
	order []affinityKey
	items map[affinityKey][]readwise.Item
}

func newPartitions() *partitions {
	return &partitions{items: make(map[affinityKey][]readwise.Item)}
}

func (p *partitions) add(item readwise.Item) {
	key := keyOf(item)
	if _, seen := p.items[key]; !seen {
		p.order = append(p.order, key)
	}
	p.items[key] = append(p.items[key], item)
}

// groupByAffinity promotes multi-item partitions with a known author or site
// to batches. The remaining items are returned in input order.
func groupByAffinity(sorted []readwise.Item) ([]Batch, []readwise.Item) {
	parts := newPartitions()
	for _, item := range sorted {
		parts.add(item)
	}

	var batches []Batch
	promoted := make(map[affinityKey]bool)
	for _, key := range parts.order {
		members := parts.items[key]
		if !key.promotable(len(members)) {
			continue
		}
		promoted[key] = true
		batches = append(batches, Batch{
			Name:  key.name(),
			Kind:  KindAffinity,
			Items: members,
		})
	}

	remainder := make([]readwise.Item, 0, len(sorted))
	for _, item := range sorted {
		if !promoted[keyOf(item)] {
			remainder = append(remainder, item)
		}
	}

	return batches, remainder
}
