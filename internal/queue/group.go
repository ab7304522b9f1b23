package queue

import "github.com/roach88/learnsync/internal/model"

// Group is the batch of queued items sharing one type.
type Group struct {
	Type  model.ItemType
	Items []model.SyncItem
}

// Groups is an ordered partition of queued items by type.
// Types appear in the order they were first observed.
type Groups []Group

// GroupByType partitions items by type. Every item appears in exactly one
// group and keeps its relative order.
func GroupByType(items []model.SyncItem) Groups {
	var groups Groups
	index := make(map[model.ItemType]int)
	for _, it := range items {
		i, ok := index[it.Type]
		if !ok {
			i = len(groups)
			index[it.Type] = i
			groups = append(groups, Group{Type: it.Type})
		}
		groups[i].Items = append(groups[i].Items, it)
	}
	return groups
}

// Get returns the items of type t, or nil.
func (g Groups) Get(t model.ItemType) []model.SyncItem {
	for _, grp := range g {
		if grp.Type == t {
			return grp.Items
		}
	}
	return nil
}

// Types returns the group types in order.
func (g Groups) Types() []model.ItemType {
	out := make([]model.ItemType, len(g))
	for i, grp := range g {
		out[i] = grp.Type
	}
	return out
}

// Map returns the mapping view of the partition.
func (g Groups) Map() map[model.ItemType][]model.SyncItem {
	out := make(map[model.ItemType][]model.SyncItem, len(g))
	for _, grp := range g {
		out[grp.Type] = grp.Items
	}
	return out
}

// Total returns the number of items across all groups.
func (g Groups) Total() int {
	n := 0
	for _, grp := range g {
		n += len(grp.Items)
	}
	return n
}
