// Package ir defines the intermediate representation shared by every analysis
// front-end: a flat set of sized items keyed by namespaced identifiers.
package ir

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateItem is returned when an item ID is added twice.
var ErrDuplicateItem = errors.New("duplicate item id")

// Namespace separates the ID spaces of different front-ends so that items
// produced from the same binary by different analyses never collide.
type Namespace uint32

const (
	// NamespaceDWARF holds items keyed by their .debug_info offset.
	NamespaceDWARF Namespace = iota
	// NamespaceSymtab holds items keyed by their symbol table index.
	NamespaceSymtab
)

func (n Namespace) String() string {
	switch n {
	case NamespaceDWARF:
		return "dwarf"
	case NamespaceSymtab:
		return "symtab"
	default:
		return fmt.Sprintf("namespace(%d)", uint32(n))
	}
}

// ID identifies an item within its namespace.
type ID struct {
	Namespace Namespace `json:"namespace"`
	Index     uint64    `json:"index"`
}

// EntryID returns the ID of the index-th entry of namespace ns.
func EntryID(ns Namespace, index uint64) ID {
	return ID{Namespace: ns, Index: index}
}

func (id ID) String() string {
	return fmt.Sprintf("%s:%#x", id.Namespace, id.Index)
}

// Less orders IDs by namespace, then index.
func (id ID) Less(other ID) bool {
	if id.Namespace != other.Namespace {
		return id.Namespace < other.Namespace
	}
	return id.Index < other.Index
}

// Kind classifies what an item's bytes are.
type Kind int

const (
	// KindCode is executable code.
	KindCode Kind = iota
	// KindData is initialized or read-only data.
	KindData
	// KindMisc is everything else.
	KindMisc
)

func (k Kind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindData:
		return "data"
	default:
		return "misc"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "code":
		return KindCode, nil
	case "data":
		return KindData, nil
	case "misc":
		return KindMisc, nil
	default:
		return KindMisc, fmt.Errorf("unknown item kind %q", s)
	}
}

// Item is one sized entity of a binary.
type Item struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Size uint64 `json:"size"`
	Kind Kind   `json:"kind"`
}

// NewItem creates an item.
func NewItem(id ID, name string, size uint64, kind Kind) Item {
	return Item{ID: id, Name: name, Size: size, Kind: kind}
}

// ItemsBuilder collects items from one or more front-ends.
// It is not safe for concurrent use.
type ItemsBuilder struct {
	items map[ID]Item
	order []ID
}

// NewItemsBuilder creates an empty builder.
func NewItemsBuilder() *ItemsBuilder {
	return &ItemsBuilder{items: make(map[ID]Item)}
}

// AddItem appends an item. IDs must be unique.
func (b *ItemsBuilder) AddItem(item Item) error {
	if _, ok := b.items[item.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateItem, item.ID)
	}
	b.items[item.ID] = item
	b.order = append(b.order, item.ID)
	return nil
}

// Len returns the number of items added so far.
func (b *ItemsBuilder) Len() int {
	return len(b.order)
}

// Finish freezes the collected items. The builder must not be used afterwards.
func (b *ItemsBuilder) Finish() *Items {
	list := make([]Item, 0, len(b.order))
	var total uint64
	for _, id := range b.order {
		it := b.items[id]
		list = append(list, it)
		total += it.Size
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].ID.Less(list[j].ID)
	})
	b.items = nil
	b.order = nil
	return &Items{list: list, total: total}
}

// Items is an immutable, ID-ordered set of items.
type Items struct {
	list  []Item
	total uint64
}

// Len returns the number of items.
func (it *Items) Len() int {
	return len(it.list)
}

// TotalSize returns the sum of all item sizes.
func (it *Items) TotalSize() uint64 {
	return it.total
}

// All returns the items in ID order. The returned slice must not be modified.
func (it *Items) All() []Item {
	return it.list
}

// Get looks up an item by ID.
func (it *Items) Get(id ID) (Item, bool) {
	i := sort.Search(len(it.list), func(i int) bool {
		return !it.list[i].ID.Less(id)
	})
	if i < len(it.list) && it.list[i].ID == id {
		return it.list[i], true
	}
	return Item{}, false
}

// BySize returns a copy of the items sorted by descending size, ties broken
// by name and then ID so the order is deterministic.
func (it *Items) BySize() []Item {
	out := make([]Item, len(it.list))
	copy(out, it.list)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.Less(out[j].ID)
	})
	return out
}
