package catalog

import (
	"errors"
	"fmt"
	"sort"
)

var ErrItemNotFound = errors.New("catalog item not found")

// Category groups items that form a collectible set.
type Category string

const (
	CategoryNovel Category = "novel"
	CategoryManga Category = "manga"
)

var AllCategories = []Category{CategoryNovel, CategoryManga}

// Item is an immutable catalog entry.
type Item struct {
	ID              string
	Name            string
	Category        Category
	SeriesNumber    int
	PurchasePrice   int64
	IndividualPrice int64
	SetPrice        int64
	Emoji           string
}

func (i Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item id is required")
	}
	if i.Name == "" {
		return fmt.Errorf("item name is required: %s", i.ID)
	}
	switch i.Category {
	case CategoryNovel, CategoryManga:
	default:
		return fmt.Errorf("invalid item category: %s", i.Category)
	}
	if i.SeriesNumber <= 0 {
		return fmt.Errorf("item series number must be greater than zero: %s", i.ID)
	}
	if i.IndividualPrice < 0 || i.SetPrice < 0 {
		return fmt.Errorf("item liquidation values must not be negative: %s", i.ID)
	}

	return nil
}

// Catalog is the loaded item table. It is never mutated after construction.
type Catalog struct {
	items []Item
	byID  map[string]Item
}

func New(items []Item) (*Catalog, error) {
	c := &Catalog{
		items: make([]Item, 0, len(items)),
		byID:  make(map[string]Item, len(items)),
	}
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.byID[item.ID]; exists {
			return nil, fmt.Errorf("duplicate catalog item: %s", item.ID)
		}
		c.items = append(c.items, item)
		c.byID[item.ID] = item
	}

	sort.SliceStable(c.items, func(i, j int) bool {
		if c.items[i].Category != c.items[j].Category {
			return c.items[i].Category < c.items[j].Category
		}
		return c.items[i].SeriesNumber < c.items[j].SeriesNumber
	})

	return c, nil
}

func (c *Catalog) Items() []Item {
	return append([]Item(nil), c.items...)
}

func (c *Catalog) Lookup(itemID string) (Item, error) {
	item, ok := c.byID[itemID]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	return item, nil
}

func (c *Catalog) ItemsInCategory(category Category) []Item {
	out := make([]Item, 0)
	for _, item := range c.items {
		if item.Category == category {
			out = append(out, item)
		}
	}
	return out
}
