package settlement

import (
	"github.com/riskibarqy/point-farm/internal/domain/catalog"
	"github.com/riskibarqy/point-farm/internal/domain/player"
)

// SetInfo summarizes one category of a player's collection.
type SetInfo struct {
	Category        catalog.Category
	IsComplete      bool
	Items           []catalog.Item
	IndividualValue int64
	SetBonus        int64
}

// Value is what the category pays out: the set price when complete,
// otherwise the summed individual prices.
func (s SetInfo) Value() int64 {
	if s.IsComplete {
		return s.SetBonus
	}
	return s.IndividualValue
}

// Summary is the settlement breakdown for one player.
type Summary struct {
	Sets  []SetInfo
	Total int64
}

// Calculate derives per-category set info from owned items.
func Calculate(c *catalog.Catalog, owned []player.OwnedItem) Summary {
	ownedByID := make(map[string]catalog.Item, len(owned))
	for _, o := range owned {
		ownedByID[o.Item.ID] = o.Item
	}

	out := Summary{Sets: make([]SetInfo, 0, len(catalog.AllCategories))}
	for _, category := range catalog.AllCategories {
		info := SetInfo{Category: category}
		catalogItems := c.ItemsInCategory(category)
		for _, item := range catalogItems {
			ownedItem, ok := ownedByID[item.ID]
			if !ok {
				continue
			}
			info.Items = append(info.Items, ownedItem)
			info.IndividualValue += ownedItem.IndividualPrice
		}

		info.IsComplete = len(catalogItems) > 0 && len(info.Items) == len(catalogItems)
		if info.IsComplete {
			info.SetBonus = catalogItems[0].SetPrice
		}

		out.Sets = append(out.Sets, info)
		out.Total += info.Value()
	}

	return out
}
