package catalog

import "fmt"

const (
	novelVolumes = 2
	mangaVolumes = 5
)

// DefaultItems returns the stock catalog: a two volume novel series and a
// five volume manga series.
func DefaultItems() []Item {
	items := make([]Item, 0, novelVolumes+mangaVolumes)
	novelEmoji := []string{"📕", "📗"}
	for i := 1; i <= novelVolumes; i++ {
		items = append(items, Item{
			ID:              fmt.Sprintf("novel-%d", i),
			Name:            fmt.Sprintf("Light Novel Vol.%d", i),
			Category:        CategoryNovel,
			SeriesNumber:    i,
			PurchasePrice:   200,
			IndividualPrice: 150,
			SetPrice:        1000,
			Emoji:           novelEmoji[i-1],
		})
	}
	for i := 1; i <= mangaVolumes; i++ {
		items = append(items, Item{
			ID:              fmt.Sprintf("manga-%d", i),
			Name:            fmt.Sprintf("Manga Vol.%d", i),
			Category:        CategoryManga,
			SeriesNumber:    i,
			PurchasePrice:   100,
			IndividualPrice: 50,
			SetPrice:        2500,
			Emoji:           "📘",
		})
	}
	return items
}

func Default() *Catalog {
	c, err := New(DefaultItems())
	if err != nil {
		panic(fmt.Sprintf("default catalog is invalid: %v", err))
	}
	return c
}
