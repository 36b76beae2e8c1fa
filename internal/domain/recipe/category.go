package recipe

// Category is the backend category enum. The backend stores the English
// value; the UI shows the Italian display name.
type Category string

// Backend category values. These five form a fixed bijection with the five
// display categories; anything else is a legacy value shown verbatim.
const (
	CategoryBreadPizza  Category = "Bread & Pizza"
	CategoryPastaDishes Category = "Pasta Dishes"
	CategoryMeatPoultry Category = "Meat & Poultry"
	CategoryDesserts    Category = "Desserts"
	CategoryFish        Category = "Fish"
)

// Italian display names.
const (
	DisplayBreadPizza  = "Pane & Pizza"
	DisplayPastaDishes = "Primi Piatti"
	DisplayMeatPoultry = "Carne & Pollame"
	DisplayDesserts    = "Dolci"
	DisplayFish        = "Pesce"
)

var displayToBackend = map[string]Category{
	DisplayBreadPizza:  CategoryBreadPizza,
	DisplayPastaDishes: CategoryPastaDishes,
	DisplayMeatPoultry: CategoryMeatPoultry,
	DisplayDesserts:    CategoryDesserts,
	DisplayFish:        CategoryFish,
}

var backendToDisplay = map[Category]string{
	CategoryBreadPizza:  DisplayBreadPizza,
	CategoryPastaDishes: DisplayPastaDishes,
	CategoryMeatPoultry: DisplayMeatPoultry,
	CategoryDesserts:    DisplayDesserts,
	CategoryFish:        DisplayFish,
}

// Categories returns the five backend categories in display order.
func Categories() []Category {
	return []Category{
		CategoryBreadPizza,
		CategoryPastaDishes,
		CategoryMeatPoultry,
		CategoryDesserts,
		CategoryFish,
	}
}

// CategoryFromDisplay translates an Italian display name to the backend
// enum. Unknown names pass through unchanged so legacy values keep working.
func CategoryFromDisplay(display string) Category {
	if c, ok := displayToBackend[display]; ok {
		return c
	}
	return Category(display)
}

// Display returns the Italian display name for the category. Unrecognized
// categories are shown verbatim rather than dropped.
func (c Category) Display() string {
	if d, ok := backendToDisplay[c]; ok {
		return d
	}
	return string(c)
}

// Known reports whether the category is one of the five current values.
func (c Category) Known() bool {
	_, ok := backendToDisplay[c]
	return ok
}

// CountMap maps backend categories to recipe counts. The counts endpoint is
// decorative: it is fetched once, independent of active filters, and a
// failed fetch yields a zero map.
type CountMap map[Category]int

// ZeroCounts returns a map with every known category at zero.
func ZeroCounts() CountMap {
	m := make(CountMap, 5)
	for _, c := range Categories() {
		m[c] = 0
	}
	return m
}
