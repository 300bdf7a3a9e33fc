package core

// CategoryIndex maps category ids to their display titles.
type CategoryIndex map[string]string

// BuildCategoryIndex builds a fresh index covering exactly the given
// categories. Later entries win over earlier ones with the same id and
// entries without an id are skipped.
func BuildCategoryIndex(categories []Category) CategoryIndex {
	index := make(CategoryIndex, len(categories))
	for _, c := range categories {
		if c.ID == "" {
			continue
		}
		index[c.ID] = c.Title
	}
	return index
}

// Title looks up the title for id. Unknown ids report false.
func (ix CategoryIndex) Title(id string) (string, bool) {
	title, ok := ix[id]
	return title, ok
}

// TitleOr returns the title for id, or fallback when the id is unknown.
func (ix CategoryIndex) TitleOr(id, fallback string) string {
	if title, ok := ix[id]; ok {
		return title
	}
	return fallback
}
