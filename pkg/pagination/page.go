package pagination

// ItemSummary is one entry of a listing page. Campaign listings only fill
// ID and Name; library file listings also carry URL and Folder.
type ItemSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Folder string `json:"folder,omitempty"`
}

// Page is one decoded listing response.
type Page struct {
	Results []ItemSummary `json:"results"`
	Meta    *Meta         `json:"meta"`
}

// Meta is the metadata block of a page.
type Meta struct {
	Pagination *Pagination `json:"pagination"`
}

// Pagination holds the link to the following page; nil when absent or null.
type Pagination struct {
	NextLink *string `json:"next_link"`
}

// HasPaginationBlock reports whether meta.pagination was present.
func (p Page) HasPaginationBlock() bool {
	return p.Meta != nil && p.Meta.Pagination != nil
}
