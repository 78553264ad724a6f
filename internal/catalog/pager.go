package catalog

import "github.com/iamwavecut/sellvibe/internal/db"

// PageSize is the number of servers shown per selection keyboard.
const PageSize = 5

type Page struct {
	Servers []db.Server
	Index   int
	HasPrev bool
	HasNext bool
}

// Paginate slices a catalog snapshot into the requested page, ordered as
// given (the store returns insertion order). Out-of-range indexes are clamped
// to the last page, so a shrinking catalog never yields an empty view while
// servers remain.
func Paginate(servers []db.Server, page int) Page {
	last := LastPage(len(servers))
	if page < 0 {
		page = 0
	}
	if page > last {
		page = last
	}

	start := page * PageSize
	end := start + PageSize
	if start > len(servers) {
		start = len(servers)
	}
	if end > len(servers) {
		end = len(servers)
	}

	return Page{
		Servers: servers[start:end],
		Index:   page,
		HasPrev: page > 0,
		HasNext: end < len(servers),
	}
}

// LastPage returns the highest valid page index for a catalog of n servers.
func LastPage(n int) int {
	if n <= 0 {
		return 0
	}
	return (n - 1) / PageSize
}
