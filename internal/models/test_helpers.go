package models

// NewTestBillboard returns a live, untargeted in-house billboard for area.
func NewTestBillboard(id int, area string) Billboard {
	return Billboard{
		ID:             id,
		Name:           "test billboard",
		Approved:       true,
		Published:      true,
		PlacementArea:  area,
		DisplayTo:      DisplayToAll,
		TypeOf:         TypeInHouse,
		BrowserContext: BrowserAllBrowsers,
		ProcessedHTML:  "<p>test</p>",
	}
}

// NewTestBillboardStore creates an in-memory store holding billboards.
func NewTestBillboardStore(billboards ...Billboard) *InMemoryBillboardStore {
	s := NewInMemoryBillboardStore()
	_ = s.ReloadAll(billboards)
	return s
}
