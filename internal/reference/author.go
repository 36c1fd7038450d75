package reference

// Author is a cached Scopus author identity.
//
// A non-nil BaseID marks the row as an alias of the author whose ScopusID
// equals BaseID. Aliases never point at other aliases.
type Author struct {
	ScopusID  int64  `json:"scopus_id"`
	GivenName string `json:"given_name"`
	Surname   string `json:"surname"`
	BaseID    *int64 `json:"base_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// IsAlias reports whether the author points at a canonical author.
func (a Author) IsAlias() bool {
	return a.BaseID != nil
}

// CanonicalID returns the id of the group's canonical author.
func (a Author) CanonicalID() int64 {
	if a.BaseID != nil {
		return *a.BaseID
	}
	return a.ScopusID
}
