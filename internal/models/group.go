package models

// Group is a set of members who share expenses. Membership backs the
// engine's isActiveMember and canSettle predicates.
type Group struct {
	// ID is the unique identifier (UUID format).
	ID string

	// Name is the display name.
	Name string

	// CreatedBy is the user who created the group.
	CreatedBy string

	// Members is the list of active member user IDs.
	Members []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether userID is an active member.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
