package domain

// Member represents user's participation meta for a party.
// No transport or lifecycle logic here.
type Member struct {
	User *User
	// Ready reports whether the member's player has loaded the current
	// content and can accept seeks.
	Ready bool
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User) *Member {
	return &Member{User: user}
}
