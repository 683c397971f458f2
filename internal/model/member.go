package model

// ContactInfo holds a member's optional contact details.
type ContactInfo struct {
	Phone *string `json:"phone"`
	Email *string `json:"email"`
	Note  *string `json:"note"`
}

// Member is the canonical member entity as the remote API returns it.
type Member struct {
	ID       int64       `json:"id"`
	Name     string      `json:"name"`
	Part     string      `json:"part"`
	Position string      `json:"position"`
	Contact  ContactInfo `json:"contact"`
}

// MemberRecord is the local mirror of a member, tagged with its sync status.
// The tag never travels to the remote API.
type MemberRecord struct {
	Member
	SyncStatus SyncStatus `json:"-"`
}

// MemberInput is the payload for creating a member.
type MemberInput struct {
	Name     string      `json:"name"`
	Part     string      `json:"part"`
	Position string      `json:"position"`
	Contact  ContactInfo `json:"contact"`
}

// Validate checks required fields after trimming.
func (in MemberInput) Validate() error {
	if err := requireNonEmpty("member name", in.Name); err != nil {
		return err
	}
	if err := requireNonEmpty("member part", in.Part); err != nil {
		return err
	}
	return requireNonEmpty("member position", in.Position)
}

// MemberUpdate is a partial update; nil fields are left unchanged.
type MemberUpdate struct {
	Name     *string      `json:"name,omitempty"`
	Part     *string      `json:"part,omitempty"`
	Position *string      `json:"position,omitempty"`
	Contact  *ContactInfo `json:"contact,omitempty"`
}

// Validate checks that provided fields are non-empty after trimming.
func (u MemberUpdate) Validate() error {
	if u.Name != nil {
		if err := requireNonEmpty("member name", *u.Name); err != nil {
			return err
		}
	}
	if u.Part != nil {
		if err := requireNonEmpty("member part", *u.Part); err != nil {
			return err
		}
	}
	if u.Position != nil {
		if err := requireNonEmpty("member position", *u.Position); err != nil {
			return err
		}
	}
	return nil
}

// Apply merges the update into a member in place.
func (u MemberUpdate) Apply(m *Member) {
	if u.Name != nil {
		m.Name = *u.Name
	}
	if u.Part != nil {
		m.Part = *u.Part
	}
	if u.Position != nil {
		m.Position = *u.Position
	}
	if u.Contact != nil {
		m.Contact = *u.Contact
	}
}
