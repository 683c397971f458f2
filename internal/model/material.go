package model

// Material is the canonical material entity as the remote API returns it.
type Material struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Part     string `json:"part"`
	Quantity int64  `json:"quantity"`
}

// MaterialRecord is the local mirror of a material, tagged with its sync
// status.
type MaterialRecord struct {
	Material
	SyncStatus SyncStatus `json:"-"`
}

// MaterialInput is the payload for creating a material.
type MaterialInput struct {
	Name     string `json:"name"`
	Part     string `json:"part"`
	Quantity int64  `json:"quantity"`
}

// Validate checks required fields and the non-negative quantity invariant.
func (in MaterialInput) Validate() error {
	if err := requireNonEmpty("material name", in.Name); err != nil {
		return err
	}
	if err := requireNonEmpty("material part", in.Part); err != nil {
		return err
	}
	if in.Quantity < 0 {
		return &ValidationError{Field: "material quantity", Reason: "must not be negative"}
	}
	return nil
}

// MaterialUpdate is a partial update; nil fields are left unchanged.
type MaterialUpdate struct {
	Name     *string `json:"name,omitempty"`
	Part     *string `json:"part,omitempty"`
	Quantity *int64  `json:"quantity,omitempty"`
}

// Validate checks that provided fields satisfy the create-time invariants.
func (u MaterialUpdate) Validate() error {
	if u.Name != nil {
		if err := requireNonEmpty("material name", *u.Name); err != nil {
			return err
		}
	}
	if u.Part != nil {
		if err := requireNonEmpty("material part", *u.Part); err != nil {
			return err
		}
	}
	if u.Quantity != nil && *u.Quantity < 0 {
		return &ValidationError{Field: "material quantity", Reason: "must not be negative"}
	}
	return nil
}

// Apply merges the update into a material in place.
func (u MaterialUpdate) Apply(m *Material) {
	if u.Name != nil {
		m.Name = *u.Name
	}
	if u.Part != nil {
		m.Part = *u.Part
	}
	if u.Quantity != nil {
		m.Quantity = *u.Quantity
	}
}
