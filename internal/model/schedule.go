package model

// Schedule is an event timeline owning zero or more tasks.
type Schedule struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	EventDate string `json:"event_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ScheduleInput is the payload for creating a schedule.
type ScheduleInput struct {
	Name      string `json:"name"`
	EventDate string `json:"event_date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Validate checks required fields, timestamp syntax, and start < end.
func (in ScheduleInput) Validate() error {
	if err := requireNonEmpty("schedule name", in.Name); err != nil {
		return err
	}
	if err := requireNonEmpty("schedule event_date", in.EventDate); err != nil {
		return err
	}
	if in.StartTime == "" || in.EndTime == "" {
		return &ValidationError{Field: "schedule times", Reason: "start_time and end_time are required"}
	}
	start, err := ParseTimestamp(in.StartTime)
	if err != nil {
		return &ValidationError{Field: "schedule start_time", Reason: err.Error()}
	}
	end, err := ParseTimestamp(in.EndTime)
	if err != nil {
		return &ValidationError{Field: "schedule end_time", Reason: err.Error()}
	}
	if !start.Before(end) {
		return &ValidationError{Field: "schedule times", Reason: "end_time must be after start_time"}
	}
	return nil
}

// Normalized returns a copy with the name trimmed of surrounding whitespace.
func (in ScheduleInput) Normalized() ScheduleInput {
	in.Name = trimmed(in.Name)
	return in
}

// ScheduleUpdate is a partial update; nil fields are left unchanged.
type ScheduleUpdate struct {
	Name      *string `json:"name,omitempty"`
	EventDate *string `json:"event_date,omitempty"`
	StartTime *string `json:"start_time,omitempty"`
	EndTime   *string `json:"end_time,omitempty"`
}

// Validate checks provided fields. Start/end ordering is only enforced when
// both ends of the interval are part of the update.
func (u ScheduleUpdate) Validate() error {
	if u.Name != nil {
		if err := requireNonEmpty("schedule name", *u.Name); err != nil {
			return err
		}
	}
	if u.StartTime != nil {
		if _, err := ParseTimestamp(*u.StartTime); err != nil {
			return &ValidationError{Field: "schedule start_time", Reason: err.Error()}
		}
	}
	if u.EndTime != nil {
		if _, err := ParseTimestamp(*u.EndTime); err != nil {
			return &ValidationError{Field: "schedule end_time", Reason: err.Error()}
		}
	}
	if u.StartTime != nil && u.EndTime != nil {
		start, _ := ParseTimestamp(*u.StartTime)
		end, _ := ParseTimestamp(*u.EndTime)
		if !start.Before(end) {
			return &ValidationError{Field: "schedule times", Reason: "end_time must be after start_time"}
		}
	}
	return nil
}

// Apply merges the update into a schedule in place.
func (u ScheduleUpdate) Apply(s *Schedule) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.EventDate != nil {
		s.EventDate = *u.EventDate
	}
	if u.StartTime != nil {
		s.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		s.EndTime = *u.EndTime
	}
}
