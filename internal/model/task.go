package model

// TaskStatus enumerates the lifecycle states of a task.
type TaskStatus string

const (
	TaskPlanned    TaskStatus = "planned"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDelayed    TaskStatus = "delayed"
)

// Task belongs to a schedule. A task whose start and end times are equal is
// a milestone, not a separate entity kind.
type Task struct {
	ID         int64      `json:"id"`
	ScheduleID int64      `json:"schedule_id"`
	Name       string     `json:"name"`
	Stage      string     `json:"stage"`
	StartTime  string     `json:"start_time"`
	EndTime    string     `json:"end_time"`
	Location   *string    `json:"location"`
	Status     TaskStatus `json:"status"`
	Note       *string    `json:"note"`
}

// IsMilestone reports whether the task is the zero-duration milestone
// variant.
func (t Task) IsMilestone() bool {
	return t.StartTime == t.EndTime
}

// TaskInput is the payload for creating a task under a schedule.
type TaskInput struct {
	Name      string     `json:"name"`
	Stage     string     `json:"stage"`
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
	Location  *string    `json:"location"`
	Status    TaskStatus `json:"status,omitempty"`
	Note      *string    `json:"note"`
}

// Validate checks required fields and timestamp syntax. Milestones are
// allowed, so start == end is valid here.
func (in TaskInput) Validate() error {
	if err := requireNonEmpty("task name", in.Name); err != nil {
		return err
	}
	if err := requireNonEmpty("task stage", in.Stage); err != nil {
		return err
	}
	if _, err := ParseTimestamp(in.StartTime); err != nil {
		return &ValidationError{Field: "task start_time", Reason: err.Error()}
	}
	if _, err := ParseTimestamp(in.EndTime); err != nil {
		return &ValidationError{Field: "task end_time", Reason: err.Error()}
	}
	return nil
}

// Normalized returns a copy with the status defaulted to planned.
func (in TaskInput) Normalized() TaskInput {
	if in.Status == "" {
		in.Status = TaskPlanned
	}
	return in
}

// TaskUpdate is a partial update; nil fields are left unchanged.
type TaskUpdate struct {
	Name      *string     `json:"name,omitempty"`
	Stage     *string     `json:"stage,omitempty"`
	StartTime *string     `json:"start_time,omitempty"`
	EndTime   *string     `json:"end_time,omitempty"`
	Location  *string     `json:"location,omitempty"`
	Status    *TaskStatus `json:"status,omitempty"`
	Note      *string     `json:"note,omitempty"`
}

// Validate checks provided fields.
func (u TaskUpdate) Validate() error {
	if u.Name != nil {
		if err := requireNonEmpty("task name", *u.Name); err != nil {
			return err
		}
	}
	if u.Stage != nil {
		if err := requireNonEmpty("task stage", *u.Stage); err != nil {
			return err
		}
	}
	if u.StartTime != nil {
		if _, err := ParseTimestamp(*u.StartTime); err != nil {
			return &ValidationError{Field: "task start_time", Reason: err.Error()}
		}
	}
	if u.EndTime != nil {
		if _, err := ParseTimestamp(*u.EndTime); err != nil {
			return &ValidationError{Field: "task end_time", Reason: err.Error()}
		}
	}
	return nil
}

// Apply merges the update into a task in place.
func (u TaskUpdate) Apply(t *Task) {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Stage != nil {
		t.Stage = *u.Stage
	}
	if u.StartTime != nil {
		t.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		t.EndTime = *u.EndTime
	}
	if u.Location != nil {
		t.Location = u.Location
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.Note != nil {
		t.Note = u.Note
	}
}
