package models

const TaskStatusPending = "pending"

// Task is a unit of work. Status is free-form.
type Task struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

var TaskFields = FieldSet{
	Writable: []string{"title", "description", "status"},
	Required: []string{"title"},
	Defaults: Fields{"description": "", "status": TaskStatusPending},
}

// DecodeTask builds a Task from its stored fields.
func DecodeTask(f Fields) (Task, error) {
	id, err := decodeID(f)
	if err != nil {
		return Task{}, err
	}
	// hashes written outside the API may still hold ""
	status := f["status"]
	if status == "" {
		status = TaskStatusPending
	}
	return Task{
		ID:          id,
		Title:       f["title"],
		Description: f["description"],
		Status:      status,
	}, nil
}
