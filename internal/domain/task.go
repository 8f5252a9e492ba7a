package domain

// Task is an Asana task as returned by the Asana API.
type Task struct {
	GID          string `json:"gid"`
	Name         string `json:"name"`
	DueOn        string `json:"due_on,omitempty"`
	PermalinkURL string `json:"permalink_url,omitempty"`
}

// CreateTaskRequest carries the fields needed to create a task.
// DueOn must be a calendar date in YYYY-MM-DD form.
type CreateTaskRequest struct {
	Name      string `json:"name"`
	DueOn     string `json:"due_on"`
	ProjectID string `json:"project_id"`
}
