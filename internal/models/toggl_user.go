package models

// TogglUser is the authenticated Toggl account, used to scope fetched
// entries to the active user and to pick a workspace.
type TogglUser struct {
	ID                 int64  `json:"id"`
	Email              string `json:"email"`
	Timezone           string `json:"timezone"`
	DefaultWorkspaceID int64  `json:"default_workspace_id"`
}

// Workspace is a Toggl workspace.
type Workspace struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
