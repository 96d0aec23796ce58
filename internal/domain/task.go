package domain

// Identity is the caller-supplied identity of the local user. It is passed
// explicitly into StartCall/JoinCall rather than read from ambient state.
type Identity struct {
	UserID string `bson:"userId" json:"userId"`
	Name   string `bson:"name,omitempty" json:"name,omitempty"`
}

// Task is the slice of a task row that calls care about: who is allowed on
// a call attached to it. The board fields (status, description, dates) are
// owned by the task-management side and not modelled here.
type Task struct {
	ID       string `bson:"_id" json:"id"`
	Title    string `bson:"title,omitempty" json:"title,omitempty"`
	Client   string `bson:"client" json:"client"`
	Assignee string `bson:"assignee" json:"assignee"`
}

// IsParticipant reports whether userID may join calls for this task.
func (t Task) IsParticipant(userID string) bool {
	return userID != "" && (userID == t.Client || userID == t.Assignee)
}
