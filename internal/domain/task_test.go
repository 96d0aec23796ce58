package domain

import "testing"

func TestTask_IsParticipant(t *testing.T) {
	task := Task{ID: "t1", Client: "alice", Assignee: "bob"}

	cases := []struct {
		userID string
		want   bool
	}{
		{"alice", true},
		{"bob", true},
		{"mallory", false},
		{"", false},
	}
	for _, c := range cases {
		if got := task.IsParticipant(c.userID); got != c.want {
			t.Errorf("IsParticipant(%q) = %v, want %v", c.userID, got, c.want)
		}
	}
}

func TestTask_IsParticipant_UnassignedTask(t *testing.T) {
	task := Task{ID: "t2", Client: "alice"}

	// An empty assignee must never match an empty caller id.
	if task.IsParticipant("") {
		t.Error("empty user id matched an unassigned task")
	}
}

func TestKindOf(t *testing.T) {
	err := &CallError{Kind: ErrKindInvalidCode, Err: ErrNotFound}
	if KindOf(err) != ErrKindInvalidCode {
		t.Errorf("KindOf = %v", KindOf(err))
	}
	if KindOf(ErrNotFound) != ErrKindNone {
		t.Error("plain errors must carry no kind")
	}
}
