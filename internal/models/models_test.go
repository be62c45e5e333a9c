package models_test

import (
	"testing"
	"time"

	"taskhub/backend/internal/models"

	"github.com/gofrs/uuid"
)

func TestTask_HasMember(t *testing.T) {
	leader := uuid.Must(uuid.NewV4())
	member := uuid.Must(uuid.NewV4())
	outsider := uuid.Must(uuid.NewV4())

	task := models.Task{
		ID:       uuid.Must(uuid.NewV4()),
		LeaderID: leader,
		Members: []models.TaskMember{
			{UserID: member, Role: models.MemberRoleMember, JoinedAt: time.Now()},
		},
	}

	if !task.HasMember(leader) {
		t.Error("Expected leader to be treated as a member")
	}
	if !task.HasMember(member) {
		t.Error("Expected joined user to be a member")
	}
	if task.HasMember(outsider) {
		t.Error("Expected outsider not to be a member")
	}
}

func TestTask_IsLeader(t *testing.T) {
	leader := uuid.Must(uuid.NewV4())
	task := models.Task{LeaderID: leader}

	if !task.IsLeader(leader) {
		t.Error("Expected IsLeader to be true for the leader")
	}
	if task.IsLeader(uuid.Must(uuid.NewV4())) {
		t.Error("Expected IsLeader to be false for another user")
	}
}

func TestTask_StatusValues(t *testing.T) {
	for _, status := range []string{"Pending", "In Progress", "In Review", "Completed"} {
		if !models.ValidTaskStatus(status) {
			t.Errorf("Expected status '%s' to be valid", status)
		}
	}
	for _, status := range []string{"", "pending", "done"} {
		if models.ValidTaskStatus(status) {
			t.Errorf("Expected status '%s' to be invalid", status)
		}
	}
}

func TestTask_PriorityValues(t *testing.T) {
	for _, priority := range []string{"Low", "Medium", "High", "Urgent"} {
		if !models.ValidTaskPriority(priority) {
			t.Errorf("Expected priority '%s' to be valid", priority)
		}
	}
	if models.ValidTaskPriority("Critical") {
		t.Error("Expected priority 'Critical' to be invalid")
	}
}

func TestTask_BeforeCreateAssignsID(t *testing.T) {
	task := models.Task{Title: "Test Task"}
	if err := task.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate returned error: %v", err)
	}
	if task.ID.IsNil() {
		t.Error("Expected BeforeCreate to assign an ID")
	}

	existing := uuid.Must(uuid.NewV4())
	task = models.Task{ID: existing}
	if err := task.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate returned error: %v", err)
	}
	if task.ID != existing {
		t.Errorf("Expected ID %s to be kept, got %s", existing, task.ID)
	}
}

func TestTaskMember_BeforeCreateStampsJoinedAt(t *testing.T) {
	member := models.TaskMember{UserID: uuid.Must(uuid.NewV4()), Role: models.MemberRoleMember}
	if err := member.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate returned error: %v", err)
	}
	if member.JoinedAt.IsZero() {
		t.Error("Expected JoinedAt to be set")
	}
	if member.ID.IsNil() {
		t.Error("Expected member ID to be set")
	}
}

func TestProject_HasMember(t *testing.T) {
	owner := uuid.Must(uuid.NewV4())
	member := uuid.Must(uuid.NewV4())
	project := models.Project{
		OwnerID: owner,
		Members: []models.ProjectMember{{UserID: member}},
	}

	if !project.HasMember(owner) || !project.HasMember(member) {
		t.Error("Expected owner and member to be project members")
	}
	if project.HasMember(uuid.Must(uuid.NewV4())) {
		t.Error("Expected outsider not to be a project member")
	}
}

func TestUser_FullName(t *testing.T) {
	tests := []struct {
		first, last, expected string
	}{
		{"Ada", "Lovelace", "Ada Lovelace"},
		{"Ada", "", "Ada"},
		{"", "Lovelace", "Lovelace"},
	}

	for _, tt := range tests {
		user := models.User{FirstName: tt.first, LastName: tt.last}
		if got := user.FullName(); got != tt.expected {
			t.Errorf("Expected full name '%s', got '%s'", tt.expected, got)
		}
	}
}

func TestToken_IsExpired(t *testing.T) {
	token := models.Token{ExpiresAt: time.Now().Add(-time.Minute)}
	if !token.IsExpired() {
		t.Error("Expected token in the past to be expired")
	}

	token.ExpiresAt = time.Now().Add(time.Hour)
	if token.IsExpired() {
		t.Error("Expected token in the future not to be expired")
	}
}
