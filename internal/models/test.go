// backend/internal/models/test.go
package models

import (
	"time"

	"github.com/lib/pq"
)

// TestStatus is the lifecycle state of a generated test. Both the lazy
// reconciler and the background sweeper move tests between these values
// through the same transition function.
type TestStatus string

const (
	StatusGenerated TestStatus = "generated"
	StatusAssigned  TestStatus = "assigned"
	StatusActive    TestStatus = "active"
	StatusStopped   TestStatus = "stopped"
	StatusCompleted TestStatus = "completed"
)

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"unique;not null"`
	Password  string    `json:"-" gorm:"not null"`
	Role      string    `json:"role" gorm:"not null"`
}

type Test struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	OwnerID      uint             `json:"owner_id" gorm:"not null;uniqueIndex:idx_tests_owner_name"`
	Name         string           `json:"test_name" gorm:"not null;uniqueIndex:idx_tests_owner_name"`
	DocumentName string           `json:"document_name"`
	Status       TestStatus       `json:"status" gorm:"not null;default:generated;index"`
	StartTime    *time.Time       `json:"start_time"`
	EndTime      *time.Time       `json:"end_time"`
	Duration     int              `json:"duration"`
	MCQs         []MCQ            `json:"mcqs,omitempty" gorm:"foreignKey:TestID"`
	Assignments  []TestAssignment `json:"assignments,omitempty" gorm:"foreignKey:TestID"`
	Results      []TestResult     `json:"results,omitempty" gorm:"foreignKey:TestID"`
}

// MCQ is one stored question of a test, ordered by Position. Options always
// holds exactly four entries; CorrectAnswer repeats one of them verbatim.
type MCQ struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	TestID         uint           `json:"test_id" gorm:"not null;index"`
	Position       int            `json:"position" gorm:"not null"`
	Question       string         `json:"question" gorm:"not null"`
	Options        pq.StringArray `json:"options" gorm:"type:text[];not null"`
	CorrectAnswer  string         `json:"correct_answer" gorm:"not null"`
	Type           string         `json:"type"`
	Difficulty     string         `json:"difficulty"`
	RelevanceScore float64        `json:"relevance_score"`
}

// TestAssignment links one student to one test. Assigning and unassigning
// are row inserts and deletes, so they never race with status updates on
// the test row itself.
type TestAssignment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	TestID    uint      `json:"test_id" gorm:"not null;uniqueIndex:idx_assignments_test_student"`
	StudentID uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_assignments_test_student;index"`
}

// TestResult is one student's submission for one test.
type TestResult struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	TestID         uint      `json:"test_id" gorm:"not null;uniqueIndex:idx_results_test_student"`
	StudentID      uint      `json:"student_id" gorm:"not null;uniqueIndex:idx_results_test_student"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	TimeSpent      int       `json:"time_spent"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

func (TestAssignment) TableName() string {
	return "test_assignments"
}

func (TestResult) TableName() string {
	return "test_results"
}
