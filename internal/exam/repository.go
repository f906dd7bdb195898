// backend/internal/exam/repository.go
package exam

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"exam-system/internal/models"
)

var ErrTestNotFound = errors.New("test not found")

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreateTest(test *models.Test) error {
	err := r.db.Create(test).Error
	if err != nil {
		log.Printf("Error creating test: %v", err)
		return err
	}
	log.Printf("Created test %s with ID %d", test.Name, test.ID)
	return nil
}

func (r *Repository) GetTestByOwnerAndName(ownerID uint, name string) (*models.Test, error) {
	var test models.Test
	err := r.db.Where("owner_id = ? AND name = ?", ownerID, name).
		Preload("MCQs", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Assignments").
		First(&test).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}
	return &test, nil
}

// GetTestForStudent resolves a test by name through the student's
// assignment, the only way a non-owner may reach one.
func (r *Repository) GetTestForStudent(name string, studentID uint) (*models.Test, error) {
	var test models.Test
	err := r.db.
		Joins("JOIN test_assignments ON test_assignments.test_id = tests.id").
		Where("tests.name = ? AND test_assignments.student_id = ?", name, studentID).
		Preload("MCQs", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Assignments").
		First(&test).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTestNotFound
		}
		return nil, err
	}
	return &test, nil
}

type TestFilter struct {
	DocumentName string
	TestName     string
}

func (r *Repository) ListTestsByOwner(ownerID uint, filter TestFilter) ([]models.Test, error) {
	query := r.db.Where("owner_id = ?", ownerID)
	if filter.DocumentName != "" {
		query = query.Where("document_name = ?", filter.DocumentName)
	}
	if filter.TestName != "" {
		query = query.Where("name = ?", filter.TestName)
	}

	var tests []models.Test
	err := query.
		Preload("MCQs", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Assignments").
		Find(&tests).Error
	return tests, err
}

func (r *Repository) ListTestsForStudent(studentID uint, filter TestFilter) ([]models.Test, error) {
	query := r.db.
		Joins("JOIN test_assignments ON test_assignments.test_id = tests.id").
		Where("test_assignments.student_id = ?", studentID)
	if filter.DocumentName != "" {
		query = query.Where("tests.document_name = ?", filter.DocumentName)
	}
	if filter.TestName != "" {
		query = query.Where("tests.name = ?", filter.TestName)
	}

	var tests []models.Test
	err := query.
		Preload("MCQs", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Assignments").
		Find(&tests).Error
	return tests, err
}

// ReplaceMCQs swaps out a test's whole question set, used when a test is
// regenerated under the same name.
func (r *Repository) ReplaceMCQs(testID uint, mcqs []models.MCQ) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", testID).Delete(&models.MCQ{}).Error; err != nil {
			return err
		}
		for i := range mcqs {
			mcqs[i].TestID = testID
			mcqs[i].Position = i
		}
		if len(mcqs) > 0 {
			if err := tx.Create(&mcqs).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) GetMCQ(testID uint, position int) (*models.MCQ, error) {
	var mcq models.MCQ
	err := r.db.Where("test_id = ? AND position = ?", testID, position).First(&mcq).Error
	if err != nil {
		return nil, err
	}
	return &mcq, nil
}

// UpdateMCQ rewrites a single question row. Touching one row instead of
// the whole test keeps concurrent status reconciliation safe.
func (r *Repository) UpdateMCQ(testID uint, position int, mcq *models.MCQ) error {
	result := r.db.Model(&models.MCQ{}).
		Where("test_id = ? AND position = ?", testID, position).
		Updates(map[string]interface{}{
			"question":        mcq.Question,
			"options":         mcq.Options,
			"correct_answer":  mcq.CorrectAnswer,
			"type":            mcq.Type,
			"difficulty":      mcq.Difficulty,
			"relevance_score": mcq.RelevanceScore,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteMCQ removes one question and closes the position gap it leaves.
func (r *Repository) DeleteMCQ(testID uint, position int) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("test_id = ? AND position = ?", testID, position).Delete(&models.MCQ{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.MCQ{}).
			Where("test_id = ? AND position > ?", testID, position).
			UpdateColumn("position", gorm.Expr("position - 1")).Error
	})
}

// SetAssignments replaces the assignee set of a test.
func (r *Repository) SetAssignments(testID uint, studentIDs []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", testID).Delete(&models.TestAssignment{}).Error; err != nil {
			return err
		}
		for _, studentID := range studentIDs {
			assignment := models.TestAssignment{TestID: testID, StudentID: studentID}
			if err := tx.Create(&assignment).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateSchedule sets only the scheduling columns of a test.
func (r *Repository) UpdateSchedule(testID uint, start, end time.Time, duration int, status models.TestStatus) error {
	return r.db.Model(&models.Test{}).
		Where("id = ?", testID).
		Updates(map[string]interface{}{
			"start_time": start,
			"end_time":   end,
			"duration":   duration,
			"status":     status,
		}).Error
}

func (r *Repository) UpdateTestStatus(testID uint, status models.TestStatus) error {
	return r.db.Model(&models.Test{}).
		Where("id = ?", testID).
		Update("status", status).Error
}

func (r *Repository) DeleteTest(testID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_id = ?", testID).Delete(&models.MCQ{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", testID).Delete(&models.TestAssignment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", testID).Delete(&models.TestResult{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Test{}, testID).Error
	})
}

// TestsInLifecycle lists every test the background sweeper must look at.
func (r *Repository) TestsInLifecycle() ([]models.Test, error) {
	var tests []models.Test
	err := r.db.
		Where("status IN ?", []models.TestStatus{models.StatusAssigned, models.StatusActive}).
		Preload("Assignments").
		Find(&tests).Error
	return tests, err
}

// SaveResult upserts one student's submission for a test.
func (r *Repository) SaveResult(result *models.TestResult) error {
	var existing models.TestResult
	err := r.db.Where("test_id = ? AND student_id = ?", result.TestID, result.StudentID).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.Create(result).Error
		}
		return err
	}
	return r.db.Model(&existing).Updates(map[string]interface{}{
		"score":           result.Score,
		"total_questions": result.TotalQuestions,
		"time_spent":      result.TimeSpent,
		"submitted_at":    result.SubmittedAt,
	}).Error
}

func (r *Repository) GetResults(testID uint) ([]models.TestResult, error) {
	var results []models.TestResult
	err := r.db.Where("test_id = ?", testID).Find(&results).Error
	return results, err
}

// GetStudents returns the users with the student role, optionally limited
// to the given ids.
func (r *Repository) GetStudents(ids []uint) ([]models.User, error) {
	query := r.db.Where("role = ?", models.RoleStudent)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	var students []models.User
	err := query.Find(&students).Error
	return students, err
}

func (r *Repository) UpdateStudent(studentID uint, updates map[string]interface{}) error {
	result := r.db.Model(&models.User{}).
		Where("id = ? AND role = ?", studentID, models.RoleStudent).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteStudent removes a student and pulls them from every assignment.
func (r *Repository) DeleteStudent(studentID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND role = ?", studentID, models.RoleStudent).
			Delete(&models.User{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Where("student_id = ?", studentID).Delete(&models.TestAssignment{}).Error
	})
}
