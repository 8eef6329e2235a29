package database

import (
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bimuz/bimuz-api/model"
	"github.com/bimuz/bimuz-api/utils/auth"
)

// SeedDemo fills an empty database with a small working dataset: two mentors,
// three groups across the specialities, and a handful of students. Intended
// for local development; it is a no-op when any group already exists.
func SeedDemo(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Group{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		log.Println("Groups already exist, skipping demo seed")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		mentors, err := seedMentors(tx)
		if err != nil {
			return err
		}
		groups, err := seedGroups(tx, mentors)
		if err != nil {
			return err
		}
		return seedStudents(tx, groups)
	})
}

func seedMentors(tx *gorm.DB) ([]model.Employee, error) {
	specs := []struct {
		name  string
		email string
	}{
		{"Aziz Karimov", "aziz.karimov@bimuz.local"},
		{"Dilnoza Rahimova", "dilnoza.rahimova@bimuz.local"},
	}

	hash, err := auth.HashPassword("changeme123")
	if err != nil {
		return nil, err
	}

	mentors := make([]model.Employee, 0, len(specs))
	for _, spec := range specs {
		user := model.User{
			Email:        spec.email,
			PasswordHash: hash,
			FullName:     spec.name,
			Role:         model.RoleMentor,
		}
		if err := tx.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create mentor user %s: %w", spec.email, err)
		}
		employee := model.Employee{UserID: user.ID, FullName: spec.name, Role: model.RoleMentor}
		if err := tx.Create(&employee).Error; err != nil {
			return nil, fmt.Errorf("create mentor employee %s: %w", spec.name, err)
		}
		mentors = append(mentors, employee)
	}
	log.Printf("Seeded %d mentors", len(mentors))
	return mentors, nil
}

func seedGroups(tx *gorm.DB, mentors []model.Employee) ([]model.Group, error) {
	now := time.Now().UTC()
	started := now.AddDate(0, 0, -5)
	planned := now.AddDate(0, 0, 14)
	lessons := 24

	groups := []model.Group{
		{
			Speciality:   model.SpecialityRevitArchitecture,
			Schedule:     model.ScheduleMonWedFri,
			LessonTime:   "14:00",
			StartingDate: &started,
			IsActive:     true,
			Seats:        12,
			Price:        decimal.NewFromInt(2500000),
			TotalLessons: &lessons,
			MentorID:     &mentors[0].ID,
		},
		{
			Speciality:   model.SpecialityRevitStructure,
			Schedule:     model.ScheduleTueThuSat,
			LessonTime:   "18:00",
			StartingDate: &planned,
			IsActive:     false,
			Seats:        10,
			Price:        decimal.NewFromInt(2800000),
			TotalLessons: &lessons,
			MentorID:     &mentors[1].ID,
		},
		{
			Speciality: model.SpecialityTeklaStructure,
			Schedule:   model.ScheduleMonWedFri,
			LessonTime: "10:00",
			IsActive:   true, // no start date yet
			Seats:      8,
			Price:      decimal.NewFromInt(3000000),
		},
	}

	for i := range groups {
		if err := tx.Create(&groups[i]).Error; err != nil {
			return nil, fmt.Errorf("create group %s: %w", groups[i].Speciality, err)
		}
	}
	log.Printf("Seeded %d groups", len(groups))
	return groups, nil
}

func seedStudents(tx *gorm.DB, groups []model.Group) error {
	students := []model.Student{
		{FullName: "Jasur Toshev", Phone: "+998901234567", Source: model.SourceInstagram, GroupID: &groups[0].ID},
		{FullName: "Madina Yusupova", Phone: "+998907654321", Source: model.SourceTelegram, GroupID: &groups[0].ID},
		{FullName: "Sardor Alimov", Phone: "+998935551122", Source: model.SourceReferral},
	}

	for i := range students {
		if err := tx.Create(&students[i]).Error; err != nil {
			return fmt.Errorf("create student %s: %w", students[i].FullName, err)
		}
	}
	log.Printf("Seeded %d students", len(students))
	return nil
}
