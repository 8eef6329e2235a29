package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bimuz/bimuz-api/model"
)

// Revenue split between the director and a mentor. Groups that attract more
// than splitStudentThreshold distinct paying students in a month earn the
// mentor a larger cut.
const splitStudentThreshold = 6

var (
	directorShareSmall = decimal.NewFromFloat(0.45)
	mentorShareSmall   = decimal.NewFromFloat(0.55)
	directorShareLarge = decimal.NewFromFloat(0.40)
	mentorShareLarge   = decimal.NewFromFloat(0.60)
)

// CalculatePaymentSplit splits one invoice amount between director and
// mentor based on the group's distinct paying students in the month.
func CalculatePaymentSplit(amount decimal.Decimal, studentsCount int) (directorShare, mentorShare decimal.Decimal) {
	if studentsCount <= splitStudentThreshold {
		return amount.Mul(directorShareSmall), amount.Mul(mentorShareSmall)
	}
	return amount.Mul(directorShareLarge), amount.Mul(mentorShareLarge)
}

// GroupEarnings is the per-group slice of a mentor's monthly earnings.
type GroupEarnings struct {
	GroupID       uint       `json:"group_id"`
	Speciality    string     `json:"speciality"`
	Schedule      string     `json:"schedule"`
	LessonTime    string     `json:"lesson_time"`
	StartingDate  *time.Time `json:"starting_date,omitempty"`
	TotalRevenue  float64    `json:"total_revenue"`
	MentorPayment float64    `json:"mentor_payment"`
	DirectorShare float64    `json:"director_share"`
	StudentsCount int        `json:"students_count"`
}

// MentorEarnings aggregates one mentor's paid revenue for a month.
type MentorEarnings struct {
	MentorID      uint            `json:"mentor_id"`
	MentorName    string          `json:"mentor_name"`
	TotalRevenue  float64         `json:"total_revenue"`
	MentorPayment float64         `json:"mentor_payment"`
	DirectorShare float64         `json:"director_share"`
	GroupsCount   int             `json:"groups_count"`
	StudentsCount int             `json:"students_count"`
	Groups        []GroupEarnings `json:"groups"`
	IsPaid        bool            `json:"is_paid"`
	PaymentDate   *time.Time      `json:"payment_date,omitempty"`

	// Decimal accumulators; float fields above are presentation only.
	totalRevenue  decimal.Decimal
	mentorPayment decimal.Decimal
	directorShare decimal.Decimal
}

// EmployeeSalaryLine is one non-mentor employee's row in the report.
type EmployeeSalaryLine struct {
	EmployeeID  uint       `json:"employee_id"`
	FullName    string     `json:"full_name"`
	Role        string     `json:"role"`
	Salary      float64    `json:"salary"`
	IsPaid      bool       `json:"is_paid"`
	PaymentDate *time.Time `json:"payment_date,omitempty"`
}

// MonthlyReport is the settlement structure for one month.
type MonthlyReport struct {
	Month                 string               `json:"month"`
	TotalRevenue          float64              `json:"total_revenue"`
	TotalMentorPayments   float64              `json:"total_mentor_payments"`
	TotalDirectorShare    float64              `json:"total_director_share"`
	TotalEmployeeSalaries float64              `json:"total_employee_salaries"`
	DirectorRemaining     float64              `json:"director_remaining"`
	MentorEarnings        []MentorEarnings     `json:"mentor_earnings"`
	Employees             []EmployeeSalaryLine `json:"employees"`
}

// SettlementService computes monthly revenue splits and tracks payout state.
type SettlementService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSettlementService creates a new settlement service.
func NewSettlementService(db *gorm.DB) *SettlementService {
	return &SettlementService{db: db, now: time.Now}
}

// MonthKey formats a (year, month) pair as the canonical "YYYY-MM" key used
// by EmployeeSalary and MentorPayment rows.
func MonthKey(year, month int) string {
	return fmt.Sprintf("%04d-%02d", year, month)
}

// monthWindow returns [start, nextStart) in UTC for a calendar month.
func monthWindow(year, month int) (time.Time, time.Time) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// buildMentorEarnings aggregates paid invoices (preloaded with group and
// mentor) into per-mentor, per-group breakdowns. Invoices whose group has no
// mentor are excluded. Pure over its input so the money math is testable
// without a database.
func buildMentorEarnings(invoices []model.Invoice) []MentorEarnings {
	// Distinct paying students per group across the month decide the split
	// tier for every invoice of that group.
	groupStudents := make(map[uint]map[uint]bool)
	for _, inv := range invoices {
		if inv.Group.MentorID == nil {
			continue
		}
		if groupStudents[inv.GroupID] == nil {
			groupStudents[inv.GroupID] = make(map[uint]bool)
		}
		groupStudents[inv.GroupID][inv.StudentID] = true
	}

	type groupAcc struct {
		group    model.Group
		revenue  decimal.Decimal
		mentor   decimal.Decimal
		director decimal.Decimal
		students map[uint]bool
	}
	type mentorAcc struct {
		mentor   model.Employee
		revenue  decimal.Decimal
		mentorP  decimal.Decimal
		director decimal.Decimal
		groups   map[uint]*groupAcc
		students map[uint]bool
	}

	mentors := make(map[uint]*mentorAcc)
	for _, inv := range invoices {
		if inv.Group.MentorID == nil || inv.Group.Mentor == nil {
			continue
		}
		mentorID := *inv.Group.MentorID

		acc, ok := mentors[mentorID]
		if !ok {
			acc = &mentorAcc{
				mentor:   *inv.Group.Mentor,
				revenue:  decimal.Zero,
				mentorP:  decimal.Zero,
				director: decimal.Zero,
				groups:   make(map[uint]*groupAcc),
				students: make(map[uint]bool),
			}
			mentors[mentorID] = acc
		}

		directorShare, mentorShare := CalculatePaymentSplit(inv.Amount, len(groupStudents[inv.GroupID]))

		acc.revenue = acc.revenue.Add(inv.Amount)
		acc.mentorP = acc.mentorP.Add(mentorShare)
		acc.director = acc.director.Add(directorShare)
		acc.students[inv.StudentID] = true

		ga, ok := acc.groups[inv.GroupID]
		if !ok {
			ga = &groupAcc{
				group:    inv.Group,
				revenue:  decimal.Zero,
				mentor:   decimal.Zero,
				director: decimal.Zero,
				students: make(map[uint]bool),
			}
			acc.groups[inv.GroupID] = ga
		}
		ga.revenue = ga.revenue.Add(inv.Amount)
		ga.mentor = ga.mentor.Add(mentorShare)
		ga.director = ga.director.Add(directorShare)
		ga.students[inv.StudentID] = true
	}

	result := make([]MentorEarnings, 0, len(mentors))
	for mentorID, acc := range mentors {
		groups := make([]GroupEarnings, 0, len(acc.groups))
		for groupID, ga := range acc.groups {
			groups = append(groups, GroupEarnings{
				GroupID:       groupID,
				Speciality:    ga.group.Speciality,
				Schedule:      ga.group.Schedule,
				LessonTime:    ga.group.LessonTime,
				StartingDate:  ga.group.StartingDate,
				TotalRevenue:  ga.revenue.InexactFloat64(),
				MentorPayment: ga.mentor.InexactFloat64(),
				DirectorShare: ga.director.InexactFloat64(),
				StudentsCount: len(ga.students),
			})
		}
		sort.Slice(groups, func(i, j int) bool { return groups[i].TotalRevenue > groups[j].TotalRevenue })

		result = append(result, MentorEarnings{
			MentorID:      mentorID,
			MentorName:    acc.mentor.FullName,
			TotalRevenue:  acc.revenue.InexactFloat64(),
			MentorPayment: acc.mentorP.InexactFloat64(),
			DirectorShare: acc.director.InexactFloat64(),
			GroupsCount:   len(acc.groups),
			StudentsCount: len(acc.students),
			Groups:        groups,
			totalRevenue:  acc.revenue,
			mentorPayment: acc.mentorP,
			directorShare: acc.director,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TotalRevenue > result[j].TotalRevenue })
	return result
}

// MonthlyReport builds the full settlement report for a month. It runs in a
// single read transaction so the aggregation never mixes invoice states.
func (s *SettlementService) MonthlyReport(ctx context.Context, year, month int) (*MonthlyReport, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d", month)
	}
	monthKey := MonthKey(year, month)
	start, end := monthWindow(year, month)

	report := &MonthlyReport{Month: monthKey}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var invoices []model.Invoice
		err := tx.Preload("Group").Preload("Group.Mentor").
			Where("status = ? AND payment_time >= ? AND payment_time < ?", model.InvoicePaid, start, end).
			Find(&invoices).Error
		if err != nil {
			return fmt.Errorf("load paid invoices: %w", err)
		}

		earnings := buildMentorEarnings(invoices)

		totalRevenue := decimal.Zero
		totalMentorPayments := decimal.Zero
		totalDirectorShare := decimal.Zero
		for _, e := range earnings {
			totalRevenue = totalRevenue.Add(e.totalRevenue)
			totalMentorPayments = totalMentorPayments.Add(e.mentorPayment)
			totalDirectorShare = totalDirectorShare.Add(e.directorShare)
		}

		// Attach payout state per mentor.
		var mentorPayments []model.MentorPayment
		if err := tx.Where("month = ?", monthKey).Find(&mentorPayments).Error; err != nil {
			return fmt.Errorf("load mentor payments: %w", err)
		}
		paidByMentor := make(map[uint]model.MentorPayment, len(mentorPayments))
		for _, mp := range mentorPayments {
			paidByMentor[mp.MentorID] = mp
		}
		for i := range earnings {
			if mp, ok := paidByMentor[earnings[i].MentorID]; ok {
				earnings[i].IsPaid = mp.IsPaid
				earnings[i].PaymentDate = mp.PaymentDate
			}
		}

		// Salaries for non-mentor staff.
		var salaries []model.EmployeeSalary
		if err := tx.Preload("Employee").Where("month = ?", monthKey).Find(&salaries).Error; err != nil {
			return fmt.Errorf("load employee salaries: %w", err)
		}
		totalSalaries := decimal.Zero
		salaryByEmployee := make(map[uint]model.EmployeeSalary, len(salaries))
		for _, sal := range salaries {
			totalSalaries = totalSalaries.Add(sal.Amount)
			salaryByEmployee[sal.EmployeeID] = sal
		}

		var staff []model.Employee
		if err := tx.Where("role <> ?", model.RoleMentor).Find(&staff).Error; err != nil {
			return fmt.Errorf("load employees: %w", err)
		}
		lines := make([]EmployeeSalaryLine, 0, len(staff))
		for _, emp := range staff {
			line := EmployeeSalaryLine{
				EmployeeID: emp.ID,
				FullName:   emp.FullName,
				Role:       emp.Role,
			}
			if sal, ok := salaryByEmployee[emp.ID]; ok {
				line.Salary = sal.Amount.InexactFloat64()
				line.IsPaid = sal.IsPaid
				line.PaymentDate = sal.PaymentDate
			}
			lines = append(lines, line)
		}

		remaining := totalDirectorShare.Sub(totalSalaries)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}

		report.TotalRevenue = totalRevenue.InexactFloat64()
		report.TotalMentorPayments = totalMentorPayments.InexactFloat64()
		report.TotalDirectorShare = totalDirectorShare.InexactFloat64()
		report.TotalEmployeeSalaries = totalSalaries.InexactFloat64()
		report.DirectorRemaining = remaining.InexactFloat64()
		report.MentorEarnings = earnings
		report.Employees = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// SetEmployeeSalary upserts the salary row keyed by (employee, month).
func (s *SettlementService) SetEmployeeSalary(ctx context.Context, employeeID uint, month string, amount decimal.Decimal, notes string) (*model.EmployeeSalary, error) {
	var salary model.EmployeeSalary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var employee model.Employee
		if err := tx.First(&employee, employeeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEmployeeNotFound
			}
			return err
		}

		err := tx.Where("employee_id = ? AND month = ?", employeeID, month).First(&salary).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			salary = model.EmployeeSalary{
				EmployeeID: employeeID,
				Month:      month,
				Amount:     amount,
				Notes:      notes,
			}
			return tx.Create(&salary).Error
		case err != nil:
			return err
		default:
			salary.Amount = amount
			salary.Notes = notes
			return tx.Save(&salary).Error
		}
	})
	if err != nil {
		return nil, err
	}
	return &salary, nil
}

// MarkSalaryPaid flips the paid flag on an employee's salary for a month.
// Marking paid stamps the payment date once; unmarking clears it.
func (s *SettlementService) MarkSalaryPaid(ctx context.Context, employeeID uint, month string, isPaid bool) (*model.EmployeeSalary, error) {
	var salary model.EmployeeSalary
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("employee_id = ? AND month = ?", employeeID, month).First(&salary).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSalaryNotFound
		}
		if err != nil {
			return err
		}

		salary.IsPaid = isPaid
		if isPaid && salary.PaymentDate == nil {
			now := s.now()
			salary.PaymentDate = &now
		} else if !isPaid {
			salary.PaymentDate = nil
		}
		return tx.Save(&salary).Error
	})
	if err != nil {
		return nil, err
	}
	return &salary, nil
}

// MarkMentorPaymentPaid upserts the mentor payout row for a month and flips
// its paid flag. The amount may override the computed payout.
func (s *SettlementService) MarkMentorPaymentPaid(ctx context.Context, mentorID uint, month string, amount decimal.Decimal, isPaid bool) (*model.MentorPayment, error) {
	var payment model.MentorPayment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var mentor model.Employee
		err := tx.Where("id = ? AND role = ?", mentorID, model.RoleMentor).First(&mentor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMentorNotFound
		}
		if err != nil {
			return err
		}

		err = tx.Where("mentor_id = ? AND month = ?", mentorID, month).First(&payment).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			payment = model.MentorPayment{MentorID: mentorID, Month: month, Amount: amount}
			if err := tx.Create(&payment).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			payment.Amount = amount
		}

		payment.IsPaid = isPaid
		if isPaid && payment.PaymentDate == nil {
			now := s.now()
			payment.PaymentDate = &now
		} else if !isPaid {
			payment.PaymentDate = nil
		}
		return tx.Save(&payment).Error
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
