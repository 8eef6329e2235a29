package services

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/bimuz/bimuz-api/model"
)

func TestCalculatePaymentSplit(t *testing.T) {
	tests := []struct {
		name          string
		amount        string
		studentsCount int
		wantDirector  string
		wantMentor    string
	}{
		{"small group 45/55", "1000000", 3, "450000", "550000"},
		{"threshold counts as small", "1000000", 6, "450000", "550000"},
		{"above threshold 40/60", "1000000", 7, "400000", "600000"},
		{"large group", "2500000", 12, "1000000", "1500000"},
		{"zero amount", "0", 4, "0", "0"},
		{"fractional amount", "333333.33", 2, "149999.9985", "183333.3315"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount := decimal.RequireFromString(tt.amount)
			director, mentor := CalculatePaymentSplit(amount, tt.studentsCount)

			if !director.Equal(decimal.RequireFromString(tt.wantDirector)) {
				t.Errorf("director share = %s, want %s", director, tt.wantDirector)
			}
			if !mentor.Equal(decimal.RequireFromString(tt.wantMentor)) {
				t.Errorf("mentor share = %s, want %s", mentor, tt.wantMentor)
			}
			// The two shares always reassemble the original amount.
			if !director.Add(mentor).Equal(amount) {
				t.Errorf("shares %s + %s do not sum to %s", director, mentor, amount)
			}
		})
	}
}

func TestMonthKey(t *testing.T) {
	if got := MonthKey(2026, 3); got != "2026-03" {
		t.Errorf("MonthKey(2026, 3) = %q, want %q", got, "2026-03")
	}
	if got := MonthKey(2025, 12); got != "2025-12" {
		t.Errorf("MonthKey(2025, 12) = %q, want %q", got, "2025-12")
	}
}

func paidInvoice(studentID, groupID uint, amount string, group model.Group) model.Invoice {
	group.ID = groupID
	return model.Invoice{
		StudentID: studentID,
		GroupID:   groupID,
		Amount:    decimal.RequireFromString(amount),
		Status:    model.InvoicePaid,
		Group:     group,
	}
}

func mentorGroup(mentorID uint, name string) model.Group {
	return model.Group{
		Speciality: model.SpecialityRevitArchitecture,
		Schedule:   model.ScheduleMonWedFri,
		LessonTime: "14:00",
		MentorID:   &mentorID,
		Mentor:     &model.Employee{ID: mentorID, FullName: name, Role: model.RoleMentor},
	}
}

func TestBuildMentorEarningsSmallGroup(t *testing.T) {
	group := mentorGroup(1, "Aziz Karimov")

	// Five distinct students paying 1,000,000 each: 45/55 tier.
	var invoices []model.Invoice
	for sid := uint(1); sid <= 5; sid++ {
		invoices = append(invoices, paidInvoice(sid, 10, "1000000", group))
	}

	earnings := buildMentorEarnings(invoices)
	if len(earnings) != 1 {
		t.Fatalf("expected 1 mentor, got %d", len(earnings))
	}

	e := earnings[0]
	if e.MentorID != 1 || e.MentorName != "Aziz Karimov" {
		t.Errorf("unexpected mentor identity: %+v", e)
	}
	if e.TotalRevenue != 5000000 {
		t.Errorf("total revenue = %f, want 5000000", e.TotalRevenue)
	}
	if e.MentorPayment != 2750000 {
		t.Errorf("mentor payment = %f, want 2750000 (55%%)", e.MentorPayment)
	}
	if e.DirectorShare != 2250000 {
		t.Errorf("director share = %f, want 2250000 (45%%)", e.DirectorShare)
	}
	if e.StudentsCount != 5 || e.GroupsCount != 1 {
		t.Errorf("counts = %d students, %d groups; want 5, 1", e.StudentsCount, e.GroupsCount)
	}
}

func TestBuildMentorEarningsTierIsPerGroupPerMonth(t *testing.T) {
	group := mentorGroup(1, "Aziz Karimov")

	// Seven distinct students push the whole group into the 40/60 tier,
	// including invoices that arrived before the seventh student paid.
	var invoices []model.Invoice
	for sid := uint(1); sid <= 7; sid++ {
		invoices = append(invoices, paidInvoice(sid, 10, "1000000", group))
	}

	earnings := buildMentorEarnings(invoices)
	if len(earnings) != 1 {
		t.Fatalf("expected 1 mentor, got %d", len(earnings))
	}

	e := earnings[0]
	if e.MentorPayment != 4200000 {
		t.Errorf("mentor payment = %f, want 4200000 (60%% of 7M)", e.MentorPayment)
	}
	if e.DirectorShare != 2800000 {
		t.Errorf("director share = %f, want 2800000 (40%% of 7M)", e.DirectorShare)
	}
}

func TestBuildMentorEarningsRepeatInstallmentsOneStudent(t *testing.T) {
	group := mentorGroup(1, "Aziz Karimov")

	// Two installments from the same student count as one distinct student.
	invoices := []model.Invoice{
		paidInvoice(1, 10, "500000", group),
		paidInvoice(1, 10, "500000", group),
	}

	earnings := buildMentorEarnings(invoices)
	if len(earnings) != 1 {
		t.Fatalf("expected 1 mentor, got %d", len(earnings))
	}
	if earnings[0].StudentsCount != 1 {
		t.Errorf("students count = %d, want 1", earnings[0].StudentsCount)
	}
	if earnings[0].TotalRevenue != 1000000 {
		t.Errorf("total revenue = %f, want 1000000", earnings[0].TotalRevenue)
	}
}

func TestBuildMentorEarningsSkipsGroupsWithoutMentor(t *testing.T) {
	orphan := model.Group{Speciality: model.SpecialityTeklaStructure, Schedule: model.ScheduleTueThuSat}

	invoices := []model.Invoice{
		paidInvoice(1, 20, "1000000", orphan),
	}

	if earnings := buildMentorEarnings(invoices); len(earnings) != 0 {
		t.Errorf("expected no earnings for mentorless groups, got %d", len(earnings))
	}
}

func TestBuildMentorEarningsSortsByRevenue(t *testing.T) {
	big := mentorGroup(1, "Aziz Karimov")
	small := mentorGroup(2, "Dilnoza Rahimova")

	invoices := []model.Invoice{
		paidInvoice(1, 30, "500000", small),
		paidInvoice(2, 10, "2000000", big),
		paidInvoice(3, 10, "2000000", big),
	}

	earnings := buildMentorEarnings(invoices)
	if len(earnings) != 2 {
		t.Fatalf("expected 2 mentors, got %d", len(earnings))
	}
	if earnings[0].MentorID != 1 {
		t.Errorf("expected highest-revenue mentor first, got mentor %d", earnings[0].MentorID)
	}
	if earnings[0].TotalRevenue < earnings[1].TotalRevenue {
		t.Errorf("earnings not sorted by revenue: %f then %f", earnings[0].TotalRevenue, earnings[1].TotalRevenue)
	}
}
