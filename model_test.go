package rowguard

import (
	"errors"
	"testing"
	"time"
)

func wantViolation(t *testing.T, err error, field string) {
	t.Helper()
	var cve *ConstraintViolationError
	if !errors.As(err, &cve) {
		t.Fatalf("expected ConstraintViolationError, got %v", err)
	}
	if cve.Field != field {
		t.Fatalf("expected violation on %s, got %s", field, cve.Field)
	}
}

func TestOrganizationValidate(t *testing.T) {
	org := &Organization{Name: "Ok Org"}
	if err := org.Validate(); err != nil {
		t.Fatalf("expected valid: %v", err)
	}

	wantViolation(t, (&Organization{}).Validate(), "name")
	wantViolation(t, (&Organization{Name: "x", IsPrincipal: true, IsDistributor: true}).Validate(), "is_distributor")
	wantViolation(t, (&Organization{Name: "x", DistributorID: "d"}).Validate(), "distributor_id")
}

func TestContactValidate(t *testing.T) {
	ok := &Contact{OrganizationID: "o", Email: "a@b.c", DataRetentionCategory: RetentionStandard}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid: %v", err)
	}

	wantViolation(t, (&Contact{Email: "a@b.c", DataRetentionCategory: RetentionStandard}).Validate(), "organization_id")
	wantViolation(t, (&Contact{OrganizationID: "o", DataRetentionCategory: RetentionStandard}).Validate(), "email")

	tooMany := &Contact{
		OrganizationID:        "o",
		Email:                 "a@b.c",
		DataRetentionCategory: RetentionStandard,
		ProcessingPurposes:    []string{"1", "2", "3", "4", "5", "6"},
	}
	wantViolation(t, tooMany.Validate(), "processing_purpose")

	badCategory := &Contact{OrganizationID: "o", Email: "a@b.c", DataRetentionCategory: "forever"}
	wantViolation(t, badCategory.Validate(), "data_retention_category")
}

func TestOpportunityValidate(t *testing.T) {
	ok := &Opportunity{OrganizationID: "o", ProductID: "p", Stage: StageNewLead, ProbabilityPercent: 50}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid: %v", err)
	}

	wantViolation(t, (&Opportunity{OrganizationID: "o", ProductID: "p", Stage: "Imagined", ProbabilityPercent: 10}).Validate(), "stage")
	wantViolation(t, (&Opportunity{OrganizationID: "o", ProductID: "p", Stage: StageNewLead, ProbabilityPercent: 101}).Validate(), "probability_percent")

	// is_won must track the terminal stage in both directions.
	wonWrongStage := &Opportunity{OrganizationID: "o", ProductID: "p", Stage: StageNewLead, IsWon: true}
	wantViolation(t, wonWrongStage.Validate(), "is_won")
	closedNotWon := &Opportunity{OrganizationID: "o", ProductID: "p", Stage: StageClosedWon, ProbabilityPercent: 100}
	wantViolation(t, closedNotWon.Validate(), "is_won")
	closedWon := &Opportunity{OrganizationID: "o", ProductID: "p", Stage: StageClosedWon, ProbabilityPercent: 100, IsWon: true}
	if err := closedWon.Validate(); err != nil {
		t.Fatalf("expected valid closed-won: %v", err)
	}
}

func TestInteractionValidate(t *testing.T) {
	ok := &Interaction{OpportunityID: "op", Type: InteractionMeeting, Status: StatusOpen, Priority: PriorityHigh, Outcome: OutcomePending}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid: %v", err)
	}

	bad := *ok
	bad.Type = "telegram"
	wantViolation(t, bad.Validate(), "type")

	zero := 0
	eleven := 11
	five := 5
	withBadRating := *ok
	withBadRating.Rating = &zero
	wantViolation(t, withBadRating.Validate(), "rating")
	withBadRating.Rating = &eleven
	wantViolation(t, withBadRating.Validate(), "rating")
	withGoodRating := *ok
	withGoodRating.Rating = &five
	if err := withGoodRating.Validate(); err != nil {
		t.Fatalf("expected rating 5 valid: %v", err)
	}
}

func TestProductPrincipalValidate(t *testing.T) {
	start := time.Now()
	earlier := start.Add(-time.Hour)
	ok := &ProductPrincipal{ProductID: "p", OrganizationID: "o", ContractStart: start}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid: %v", err)
	}
	bad := &ProductPrincipal{ProductID: "p", OrganizationID: "o", ContractStart: start, ContractEnd: &earlier}
	wantViolation(t, bad.Validate(), "contract_end")
	wantViolation(t, (&ProductPrincipal{OrganizationID: "o", ContractStart: start}).Validate(), "product_id")
}

func TestRoleContextConstructors(t *testing.T) {
	if Anonymous().Role != RoleAnonymous {
		t.Fatalf("expected anonymous role")
	}
	rc := Authenticated("u-1")
	if rc.Role != RoleAuthenticated || rc.PrincipalID != "u-1" {
		t.Fatalf("unexpected authenticated context: %+v", rc)
	}
}
