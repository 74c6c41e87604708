package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/coinquest/backend/internal/apperr"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	return v
}

func TestNewValidator_CompilesAllSchemas(t *testing.T) {
	v := newTestValidator(t)
	for _, name := range []string{
		SchemaRegister, SchemaLogin, SchemaCreateTask, SchemaUpdateTask, SchemaSubmission,
		SchemaReview, SchemaWithdrawal, SchemaWithdrawalStatus, SchemaReward, SchemaFundBudget,
	} {
		if _, ok := v.schemas[name]; !ok {
			t.Errorf("missing schema %q", name)
		}
	}
}

func TestValidate_Valid(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		schema string
		body   string
	}{
		{SchemaRegister, `{"email":"a@b.co","password":"longenough","display_name":"A","referral_code":"ABC123"}`},
		{SchemaCreateTask, `{"title":"Follow us","reward_per_user":10,"max_users":5}`},
		{SchemaReview, `{"decision":"approve"}`},
		{SchemaReview, `{"decision":"reject","reason":"blurry screenshot"}`},
		{SchemaWithdrawal, `{"amount":1500,"payment_method":"UPI","account_details":"me@upi"}`},
		{SchemaReward, `{"account_id":"6f1d2c3e-9a4b-4c5d-8e7f-0a1b2c3d4e5f","action":"post_like","reference":"post-9"}`},
	}
	for _, tc := range cases {
		if err := v.Validate(tc.schema, []byte(tc.body)); err != nil {
			t.Errorf("%s %s: unexpected error: %v", tc.schema, tc.body, err)
		}
	}
}

func TestValidate_Invalid(t *testing.T) {
	v := newTestValidator(t)

	cases := []struct {
		name   string
		schema string
		body   string
	}{
		{"short password", SchemaRegister, `{"email":"a@b.co","password":"short","display_name":"A"}`},
		{"admin self-registration", SchemaRegister, `{"email":"a@b.co","password":"longenough","display_name":"A","role":"admin"}`},
		{"zero reward", SchemaCreateTask, `{"title":"t","reward_per_user":0,"max_users":5}`},
		{"fractional max users", SchemaCreateTask, `{"title":"t","reward_per_user":1,"max_users":2.5}`},
		{"huge reward", SchemaCreateTask, `{"title":"t","reward_per_user":4611686018427387905,"max_users":4}`},
		{"huge max users", SchemaUpdateTask, `{"reward_per_user":1,"max_users":2000000}`},
		{"reject without reason", SchemaReview, `{"decision":"reject"}`},
		{"unknown decision", SchemaReview, `{"decision":"maybe"}`},
		{"unknown field", SchemaWithdrawal, `{"amount":1500,"payment_method":"UPI","account_details":"x","extra":1}`},
		{"status pending", SchemaWithdrawalStatus, `{"status":"pending"}`},
		{"bad uuid", SchemaReward, `{"account_id":"nope","action":"post_like"}`},
		{"not json", SchemaLogin, `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.schema, []byte(tc.body))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.Is(err, apperr.ErrValidation) {
				t.Errorf("expected ErrValidation, got: %v", err)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	v := newTestValidator(t)

	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := v.Decode(SchemaFundBudget, strings.NewReader(`{"amount":500}`), &req); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if req.Amount != 500 {
		t.Errorf("amount: got %d, want 500", req.Amount)
	}
	if err := v.Decode(SchemaFundBudget, strings.NewReader(`{"amount":-1}`), &req); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected ErrValidation, got: %v", err)
	}
}

func TestValidate_UnknownSchema(t *testing.T) {
	v := newTestValidator(t)
	if err := v.Validate("nope", []byte(`{}`)); err == nil || errors.Is(err, apperr.ErrValidation) {
		t.Errorf("expected a non-validation error for an unknown schema, got: %v", err)
	}
}
