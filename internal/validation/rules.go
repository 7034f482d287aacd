package validation

import (
	"context"
	"errors"
	"strings"
	"unicode"

	playground "github.com/go-playground/validator/v10"

	apperrors "github.com/chirpnet/chirp/pkg/errors"
)

// validate is shared across Format rules. Var-based checks are stateless.
var validate = playground.New()

// Required fails when the field is absent or blank.
func Required(message string) Rule {
	return func(ctx context.Context, fv *FieldValue, st *State) error {
		if !fv.Present || strings.TrimSpace(fv.Value) == "" {
			return errors.New(message)
		}
		return nil
	}
}

// Length fails when the trimmed value is outside [min, max]. Absent fields
// pass so the rule composes with optional fields.
func Length(min, max int, message string) Rule {
	return func(ctx context.Context, fv *FieldValue, st *State) error {
		if !fv.Present {
			return nil
		}
		n := len([]rune(strings.TrimSpace(fv.Value)))
		if n < min || n > max {
			return errors.New(message)
		}
		return nil
	}
}

// Format checks the value against a go-playground validator tag, e.g.
// "email", "iso8601" via "datetime", or "url". Absent fields pass.
func Format(tag, message string) Rule {
	return func(ctx context.Context, fv *FieldValue, st *State) error {
		if !fv.Present {
			return nil
		}
		if err := validate.VarCtx(ctx, fv.Value, tag); err != nil {
			return errors.New(message)
		}
		return nil
	}
}

// StrongPassword enforces the password policy: 6-50 characters with at
// least one lowercase letter, one uppercase letter, one digit, and one
// symbol.
func StrongPassword(message string) Rule {
	return func(ctx context.Context, fv *FieldValue, st *State) error {
		if !fv.Present {
			return nil
		}
		if !isStrongPassword(fv.Value) {
			return errors.New(message)
		}
		return nil
	}
}

func isStrongPassword(s string) bool {
	if len(s) < 6 || len(s) > 50 {
		return false
	}
	var lower, upper, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	return lower && upper && digit && symbol
}

// Match fails unless this field equals another body field, e.g. a password
// confirmation.
func Match(otherField, message string) Rule {
	return func(ctx context.Context, fv *FieldValue, st *State) error {
		if !fv.Present {
			return nil
		}
		other, _ := fv.Input.Body[otherField].(string)
		if fv.Value != other {
			return errors.New(message)
		}
		return nil
	}
}

// Custom wraps an arbitrary check. The function may read the whole Input and
// write resolved entities into the State.
func Custom(fn func(ctx context.Context, fv *FieldValue, st *State) error) Rule {
	return Rule(fn)
}

// ISO8601 is a Format tag accepting RFC 3339 timestamps or bare dates.
const ISO8601 = "datetime=2006-01-02T15:04:05Z07:00|datetime=2006-01-02"

// Username validates handle shape: 4-15 word characters, not digits only.
func Username(message string) Rule {
	return func(ctx context.Context, fv *FieldValue, st *State) error {
		if !fv.Present {
			return nil
		}
		if !isValidUsername(fv.Value) {
			return errors.New(message)
		}
		return nil
	}
}

func isValidUsername(s string) bool {
	if len(s) < 4 || len(s) > 15 {
		return false
	}
	digitsOnly := true
	for _, r := range s {
		if !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return false
		}
		if !unicode.IsDigit(r) {
			digitsOnly = false
		}
	}
	return !digitsOnly
}

// Bearer strips a "Bearer " prefix, aborting the run with a structural 401
// when the header does not carry one. The stripped token replaces the field
// value for later rules.
func Bearer(message string) Rule {
	return func(ctx context.Context, fv *FieldValue, st *State) error {
		if !fv.Present {
			return nil
		}
		parts := strings.SplitN(fv.Value, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			return apperrors.Unauthorized(message)
		}
		fv.Value = parts[1]
		return nil
	}
}
