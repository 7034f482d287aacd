// Package validation runs declarative request validation schemas. A schema
// lists rules per field; rules for one field run in order and stop at the
// first failure, failures across fields are aggregated into a single 422
// response, and a rule may abort the whole run by returning an error that
// carries its own HTTP status.
//
// Rules that verify credentials stash what they resolve (users, sessions,
// token claims) in a State, so handlers never re-parse tokens.
package validation

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/chirpnet/chirp/internal/domain"
	"github.com/chirpnet/chirp/internal/token"
	apperrors "github.com/chirpnet/chirp/pkg/errors"
)

// Source names where a field's value is read from.
type Source int

const (
	SourceBody Source = iota
	SourceHeader
	SourceQuery
	SourceParam
)

// Input is the request material a schema validates against.
type Input struct {
	Body   map[string]any
	Header http.Header
	Query  url.Values
	Params map[string]string
}

// FieldValue is one field's extracted value as seen by rules.
type FieldValue struct {
	Name    string
	Value   string
	Present bool
	Input   *Input
}

// State accumulates everything credential rules resolve during a run.
type State struct {
	User                 *domain.User
	Session              *domain.Session
	AccessClaims         *token.Claims
	RefreshClaims        *token.Claims
	EmailVerifyClaims    *token.Claims
	ForgotPasswordClaims *token.Claims
}

// Rule checks one field. Returning a plain error records it as that field's
// validation message; returning an *errors.AppError with a non-422 status
// aborts the entire run with that error.
type Rule func(ctx context.Context, fv *FieldValue, st *State) error

// FieldRules binds an ordered rule list to one field.
type FieldRules struct {
	Field  string
	Source Source
	Rules  []Rule
}

// Field builds a FieldRules for a body field.
func Field(name string, rules ...Rule) FieldRules {
	return FieldRules{Field: name, Source: SourceBody, Rules: rules}
}

// HeaderField builds a FieldRules for a request header.
func HeaderField(name string, rules ...Rule) FieldRules {
	return FieldRules{Field: name, Source: SourceHeader, Rules: rules}
}

// QueryField builds a FieldRules for a query parameter.
func QueryField(name string, rules ...Rule) FieldRules {
	return FieldRules{Field: name, Source: SourceQuery, Rules: rules}
}

// ParamField builds a FieldRules for a path parameter.
func ParamField(name string, rules ...Rule) FieldRules {
	return FieldRules{Field: name, Source: SourceParam, Rules: rules}
}

// Schema is an ordered set of field rules.
type Schema struct {
	fields []FieldRules
}

// NewSchema builds a schema. Fields validate in the order given.
func NewSchema(fields ...FieldRules) *Schema {
	return &Schema{fields: fields}
}

// Run validates the input. On success it returns the populated State. Field
// failures aggregate into a single validation error; a rule error carrying
// its own non-422 status aborts immediately and is returned as-is.
func (s *Schema) Run(ctx context.Context, in *Input) (*State, error) {
	st := &State{}
	fieldErrs := make(map[string]string)

	for _, fr := range s.fields {
		fv := extract(fr, in)
		for _, rule := range fr.Rules {
			err := rule(ctx, fv, st)
			if err == nil {
				continue
			}

			var appErr *apperrors.AppError
			if errors.As(err, &appErr) && appErr.Status != http.StatusUnprocessableEntity {
				return nil, err
			}

			fieldErrs[fr.Field] = err.Error()
			break
		}
	}

	if len(fieldErrs) > 0 {
		return nil, apperrors.Validation(fieldErrs)
	}
	return st, nil
}

func extract(fr FieldRules, in *Input) *FieldValue {
	fv := &FieldValue{Name: fr.Field, Input: in}

	switch fr.Source {
	case SourceBody:
		if in.Body != nil {
			if raw, ok := in.Body[fr.Field]; ok {
				if s, isString := raw.(string); isString {
					fv.Value = s
					fv.Present = true
				} else if raw != nil {
					// Non-string body values are handled by Custom rules
					// reading Input.Body directly; presence still counts.
					fv.Present = true
				}
			}
		}
	case SourceHeader:
		if in.Header != nil {
			fv.Value = in.Header.Get(fr.Field)
			fv.Present = fv.Value != ""
		}
	case SourceQuery:
		if in.Query != nil {
			fv.Value = in.Query.Get(fr.Field)
			fv.Present = fv.Value != ""
		}
	case SourceParam:
		if in.Params != nil {
			fv.Value, fv.Present = in.Params[fr.Field]
		}
	}

	return fv
}

type stateContextKey struct{}

// NewContext stores a validation State in the context.
func NewContext(ctx context.Context, st *State) context.Context {
	return context.WithValue(ctx, stateContextKey{}, st)
}

// StateFromContext retrieves the State stored by the validation middleware.
// It returns an empty State when none is present.
func StateFromContext(ctx context.Context) *State {
	if st, ok := ctx.Value(stateContextKey{}).(*State); ok {
		return st
	}
	return &State{}
}
