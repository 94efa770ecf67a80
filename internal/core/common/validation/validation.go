package validation

import (
	errors "github.com/frahmantamala/payment-gateway/internal"
)

type ValidatorFunc func(interface{}) *errors.AppError

// Predicate reports whether a value satisfies a rule.
type Predicate func(interface{}) bool

type zeroer interface {
	IsZero() bool
}

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

// ValidationBuilder evaluates every registered rule in registration order.
// Rules never short-circuit, so one field can report several violations.
type ValidationBuilder struct {
	fields []*FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]*FieldValidator, 0),
	}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := &FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	v.fields = append(v.fields, fv)
	return fv
}

// Required fails on the zero value of the field's type.
func (fv *FieldValidator) Required(message string, code errors.ErrorCode) *FieldValidator {
	return fv.Must(func(value interface{}) bool { return !IsEmpty(value) }, message, code)
}

func (fv *FieldValidator) Must(predicate Predicate, message string, code errors.ErrorCode) *FieldValidator {
	name := fv.FieldName
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if predicate(value) {
			return nil
		}
		return errors.NewValidationFieldError(name, message, code)
	})
	return fv
}

func (fv *FieldValidator) IntBetween(min, max int, message string, code errors.ErrorCode) *FieldValidator {
	return fv.Must(func(value interface{}) bool {
		v, ok := value.(int)
		return ok && v >= min && v <= max
	}, message, code)
}

func (fv *FieldValidator) GreaterThan(min int, message string, code errors.ErrorCode) *FieldValidator {
	return fv.Must(func(value interface{}) bool {
		v, ok := value.(int)
		return ok && v > min
	}, message, code)
}

func (fv *FieldValidator) LessThan(max int, message string, code errors.ErrorCode) *FieldValidator {
	return fv.Must(func(value interface{}) bool {
		v, ok := value.(int)
		return ok && v < max
	}, message, code)
}

func (fv *FieldValidator) OneOf(allowed []string, message string, code errors.ErrorCode) *FieldValidator {
	return fv.Must(func(value interface{}) bool {
		v, ok := value.(string)
		if !ok {
			return false
		}
		for _, a := range allowed {
			if v == a {
				return true
			}
		}
		return false
	}, message, code)
}

func (fv *FieldValidator) Custom(validator func(interface{}) *errors.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

// Errors runs every rule and returns the violations in evaluation order.
func (v *ValidationBuilder) Errors() []errors.ValidationError {
	var validationErrors []errors.ValidationError

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			appErr := validator(field.Value)
			if appErr == nil {
				continue
			}

			if details, ok := appErr.Details.(errors.ValidationErrors); ok {
				validationErrors = append(validationErrors, details.Errors...)
				continue
			}

			validationErrors = append(validationErrors, errors.ValidationError{
				Field:   field.FieldName,
				Message: appErr.Message,
				Code:    string(appErr.Code),
			})
		}
	}

	return validationErrors
}

func (v *ValidationBuilder) Validate() *errors.AppError {
	validationErrors := v.Errors()
	if len(validationErrors) > 0 {
		return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
			WithDetails(errors.ValidationErrors{Errors: validationErrors})
	}

	return nil
}

func IsEmpty(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case *string:
		return v == nil || *v == ""
	case int:
		return v == 0
	case int64:
		return v == 0
	case zeroer:
		return v.IsZero()
	}
	return false
}
