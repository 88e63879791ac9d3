package handler

import (
    "errors"
    "fmt"
    "reflect"
    "strconv"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/runly/internal/apperr"
)

// Validator adapts go-playground/validator to echo.Validator. Failures are
// returned as VALIDATION_ERROR with details.fieldErrors keyed by the JSON
// field name.
type Validator struct {
    v *validator.Validate
}

func NewValidator() *Validator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" {
            return ""
        }
        if name == "" {
            return f.Name
        }
        return name
    })
    // maxbytes bounds the encoded length; max counts runes.
    _ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
        n, err := strconv.Atoi(fl.Param())
        return err == nil && len(fl.Field().String()) <= n
    })
    return &Validator{v: v}
}

// Validate implements echo.Validator.
func (cv *Validator) Validate(i any) error {
    err := cv.v.Struct(i)
    if err == nil {
        return nil
    }
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) {
        return apperr.Internal(err)
    }
    fields := make(map[string][]string, len(verrs))
    for _, fe := range verrs {
        fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
    }
    return apperr.Validation("Invalid request payload.", fields)
}

func fieldMessage(fe validator.FieldError) string {
    isString := fe.Kind() == reflect.String
    switch fe.Tag() {
    case "required":
        return "Required."
    case "email":
        return "Must be a valid email address."
    case "url":
        return "Must be a valid URL."
    case "oneof":
        return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ") + "."
    case "min":
        if isString {
            return fmt.Sprintf("Must be at least %s characters.", fe.Param())
        }
        return fmt.Sprintf("Must be at least %s.", fe.Param())
    case "max":
        if isString {
            return fmt.Sprintf("Must be at most %s characters.", fe.Param())
        }
        return fmt.Sprintf("Must be at most %s.", fe.Param())
    case "maxbytes":
        return fmt.Sprintf("Must be at most %s bytes.", fe.Param())
    case "gt":
        return fmt.Sprintf("Must be greater than %s.", fe.Param())
    case "gte":
        return fmt.Sprintf("Must be at least %s.", fe.Param())
    case "lte":
        return fmt.Sprintf("Must be at most %s.", fe.Param())
    case "datetime":
        return "Must be an ISO 8601 date-time."
    }
    return "Invalid value."
}

// bindAndValidate decodes the JSON body into req and validates it.
// Malformed JSON and type mismatches are validation errors too.
func bindAndValidate(c echo.Context, req any, normalize func()) error {
    if err := (&echo.DefaultBinder{}).BindBody(c, req); err != nil {
        return apperr.Validation("Invalid request body.", nil)
    }
    if normalize != nil {
        normalize()
    }
    return c.Validate(req)
}
