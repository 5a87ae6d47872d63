package sections

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	schemavalidation "github.com/waliasolutions/mindful-mindset-coaching-sub001/internal/validation"
)

var (
	errNotScalar = validation.NewError("sections.value.scalar", "must be a string, number or boolean")
	errNotString = validation.NewError("sections.value.string", "must be a string")
)

func scalarRule(value any) error {
	if value == nil {
		return nil
	}
	if _, ok := value.(json.Number); ok {
		return nil
	}
	switch reflect.TypeOf(value).Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	}
	return errNotScalar
}

func stringRule(value any) error {
	if value == nil {
		return nil
	}
	if _, ok := value.(string); !ok {
		return errNotString
	}
	return nil
}

// validateKind checks a write of kind. Text, rich text and image rules apply
// to the fields being written; fields the patch does not touch keep whatever
// shape they already had. Image writes must also leave a source in merged, and
// section writes validate the whole merged value against schema.
func validateKind(kind Kind, patch, merged map[string]any, schema *schemavalidation.Schema) error {
	var err error
	switch kind {
	case KindText:
		err = validation.Validate(patch, validation.Each(validation.By(scalarRule)))
	case KindRichText:
		err = validation.Validate(patch, validation.Each(validation.By(stringRule)))
	case KindImage:
		err = validation.Validate(patch,
			validation.Map(
				validation.Key(FieldImage, validation.By(stringRule)).Optional(),
				validation.Key(FieldImageAlt, validation.By(stringRule)).Optional(),
			).AllowExtraKeys(),
		)
		if err == nil {
			err = validation.Validate(merged,
				validation.Map(
					validation.Key(FieldImage, validation.Required, validation.By(stringRule)),
				).AllowExtraKeys(),
			)
		}
	case KindSection:
		if _, jerr := json.Marshal(merged); jerr != nil {
			err = jerr
		} else {
			err = schema.Validate(merged)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidContent, kind, err)
	}
	return nil
}

// IsValidationError reports whether err was produced by kind validation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidContent) || errors.Is(err, ErrUnknownKind)
}
