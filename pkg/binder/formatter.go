package binder

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
	"github.com/segmentio/encoding/json"
)

const (
	gt         = "gt"
	gte        = "gte"
	mx         = "max"
	mn         = "min"
	ne         = "ne"
	numeric    = "numeric"
	oneof      = "oneof"
	required   = "required"
	taskStatus = "taskstatus"
	taskType   = "tasktype"
)

// fixedMessages are the validation messages that only need the field name.
var fixedMessages = map[string]string{
	numeric:    "%q must be numeric",
	required:   "%q is required",
	taskStatus: "%q is not a known task status",
	taskType:   "%q is not a known task type",
}

func formatUnmarshalTypeError(err *json.UnmarshalTypeError) string {
	return fmt.Sprintf("%q should be of type %s", strings.Trim(err.Field, "."), err.Type)
}

func formatSchemaConversionError(err schema.ConversionError) string {
	return fmt.Sprintf("%q should be of type %s", err.Key, err.Type)
}

func formatValidationError(err validator.FieldError) string {
	field := err.Field()

	if format, ok := fixedMessages[err.Tag()]; ok {
		return fmt.Sprintf(format, field)
	}

	switch err.Tag() {
	case gt:
		return fmt.Sprintf("%q must be greater than %s", field, err.Param())
	case gte:
		return fmt.Sprintf("%q must be greater than or equal to %s", field, err.Param())
	case mx:
		return formatBound(err, "less than or equal to")
	case mn:
		return formatBound(err, "greater than or equal to")
	case ne:
		return fmt.Sprintf("%q can't be %q", field, err.Param())
	case oneof:
		valids := []string{}
		for _, p := range strings.Fields(err.Param()) {
			valids = append(valids, fmt.Sprintf("%q", p))
		}
		return fmt.Sprintf("%q must be one of the following: %s", field, strings.Join(valids, ", "))
	default:
		return fmt.Sprintf("%q failed the %q check", field, err.Tag())
	}
}

// formatBound words a min/max failure by kind: numbers compare by value,
// slices by element count and strings by character count.
func formatBound(err validator.FieldError, relation string) string {
	field, param := err.Field(), err.Param()

	//exhaustive:ignore
	switch err.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%q must be %s %s", field, relation, param)
	case reflect.Slice:
		return fmt.Sprintf("%q length must be %s %s %s", field, relation, param, plural("element", param))
	default:
		return fmt.Sprintf("%q length must be %s %s %s", field, relation, param, plural("character", param))
	}
}

func plural(noun, count string) string {
	if count == "1" {
		return noun
	}
	return noun + "s"
}
