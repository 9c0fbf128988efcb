package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateRegistry checks that every handler's input struct can be decoded by
// gohcl: each exported field carries an hcl tag and has a type cty can
// represent.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, op := range r.Ops() {
		h := r.handlers[op]
		inputType := h.InputType
		if inputType == nil {
			inputType = reflect.TypeOf(h.NewInput())
			for inputType.Kind() == reflect.Pointer {
				inputType = inputType.Elem()
			}
		}
		if inputType.Kind() != reflect.Struct {
			errs = append(errs, fmt.Sprintf("operation '%s': input type %s is not a struct", op, inputType))
			continue
		}

		for i := 0; i < inputType.NumField(); i++ {
			field := inputType.Field(i)
			if !field.IsExported() {
				continue
			}
			tag := field.Tag.Get("hcl")
			name := strings.Split(tag, ",")[0]
			if name == "" {
				errs = append(errs, fmt.Sprintf("operation '%s': field '%s' has no hcl tag", op, field.Name))
				continue
			}
			if _, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface()); err != nil {
				errs = append(errs, fmt.Sprintf("operation '%s', argument '%s': Go type %s has no cty equivalent: %v", op, name, field.Type, err))
			}
		}
		logger.Debug("Operation input validated.", "op", op, "input", inputType.Name())
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
