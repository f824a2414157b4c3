package binder

import (
	"fmt"
	"strconv"
	"strings"

	language "github.com/hanpama/federon/internal/language"
	schema "github.com/hanpama/federon/internal/schema"
)

// coerceVariableValues coerces the raw JSON-decoded variables map against an
// operation's variable definitions, applying defaults and rejecting missing
// required values (InvalidVariableType).
func coerceVariableValues(s *schema.Schema, operation *language.OperationDefinition, raw map[string]any) (map[string]any, []*Error) {
	if raw == nil {
		raw = map[string]any{}
	}
	coerced := make(map[string]any, len(operation.VariableDefinitions))
	var errs []*Error

	seen := make(map[string]bool, len(operation.VariableDefinitions))
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		if seen[name] {
			errs = append(errs, errf(DuplicateVariable, varDef.Position.Line, varDef.Position.Column, "variable $%s is declared more than once", name))
			continue
		}
		seen[name] = true

		t := typeRefFromAST(varDef.Type)
		val, ok := raw[name]
		if !ok {
			if varDef.DefaultValue != nil {
				coerced[name] = astValueToGo(varDef.DefaultValue)
				continue
			}
			if t.IsNonNull() {
				errs = append(errs, errf(InvalidVariableType, varDef.Position.Line, varDef.Position.Column,
					"variable $%s of required type %s was not provided", name, varDef.Type.String()))
			}
			continue
		}
		if val == nil {
			if t.IsNonNull() {
				errs = append(errs, errf(InvalidVariableType, varDef.Position.Line, varDef.Position.Column,
					"variable $%s of non-null type %s cannot be null", name, varDef.Type.String()))
				continue
			}
			coerced[name] = nil
			continue
		}
		cv, err := coerceValue(val, t)
		if err != nil {
			errs = append(errs, errf(InvalidVariableType, varDef.Position.Line, varDef.Position.Column,
				"variable $%s of type %s cannot be coerced: %v", name, varDef.Type.String(), err))
			continue
		}
		coerced[name] = cv
	}
	return coerced, errs
}

// checkUnusedVariables reports UnusedVariable for every declared variable
// never referenced from the operation's selection set or directives.
func checkUnusedVariables(operation *language.OperationDefinition, used map[string]bool) []*Error {
	var errs []*Error
	for _, varDef := range operation.VariableDefinitions {
		if !used[varDef.Variable] {
			errs = append(errs, errf(UnusedVariable, varDef.Position.Line, varDef.Position.Column,
				"variable $%s is never used", varDef.Variable))
		}
	}
	return errs
}

func coerceArgumentValues(fieldDef *schema.Field, arguments language.ArgumentList, variableValues map[string]any, used map[string]bool, line, col int) (map[string]any, []*Error) {
	coerced := make(map[string]any, len(arguments))
	var errs []*Error

	for _, arg := range arguments {
		var argDef *schema.InputValue
		for _, a := range fieldDef.Arguments {
			if a.Name == arg.Name {
				argDef = a
				break
			}
		}
		if argDef == nil {
			errs = append(errs, errf(UnknownFieldArgument, line, col, "unknown argument %q", arg.Name))
			continue
		}
		val, refs := valueFromASTWithVars(arg.Value, variableValues)
		for _, r := range refs {
			used[r] = true
		}
		if val == nil {
			continue
		}
		cv, err := coerceValue(val, argDef.Type)
		if err != nil {
			errs = append(errs, errf(InvalidVariableType, line, col, "argument %q cannot be coerced: %v", arg.Name, err))
			continue
		}
		coerced[arg.Name] = cv
	}
	for _, argDef := range fieldDef.Arguments {
		if _, ok := coerced[argDef.Name]; ok {
			continue
		}
		if argDef.DefaultValue != nil {
			coerced[argDef.Name] = argDef.DefaultValue
		} else if schema.IsNonNull(argDef.Type) {
			errs = append(errs, errf(InvalidVariableType, line, col, "argument %q of required type was not provided", argDef.Name))
		}
	}
	return coerced, errs
}

// valueFromASTWithVars resolves an AST value against coerced variables,
// reporting every $variable name it touches so callers can track usage.
func valueFromASTWithVars(value *language.Value, variableValues map[string]any) (any, []string) {
	if value == nil {
		return nil, nil
	}
	if value.Kind == language.Variable {
		name := value.Raw
		if v, ok := variableValues[name]; ok {
			return v, []string{name}
		}
		return nil, []string{name}
	}
	return astValueToGo(value), nil
}

func astValueToGo(value *language.Value) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.IntValue:
		iv, _ := strconv.Atoi(value.Raw)
		return iv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.NullValue:
		return nil
	case language.EnumValue:
		return value.Raw
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = astValueToGo(c.Value)
		}
		return out
	case language.ObjectValue:
		m := make(map[string]any)
		for _, f := range value.Children {
			m[f.Name] = astValueToGo(f.Value)
		}
		return m
	default:
		return nil
	}
}

func coerceValue(value any, targetType *schema.TypeRef) (any, error) {
	if schema.IsNonNull(targetType) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type")
		}
		return coerceValue(value, schema.Unwrap(targetType))
	}
	if value == nil {
		return nil, nil
	}
	if schema.IsList(targetType) {
		return coerceListValue(value, targetType)
	}
	switch schema.GetNamedType(targetType) {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	default:
		return value, nil
	}
}

func coerceListValue(value any, listType *schema.TypeRef) (any, error) {
	inner := schema.Unwrap(listType)
	if slice, ok := value.([]any); ok {
		out := make([]any, len(slice))
		for i, item := range slice {
			cv, err := coerceValue(item, inner)
			if err != nil {
				return nil, err
			}
			out[i] = cv
		}
		return out, nil
	}
	cv, err := coerceValue(value, inner)
	if err != nil {
		return nil, err
	}
	return []any{cv}, nil
}

func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case float32:
		return int(v), nil
	case string:
		if iv, err := strconv.Atoi(v); err == nil {
			return iv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		if fv, err := strconv.ParseFloat(v, 64); err == nil {
			return fv, nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to String", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
}

func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
	}
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return schema.NonNullType(typeRefFromAST(&language.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return schema.NamedType(t.NamedType)
	}
	if t.Elem != nil {
		return schema.ListType(typeRefFromAST(t.Elem))
	}
	return nil
}

func strip(name string) string { return strings.TrimPrefix(name, "$") }
