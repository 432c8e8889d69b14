package querybuilder

import (
	"errors"
	"reflect"
	"strings"
	"sync"
)

var (
	errNilModel     = errors.New("model cannot be nil")
	errNotStruct    = errors.New("model must be struct")
	errNoDBColumns  = errors.New("model has no db columns")
	modelFieldCache sync.Map // reflect.Type -> []modelField
)

type modelField struct {
	index  int
	column string
}

// InsertModel builds an INSERT from the exported db-tagged fields of model.
func InsertModel(table string, model any, suffix string) (string, []any, error) {
	value, err := structValue(model)
	if err != nil {
		return "", nil, err
	}
	fields := fieldsOf(value.Type())
	if len(fields) == 0 {
		return "", nil, errNoDBColumns
	}

	cols := make([]string, len(fields))
	vals := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = f.column
		vals[i] = value.Field(f.index).Interface()
	}
	return InsertInto(table).Columns(cols...).Values(vals...).Suffix(suffix).ToSQL()
}

// ModelColumns lists the db columns of model in field order.
func ModelColumns(model any) []string {
	typ := reflect.TypeOf(model)
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ == nil || typ.Kind() != reflect.Struct {
		return nil
	}
	fields := fieldsOf(typ)
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.column
	}
	return cols
}

func structValue(model any) (reflect.Value, error) {
	value := reflect.ValueOf(model)
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return reflect.Value{}, errNilModel
		}
		value = value.Elem()
	}
	if value.Kind() != reflect.Struct {
		return reflect.Value{}, errNotStruct
	}
	return value, nil
}

func fieldsOf(typ reflect.Type) []modelField {
	if cached, ok := modelFieldCache.Load(typ); ok {
		return cached.([]modelField)
	}

	fields := make([]modelField, 0, typ.NumField())
	for i := range typ.NumField() {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		col, _, _ := strings.Cut(field.Tag.Get("db"), ",")
		col = strings.TrimSpace(col)
		if col == "" || col == "-" {
			continue
		}
		fields = append(fields, modelField{index: i, column: col})
	}
	actual, _ := modelFieldCache.LoadOrStore(typ, fields)
	return actual.([]modelField)
}
