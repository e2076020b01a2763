package postgres

import (
	"reflect"
	"sync"
)

// Columns returns the column names declared by the "db" tags of T,
// skipping untagged fields and fields tagged "-".
//
// Usage:
//
//	cols := Columns[ingredient.Ingredient]()
//	// ["id", "name", "type", "unit", "initial_quantity", "version", ...]
func Columns[T any]() []string {
	var zero T
	meta := metadataOf(reflect.TypeOf(zero))
	cols := make([]string, 0, len(meta))
	for _, f := range meta {
		cols = append(cols, f.column)
	}
	return cols
}

type taggedField struct {
	index  int
	column string
}

// metadataCache holds []taggedField per reflect.Type.
var metadataCache sync.Map

func metadataOf(t reflect.Type) []taggedField {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := metadataCache.Load(t); ok {
		return cached.([]taggedField)
	}

	var fields []taggedField
	if t.Kind() == reflect.Struct {
		for i := range t.NumField() {
			tag := t.Field(i).Tag.Get("db")
			if tag == "" || tag == "-" {
				continue
			}
			fields = append(fields, taggedField{index: i, column: tag})
		}
	}
	metadataCache.Store(t, fields)
	return fields
}

// ColumnMap converts a struct into column → value using its "db" tags.
// Only the listed columns are kept when cols is not empty.
func ColumnMap(v any, cols ...string) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	var keep map[string]struct{}
	if len(cols) > 0 {
		keep = make(map[string]struct{}, len(cols))
		for _, c := range cols {
			keep[c] = struct{}{}
		}
	}

	meta := metadataOf(rv.Type())
	res := make(map[string]any, len(meta))
	for _, f := range meta {
		if keep != nil {
			if _, ok := keep[f.column]; !ok {
				continue
			}
		}
		res[f.column] = rv.Field(f.index).Interface()
	}
	return res
}
