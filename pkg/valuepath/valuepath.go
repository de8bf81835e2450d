// Package valuepath extracts nested values from decoded fact data using
// JSON-path-like selectors such as `$.items[0].name`.
//
// Only the dotted/bracketed subset is supported: field names and numeric
// indices. Walking off the end of the data is never an error; it yields an
// absent value instead.
package valuepath

import (
	"reflect"
	"strconv"
	"strings"
)

// Tokenize splits a path into its field and index tokens.
// A leading `$` root marker is dropped, as are empty tokens.
//
//	Tokenize("$.a.b[0].c") // ["a", "b", "0", "c"]
func Tokenize(path string) []string {
	fields := strings.FieldsFunc(path, func(r rune) bool {
		return r == '.' || r == '[' || r == ']'
	})

	tokens := make([]string, 0, len(fields))
	for i, f := range fields {
		if i == 0 && f == "$" {
			continue
		}

		tokens = append(tokens, f)
	}

	return tokens
}

// Get returns the value at path within v. An empty path returns v unchanged.
// The second return value is false when any step of the path is absent, or
// walks into a value that is not a map, slice, array or struct.
func Get(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}

	cur := v
	for _, tok := range Tokenize(path) {
		next, ok := step(cur, tok)
		if !ok {
			return nil, false
		}

		cur = next
	}

	return cur, true
}

// step resolves a single token against v.
func step(v any, tok string) (any, bool) {
	switch t := v.(type) {
	case nil:
		return nil, false

	case map[string]any:
		next, ok := t[tok]
		return next, ok

	case []any:
		return index(len(t), tok, func(i int) any { return t[i] })
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}

		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		return mapEntry(rv, tok)

	case reflect.Slice, reflect.Array:
		return index(rv.Len(), tok, func(i int) any { return rv.Index(i).Interface() })

	case reflect.Struct:
		return structField(rv, tok)

	default:
		return nil, false
	}
}

func index(n int, tok string, at func(int) any) (any, bool) {
	i, err := strconv.Atoi(tok)
	if err != nil || i < 0 || i >= n {
		return nil, false
	}

	return at(i), true
}

func mapEntry(rv reflect.Value, tok string) (any, bool) {
	keyType := rv.Type().Key()

	var key reflect.Value

	switch keyType.Kind() {
	case reflect.String:
		key = reflect.ValueOf(tok).Convert(keyType)

	case reflect.Interface:
		// YAML decoders may produce map[any]any with string or integer keys.
		if val := rv.MapIndex(reflect.ValueOf(tok)); val.IsValid() {
			return val.Interface(), true
		}

		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, false
		}

		for _, k := range []any{n, int(n), uint64(n)} { //nolint:gosec // G115: only used as a lookup key.
			if val := rv.MapIndex(reflect.ValueOf(k)); val.IsValid() {
				return val.Interface(), true
			}
		}

		return nil, false

	default:
		return nil, false
	}

	val := rv.MapIndex(key)
	if !val.IsValid() {
		return nil, false
	}

	return val.Interface(), true
}

// structField matches exported fields by name or by their json tag.
func structField(rv reflect.Value, tok string) (any, bool) {
	rt := rv.Type()
	for i := range rt.NumField() {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}

		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == tok || (name == "" && f.Name == tok) {
			return rv.Field(i).Interface(), true
		}
	}

	return nil, false
}
