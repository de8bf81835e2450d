package expr

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"

	"github.com/macropower/rulesim/pkg/semver"
	"github.com/macropower/rulesim/pkg/valuepath"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Math(),
		ext.Strings(),
		ext.Lists(),

		// `pathBase` returns the last element of the path.
		// Example: pathBase(filePath) in ["package.json", "tsconfig.json"].
		cel.Function("pathBase",
			cel.Overload("path_base", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathBase: invalid string value")
					}

					return types.String(filepath.Base(pathValue))
				}),
			),
		),

		// `pathDir` returns all but the last element of the path.
		// Example: pathDir(filePath).contains("/components").
		cel.Function("pathDir",
			cel.Overload("path_dir", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathDir: invalid string value")
					}

					return types.String(filepath.Dir(pathValue))
				}),
			),
		),

		// `pathExt` returns the file extension of the path.
		// Example: pathExt(fileName) in [".ts", ".tsx"].
		cel.Function("pathExt",
			cel.Overload("path_ext", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(path ref.Val) ref.Val {
					pathValue, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathExt: invalid string value")
					}

					return types.String(filepath.Ext(pathValue))
				}),
			),
		),

		// `yamlPath` parses YAML (or JSON) content and extracts a value using a YAML path.
		// Returns the value at the specified path, or null if the path doesn't exist or the content can't be parsed.
		// Example: yamlPath(files["package.json"], "$.scripts.test") != null.
		cel.Function("yamlPath",
			cel.Overload("yaml_path", []*cel.Type{cel.StringType, cel.StringType}, cel.DynType,
				cel.BinaryBinding(func(content, yamlPathExpr ref.Val) ref.Val {
					contentStr, ok := content.(types.String).Value().(string)
					if !ok {
						return types.NewErr("yamlPath: invalid content")
					}

					yamlPathStr, ok := yamlPathExpr.(types.String).Value().(string)
					if !ok {
						return types.NewErr("yamlPath: invalid yaml path")
					}

					logger := slog.With(slog.String("yamlPath", yamlPathStr))

					path, err := yaml.PathString(yamlPathStr)
					if err != nil {
						logger.Debug("invalid YAML path, returning null",
							slog.Any("error", err),
						)

						return types.NullValue
					}

					var value any

					err = path.Read(strings.NewReader(contentStr), &value)
					if err != nil {
						logger.Debug("failed to extract value from YAML, returning null",
							slog.Any("error", err),
						)

						return types.NullValue
					}

					return ConvertToCELValue(value)
				}),
			),
		),

		// `valuePath` extracts a nested value using a `$.a.b[0]` style path.
		// Returns null when any step of the path is absent.
		// Example: valuePath(manifest, "$.engines.node") != null.
		cel.Function("valuePath",
			cel.Overload("value_path", []*cel.Type{cel.DynType, cel.StringType}, cel.DynType,
				cel.BinaryBinding(func(value, path ref.Val) ref.Val {
					pathStr, ok := path.(types.String).Value().(string)
					if !ok {
						return types.NewErr("valuePath: invalid path")
					}

					v, ok := valuepath.Get(FromCELValue(value), pathStr)
					if !ok {
						return types.NullValue
					}

					return ConvertToCELValue(v)
				}),
			),
		),

		// `semverCompare` returns -1, 0 or 1 comparing two versions. Range
		// prefixes such as `^` and `~` are ignored.
		// Example: semverCompare(valuePath(manifest, "$.dependencies.react"), "18.0.0") < 0.
		cel.Function("semverCompare",
			cel.Overload("semver_compare", []*cel.Type{cel.StringType, cel.StringType}, cel.IntType,
				cel.BinaryBinding(func(a, b ref.Val) ref.Val {
					aStr, ok := a.(types.String).Value().(string)
					if !ok {
						return types.NewErr("semverCompare: invalid version")
					}

					bStr, ok := b.(types.String).Value().(string)
					if !ok {
						return types.NewErr("semverCompare: invalid version")
					}

					n, ok := semver.Compare(aStr, bStr)
					if !ok {
						return types.NewErr("semverCompare: %q or %q is not a semantic version", aStr, bStr)
					}

					return types.Int(n)
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{
		cel.InterruptCheckFrequency(100),
	}
}

// ConvertToCELValue converts a Go value to a CEL value.
// Handles common YAML types and returns null for unsupported types.
//
//nolint:ireturn // Following CEL's function signature.
func ConvertToCELValue(value any) ref.Val {
	switch v := value.(type) {
	case nil:
		return types.NullValue

	case bool:
		return types.Bool(v)

	case int:
		return types.Int(v)

	case int8:
		return types.Int(int64(v))

	case int16:
		return types.Int(int64(v))

	case int32:
		return types.Int(int64(v))

	case int64:
		return types.Int(v)

	case uint:
		// Check for overflow when converting to int64.
		if v > math.MaxInt64 {
			return types.Double(float64(v))
		}

		return types.Int(int64(v))

	case uint8:
		return types.Int(int64(v))

	case uint16:
		return types.Int(int64(v))

	case uint32:
		return types.Int(int64(v))

	case uint64:
		// Check for overflow when converting to int64.
		if v > math.MaxInt64 {
			return types.Double(float64(v))
		}

		return types.Int(int64(v))

	case float32:
		return types.Double(float64(v))

	case float64:
		return types.Double(v)

	case string:
		return types.String(v)

	case []string:
		return types.NewStringList(types.DefaultTypeAdapter, v)

	case []any:
		// Convert slice to CEL list.
		celValues := make([]ref.Val, len(v))
		for i, item := range v {
			celValues[i] = ConvertToCELValue(item)
		}

		return types.NewDynamicList(types.DefaultTypeAdapter, celValues)

	case map[any]any:
		// Convert map to CEL map.
		celMap := make(map[ref.Val]ref.Val)
		for key, val := range v {
			celKey := ConvertToCELValue(key)
			celVal := ConvertToCELValue(val)
			celMap[celKey] = celVal
		}

		return types.NewDynamicMap(types.DefaultTypeAdapter, celMap)

	case map[string]any:
		// Convert string map to CEL map.
		celMap := make(map[ref.Val]ref.Val)
		for key, val := range v {
			celKey := types.String(key)
			celVal := ConvertToCELValue(val)
			celMap[celKey] = celVal
		}

		return types.NewDynamicMap(types.DefaultTypeAdapter, celMap)

	case map[string]string:
		return types.NewStringStringMap(types.DefaultTypeAdapter, v)

	case ref.Val:
		return v

	default:
		// For unsupported types, return null instead of erroring.
		return types.NullValue
	}
}

// FromCELValue converts a CEL value to a plain Go value: nil, bool, int64,
// uint64, float64, string, []byte, []any or map[string]any.
func FromCELValue(v ref.Val) any {
	switch val := v.(type) {
	case nil, types.Null:
		return nil

	case traits.Mapper:
		out := map[string]any{}

		it := val.Iterator()
		for it.HasNext() == types.True {
			k := it.Next()
			out[fmt.Sprint(FromCELValue(k))] = FromCELValue(val.Get(k))
		}

		return out

	case traits.Lister:
		out := []any{}

		it := val.Iterator()
		for it.HasNext() == types.True {
			out = append(out, FromCELValue(it.Next()))
		}

		return out
	}

	return v.Value()
}
