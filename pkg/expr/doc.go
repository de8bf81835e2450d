// Package expr provides CEL (Common Expression Language) functionality
// for user-defined facts and operators.
//
// It creates CEL environments with custom functions for:
//   - File path operations (pathBase, pathDir, pathExt)
//   - YAML/JSON content extraction (yamlPath)
//   - Nested value extraction (valuePath)
//   - Semantic version comparison (semverCompare)
//
// Variables are declared by the caller when creating an [Environment].
package expr
