// Package config loads rulesim documents.
//
// It provides a generic [Loader] that decodes YAML documents into any
// [v1beta1.Object], validates them against a JSON schema, and annotates
// errors with the offending source.
package config
