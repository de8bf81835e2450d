// Command schemagen writes the JSON schema of a rulesim document kind, for
// publishing alongside the API types.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/macropower/rulesim/api/v1beta1/configs"
	"github.com/macropower/rulesim/api/v1beta1/rules"
)

var (
	kind    = flag.String("kind", "config", "Document kind, one of: config, rule")
	outFile = flag.String("o", "schema.json", "Output file for the generated schema")
)

func main() {
	flag.Parse()

	var generate func() ([]byte, error)

	switch *kind {
	case "config":
		generate = configs.Schema
	case "rule":
		generate = rules.Schema
	default:
		log.Fatalf("unknown kind %q", *kind)
	}

	b, err := generate()
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(*outFile, b, 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
