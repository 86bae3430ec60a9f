// Package payloadschema validates admin-supplied source rule documents
// against the embedded JSON schema before they reach the database.
package payloadschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/slanglab/internal/db"
)

//go:embed source_rules.schema.json
var sourceRulesSchemaJSON string

const sourceRulesSchemaName = "source_rules.schema.json"

// SourceRulesDocument is an admin-supplied batch of source rules.
type SourceRulesDocument struct {
	PayloadVersion string             `json:"payload_version"`
	Rules          []db.SourceRuleRow `json:"rules"`
}

var sourceRulesSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	if err := compiler.AddResource(sourceRulesSchemaName, strings.NewReader(sourceRulesSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile(sourceRulesSchemaName)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
})

// ValidateSourceRulesPayload checks payload against the schema and the
// cross-field rules, and returns the rules with names and domains lowercased
// and duplicate domains dropped.
func ValidateSourceRulesPayload(payload json.RawMessage) (*SourceRulesDocument, error) {
	trimmed := bytes.TrimSpace(payload)
	value, err := decodeSingleValue(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := sourceRulesSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return nil, fmt.Errorf("schema validation failed: %s", describeValidationError(verr))
		}
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var doc SourceRulesDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	for i := range doc.Rules {
		normalizeRule(&doc.Rules[i])
	}
	if err := checkRuleSet(doc.Rules); err != nil {
		return nil, err
	}
	return &doc, nil
}

// decodeSingleValue rejects empty input and anything after the first JSON
// value.
func decodeSingleValue(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("payload contains trailing content")
	}
	return value, nil
}

// describeValidationError reports the deepest failing location, which is the
// one an admin can act on.
func describeValidationError(err *jsonschema.ValidationError) string {
	leaf := err
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	location := leaf.InstanceLocation
	if location == "" {
		location = "/"
	}
	return fmt.Sprintf("%s: %s", location, leaf.Message)
}

func normalizeRule(rule *db.SourceRuleRow) {
	rule.Name = strings.ToLower(strings.TrimSpace(rule.Name))
	rule.DomainAllowlist = normalizeDomains(rule.DomainAllowlist)
	rule.DomainBlocklist = normalizeDomains(rule.DomainBlocklist)
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, domain := range domains {
		domain = strings.ToLower(strings.TrimSpace(domain))
		if domain == "" || slices.Contains(out, domain) {
			continue
		}
		out = append(out, domain)
	}
	return out
}

// checkRuleSet covers what the schema cannot: unique rule names and a domain
// listed on both sides of the same rule.
func checkRuleSet(rules []db.SourceRuleRow) error {
	seen := make(map[string]struct{}, len(rules))
	for i, rule := range rules {
		if _, dup := seen[rule.Name]; dup {
			return fmt.Errorf("rules[%d]: duplicate rule name %q", i, rule.Name)
		}
		seen[rule.Name] = struct{}{}

		for _, domain := range rule.DomainBlocklist {
			if slices.Contains(rule.DomainAllowlist, domain) {
				return fmt.Errorf("rules[%d]: domain %q is both allowed and blocked", i, domain)
			}
		}
	}
	return nil
}
