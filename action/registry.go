package action

import "fmt"

// Compile validates the Schemas table at startup: every Kind in AllKinds has
// an entry, every xor group's members are disjoint from RequiredParams, and
// every required/optional/xor param has both a type and a consensus rule.
// Declared shape is validated once at registration rather than on every
// call.
func Compile() error {
	for _, kind := range AllKinds {
		schema, ok := Schemas[kind]
		if !ok {
			return fmt.Errorf("action: no schema declared for kind %q", kind)
		}
		if schema.Kind != kind {
			return fmt.Errorf("action: schema for %q has mismatched Kind %q", kind, schema.Kind)
		}
		if schema.Priority != Priority[kind] {
			return fmt.Errorf("action: schema for %q has priority %d, want %d", kind, schema.Priority, Priority[kind])
		}

		params := allParams(schema)
		for _, group := range schema.XorParams {
			for _, p := range group {
				if containsString(schema.RequiredParams, p) {
					return fmt.Errorf("action: %q declares %q both required and in an xor group", kind, p)
				}
			}
		}
		for _, p := range params {
			if _, ok := schema.ParamTypes[p]; !ok {
				return fmt.Errorf("action: %q param %q has no declared type", kind, p)
			}
			if _, ok := schema.ConsensusRules[p]; !ok {
				return fmt.Errorf("action: %q param %q has no declared consensus rule", kind, p)
			}
		}
	}
	return nil
}

func allParams(s Schema) []string {
	out := append([]string{}, s.RequiredParams...)
	out = append(out, s.OptionalParams...)
	for _, group := range s.XorParams {
		out = append(out, group...)
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func containsString(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}
	return false
}

// Lookup returns the schema for kind, or false if kind is undeclared.
func Lookup(kind Kind) (Schema, bool) {
	s, ok := Schemas[kind]
	return s, ok
}
