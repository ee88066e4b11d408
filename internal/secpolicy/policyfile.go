package secpolicy

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadPolicyFile reads a CSP policy from a YAML sequence of
// {directive, sources} entries, keeping file order.
//
//	- directive: default-src
//	  sources: ["'self'"]
//	- directive: upgrade-insecure-requests
func LoadPolicyFile(path string) (Policy, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csp policy %s: %w", path, err)
	}
	p, err := ParsePolicy(b)
	if err != nil {
		return nil, fmt.Errorf("csp policy %s: %w", path, err)
	}
	return p, nil
}

// ParsePolicy decodes and checks a YAML policy document.
func ParsePolicy(b []byte) (Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if len(p) == 0 {
		return nil, fmt.Errorf("policy has no directives")
	}

	seen := make(map[string]struct{}, len(p))
	for i, d := range p {
		name := strings.ToLower(strings.TrimSpace(d.Name))
		if name == "" {
			return nil, fmt.Errorf("entry %d: directive name is empty", i)
		}
		if strings.ContainsAny(name, " ;,") {
			return nil, fmt.Errorf("entry %d: invalid directive name %q", i, d.Name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("entry %d: duplicate directive %q", i, name)
		}
		seen[name] = struct{}{}
		for _, s := range d.Sources {
			if s == "" || strings.ContainsAny(s, " \t\n;") {
				return nil, fmt.Errorf("directive %s: invalid source %q", name, s)
			}
		}
		p[i].Name = name
	}
	return p, nil
}
