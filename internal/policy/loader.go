package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eliteGoblin/focusd/remapd/internal/domain"
)

// fileConfig mirrors the policy file layout.
type fileConfig struct {
	FallThrough bool        `yaml:"fallthrough"`
	Groups      []fileGroup `yaml:"groups"`
}

type fileGroup struct {
	Match []fileMatch `yaml:"match"`
	Rules []fileRule  `yaml:"rules"`
}

type fileMatch struct {
	All   bool   `yaml:"all"`
	Class string `yaml:"class"`

	line int
}

type fileRule struct {
	On   string `yaml:"on"`
	Send string `yaml:"send"`
	Exec string `yaml:"exec"`
	Do   string `yaml:"do"`

	line int
}

func (m *fileMatch) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, "all", "class"); err != nil {
		return err
	}
	type plain fileMatch
	if err := value.Decode((*plain)(m)); err != nil {
		return err
	}
	m.line = value.Line
	return nil
}

func (r *fileRule) UnmarshalYAML(value *yaml.Node) error {
	if err := checkKeys(value, "on", "send", "exec", "do"); err != nil {
		return err
	}
	type plain fileRule
	if err := value.Decode((*plain)(r)); err != nil {
		return err
	}
	r.line = value.Line
	return nil
}

// checkKeys rejects mapping keys outside allowed.
func checkKeys(value *yaml.Node, allowed ...string) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", value.Line)
	}
	for i := 0; i+1 < len(value.Content); i += 2 {
		key := value.Content[i]
		known := false
		for _, a := range allowed {
			if key.Value == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("line %d: unknown field %q (expected one of %s)",
				key.Line, key.Value, strings.Join(allowed, ", "))
		}
	}
	return nil
}

// LoadFile reads and builds the policy at path.
func LoadFile(path string) (*domain.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	p, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Load builds a policy from YAML. Declaration order of groups, matches and
// rules is preserved exactly; nothing is returned on error.
func Load(data []byte) (*domain.Policy, error) {
	var cfg fileConfig

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	p := &domain.Policy{
		FallThrough: cfg.FallThrough,
		Groups:      make([]domain.Group, 0, len(cfg.Groups)),
	}

	for gi, fg := range cfg.Groups {
		g, err := buildGroup(fg)
		if err != nil {
			return nil, fmt.Errorf("group %d: %w", gi+1, err)
		}
		p.Groups = append(p.Groups, g)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	return p, nil
}

func buildGroup(fg fileGroup) (domain.Group, error) {
	g := domain.Group{
		Matches: make([]domain.Match, 0, len(fg.Match)),
		Rules:   make([]domain.Rule, 0, len(fg.Rules)),
	}

	for _, fm := range fg.Match {
		m, err := buildMatch(fm)
		if err != nil {
			return domain.Group{}, fmt.Errorf("line %d: %w", fm.line, err)
		}
		g.Matches = append(g.Matches, m)
	}

	for _, fr := range fg.Rules {
		r, err := buildRule(fr)
		if err != nil {
			return domain.Group{}, fmt.Errorf("line %d: %w", fr.line, err)
		}
		g.Rules = append(g.Rules, r)
	}

	return g, nil
}

func buildMatch(fm fileMatch) (domain.Match, error) {
	switch {
	case fm.All && fm.Class != "":
		return domain.Match{}, fmt.Errorf("match sets both all and class")
	case fm.All:
		return domain.AnyWindow(), nil
	case fm.Class != "":
		return domain.ClassIs(fm.Class), nil
	default:
		return domain.Match{}, fmt.Errorf("match needs either all: true or a class")
	}
}

func buildRule(fr fileRule) (domain.Rule, error) {
	if fr.On == "" {
		return domain.Rule{}, fmt.Errorf("rule is missing the trigger (on:)")
	}
	trigger, err := ParseKey(fr.On)
	if err != nil {
		return domain.Rule{}, err
	}

	set := 0
	for _, v := range []string{fr.Send, fr.Exec, fr.Do} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return domain.Rule{}, fmt.Errorf("rule %s needs exactly one of send, exec or do", trigger)
	}

	var action domain.Action
	switch {
	case fr.Send != "":
		k, err := ParseKey(fr.Send)
		if err != nil {
			return domain.Rule{}, err
		}
		action = domain.ForwardKey(k)
	case fr.Exec != "":
		action = domain.RunCommand(fr.Exec)
	case fr.Do != "":
		d, err := ParseDirective(fr.Do)
		if err != nil {
			return domain.Rule{}, err
		}
		action = domain.Placeholder(d)
	}

	return domain.Rule{Trigger: trigger, Action: action}, nil
}
