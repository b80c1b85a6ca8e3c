package scenario

import (
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/assertions"
	"github.com/abdul-hamid-achik/bankspec/packages/webdriver"
	"gopkg.in/yaml.v3"
)

// Action names one kind of step.
type Action string

const (
	ActionOpen          Action = "open"
	ActionClick         Action = "click"
	ActionType          Action = "type"
	ActionClear         Action = "clear"
	ActionWaitVisible   Action = "waitVisible"
	ActionWaitInvisible Action = "waitInvisible"
	ActionWaitText      Action = "waitText"
	ActionWaitURL       Action = "waitURL"
	ActionWaitPageLoad  Action = "waitPageLoad"
	ActionAcceptAlert   Action = "acceptAlert"
	ActionDismissAlert  Action = "dismissAlert"
	ActionSwitchFrame   Action = "switchFrame"
	ActionRotate        Action = "rotate"
	ActionAssertTitle   Action = "assertTitle"
	ActionAssertText    Action = "assertText"
	ActionAssertURL     Action = "assertURL"
	ActionScreenshot    Action = "screenshot"
)

type actionRules struct {
	needsTarget bool
	needsValue  bool
	// scalarIsValue means the compact form "- action: x" sets Value, not Target
	scalarIsValue bool
	// defaultOp is the comparison used by assert actions without an op
	defaultOp assertions.Operator
}

var actions = map[Action]actionRules{
	ActionOpen:          {needsValue: true, scalarIsValue: true},
	ActionClick:         {needsTarget: true},
	ActionType:          {needsTarget: true, needsValue: true},
	ActionClear:         {needsTarget: true},
	ActionWaitVisible:   {needsTarget: true},
	ActionWaitInvisible: {needsTarget: true},
	ActionWaitText:      {needsTarget: true, needsValue: true},
	ActionWaitURL:       {needsValue: true, scalarIsValue: true},
	ActionWaitPageLoad:  {},
	ActionAcceptAlert:   {},
	ActionDismissAlert:  {},
	ActionSwitchFrame:   {scalarIsValue: true},
	ActionRotate:        {needsValue: true, scalarIsValue: true},
	ActionAssertTitle:   {needsValue: true, scalarIsValue: true, defaultOp: assertions.OpEquals},
	ActionAssertText:    {needsTarget: true, needsValue: true, defaultOp: assertions.OpContains},
	ActionAssertURL:     {needsValue: true, scalarIsValue: true, defaultOp: assertions.OpContains},
	ActionScreenshot:    {scalarIsValue: true},
}

// Known reports whether a is a supported action.
func (a Action) Known() bool {
	_, ok := actions[a]
	return ok
}

// IsAssertion reports whether a compares page state against a value.
func (a Action) IsAssertion() bool {
	return a == ActionAssertTitle || a == ActionAssertText || a == ActionAssertURL
}

// Step is one structured UI action.
type Step struct {
	Action  Action        `yaml:"action"`
	Target  string        `yaml:"target,omitempty"`
	Value   string        `yaml:"value,omitempty"`
	Op      string        `yaml:"op,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Line    int           `yaml:"-"`
}

type stepFields struct {
	Action  Action `yaml:"action"`
	Target  string `yaml:"target"`
	Value   string `yaml:"value"`
	Op      string `yaml:"op"`
	Timeout string `yaml:"timeout"`
}

// UnmarshalYAML accepts the long form {action: click, target: "#x"} and
// the compact forms {click: "#x"} and {type: {target: "#x", value: y}}.
func (s *Step) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: step must be a mapping", node.Line)
	}
	s.Line = node.Line

	var f stepFields
	if hasKey(node, "action") {
		if err := node.Decode(&f); err != nil {
			return err
		}
	} else {
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: compact step must have exactly one action key", node.Line)
		}
		key, val := node.Content[0], node.Content[1]
		f.Action = Action(key.Value)
		switch val.Kind {
		case yaml.ScalarNode:
			if actions[f.Action].scalarIsValue {
				f.Value = val.Value
			} else {
				f.Target = val.Value
			}
		case yaml.MappingNode:
			if err := val.Decode(&f); err != nil {
				return err
			}
			f.Action = Action(key.Value)
		default:
			return fmt.Errorf("line %d: unsupported value for %s", val.Line, key.Value)
		}
	}

	s.Action = f.Action
	s.Target = f.Target
	s.Value = f.Value
	s.Op = f.Op
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("line %d: timeout: %w", node.Line, err)
		}
		s.Timeout = d
	}
	return nil
}

func hasKey(node *yaml.Node, key string) bool {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return true
		}
	}
	return false
}

// Operator returns the comparison an assert step applies.
func (s Step) Operator() (assertions.Operator, error) {
	if s.Op == "" {
		return actions[s.Action].defaultOp, nil
	}
	return assertions.ParseOperator(s.Op)
}

// Validate reports what is missing or malformed in s.
func (s Step) Validate() error {
	rules, ok := actions[s.Action]
	if !ok {
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if rules.needsTarget {
		if s.Target == "" {
			return fmt.Errorf("%s needs a target", s.Action)
		}
		if _, err := ParseLocator(s.Target); err != nil {
			return err
		}
	}
	needsValue := rules.needsValue
	if s.Op != "" {
		if !s.Action.IsAssertion() {
			return fmt.Errorf("%s does not take an op", s.Action)
		}
		op, err := assertions.ParseOperator(s.Op)
		if err != nil {
			return err
		}
		needsValue = op.NeedsExpected()
	}
	if needsValue && s.Value == "" {
		return fmt.Errorf("%s needs a value", s.Action)
	}
	if s.Action == ActionRotate {
		if _, err := ParseOrientation(s.Value); err != nil && !strings.Contains(s.Value, "{{") {
			return err
		}
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%s timeout must be positive", s.Action)
	}
	return nil
}

func (s Step) String() string {
	if s.Op != "" {
		if s.Target == "" {
			return fmt.Sprintf("%s %s %q", s.Action, s.Op, s.Value)
		}
		return fmt.Sprintf("%s %s %s %q", s.Action, s.Target, s.Op, s.Value)
	}
	switch {
	case s.Target != "" && s.Value != "":
		return fmt.Sprintf("%s %s %q", s.Action, s.Target, s.Value)
	case s.Target != "":
		return fmt.Sprintf("%s %s", s.Action, s.Target)
	case s.Value != "":
		return fmt.Sprintf("%s %q", s.Action, s.Value)
	}
	return string(s.Action)
}

var locatorPrefixes = []struct {
	prefix string
	build  func(string) webdriver.By
}{
	{"css=", webdriver.ByCSS},
	{"xpath=", webdriver.ByXPath},
	{"id=", webdriver.ByID},
	{"link=", webdriver.ByLinkText},
	{"partial=", webdriver.ByPartialLinkText},
	{"accessibility=", webdriver.ByAccessibilityID},
}

// ParseLocator turns a step target into a locator. Unprefixed targets
// starting with / or ( are XPath, everything else CSS.
func ParseLocator(target string) (webdriver.By, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return webdriver.By{}, fmt.Errorf("empty locator")
	}
	for _, p := range locatorPrefixes {
		if rest, ok := strings.CutPrefix(target, p.prefix); ok {
			if rest == "" {
				return webdriver.By{}, fmt.Errorf("empty locator after %s", p.prefix)
			}
			return p.build(rest), nil
		}
	}
	if strings.HasPrefix(target, "/") || strings.HasPrefix(target, "(") {
		return webdriver.ByXPath(target), nil
	}
	return webdriver.ByCSS(target), nil
}

// ParseOrientation accepts portrait or landscape, case-insensitively.
func ParseOrientation(s string) (webdriver.Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "portrait":
		return webdriver.Portrait, nil
	case "landscape":
		return webdriver.Landscape, nil
	}
	return "", fmt.Errorf("unknown orientation %q", s)
}
