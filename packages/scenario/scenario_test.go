package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/assertions"
	"github.com/abdul-hamid-achik/bankspec/packages/webdriver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loginFile = `name: Login
platform: web
tags: [auth]
variables:
  baseUrl: https://bank.example
scenarios:
  - name: Login_Valid
    tags: [smoke]
    steps:
      - open: "{{baseUrl}}/login"
      - type: {target: "#username", value: demo}
      - action: click
        target: "#login"
        timeout: 5s
      - waitURL: /dashboard

  - name: Login_Locked
    platform: android
    steps:
      - click: accessibility=login_button
      - waitText: {target: "id=banner", value: Locked}
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(loginFile), "login.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Login", f.Name)
	require.Len(t, f.Scenarios, 2)

	valid := f.Scenarios[0]
	assert.Equal(t, "Login_Valid", valid.ID())
	assert.Equal(t, "web", valid.Platform)
	assert.Equal(t, []string{"auth", "smoke"}, valid.Tags)
	assert.Equal(t, "login.yaml", valid.File)
	assert.Equal(t, 7, valid.Line)
	assert.Equal(t, "https://bank.example", valid.Variables["baseUrl"])

	require.Len(t, valid.Steps, 4)
	assert.Equal(t, Step{Action: ActionOpen, Value: "{{baseUrl}}/login", Line: 10}, valid.Steps[0])
	assert.Equal(t, ActionType, valid.Steps[1].Action)
	assert.Equal(t, "#username", valid.Steps[1].Target)
	assert.Equal(t, "demo", valid.Steps[1].Value)
	assert.Equal(t, 5*time.Second, valid.Steps[2].Timeout)
	assert.Equal(t, "/dashboard", valid.Steps[3].Value)

	locked := f.Scenarios[1]
	assert.Equal(t, "android", locked.Platform)
	assert.Equal(t, []string{"auth"}, locked.Tags)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
		msg     string
	}{
		{
			name:    "empty",
			content: "",
			msg:     "EOF",
		},
		{
			name:    "no scenarios",
			content: "name: x\n",
			msg:     "no scenarios",
		},
		{
			name: "duplicate names",
			content: `scenarios:
  - name: A
    steps: [{click: "#a"}]
  - name: A
    steps: [{click: "#b"}]
`,
			line: 4,
			msg:  `duplicate scenario "A"`,
		},
		{
			name: "unknown action",
			content: `scenarios:
  - name: A
    steps:
      - hover: "#a"
`,
			line: 4,
			msg:  `unknown action "hover"`,
		},
		{
			name: "missing value",
			content: `scenarios:
  - name: A
    steps:
      - action: type
        target: "#a"
`,
			line: 4,
			msg:  "type needs a value",
		},
		{
			name: "no steps",
			content: `scenarios:
  - name: A
`,
			line: 2,
			msg:  "has no steps",
		},
		{
			name: "bad timeout",
			content: `scenarios:
  - name: A
    steps:
      - action: click
        target: "#a"
        timeout: soon
`,
			msg: "timeout",
		},
		{
			name: "unknown op",
			content: `scenarios:
  - name: A
    steps:
      - assertText: {target: "#balance", op: roughly, value: "100"}
`,
			line: 4,
			msg:  `unknown operator "roughly"`,
		},
		{
			name: "op on non-assertion",
			content: `scenarios:
  - name: A
    steps:
      - click: {target: "#a", op: equals}
`,
			line: 4,
			msg:  "click does not take an op",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content), "bad.yaml")
			require.Error(t, err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Contains(t, perr.Error(), tt.msg)
			if tt.line > 0 {
				assert.Equal(t, tt.line, perr.Line)
			}
		})
	}
}

func TestSkippedScenarioNeedsNoSteps(t *testing.T) {
	f, err := Parse([]byte(`scenarios:
  - name: Transfer_International
    skip: pending sandbox account
`), "transfer.yaml")
	require.NoError(t, err)
	assert.Equal(t, "pending sandbox account", f.Scenarios[0].Skip)
}

func TestAssertionOps(t *testing.T) {
	f, err := Parse([]byte(`scenarios:
  - name: Accounts_Balance
    steps:
      - assertTitle: Accounts
      - assertText: {target: "#balance", op: ">=", value: "1000"}
      - assertText: {target: "#pending", op: empty}
      - assertURL: /accounts
`), "accounts.yaml")
	require.NoError(t, err)

	steps := f.Scenarios[0].Steps
	require.Len(t, steps, 4)

	op, err := steps[0].Operator()
	require.NoError(t, err)
	assert.Equal(t, assertions.OpEquals, op)

	op, err = steps[1].Operator()
	require.NoError(t, err)
	assert.Equal(t, assertions.OpGreaterOrEqual, op)
	assert.Equal(t, `assertText #balance >= "1000"`, steps[1].String())

	op, err = steps[2].Operator()
	require.NoError(t, err)
	assert.Equal(t, assertions.OpEmpty, op)
	assert.Empty(t, steps[2].Value)

	op, err = steps[3].Operator()
	require.NoError(t, err)
	assert.Equal(t, assertions.OpContains, op)
	assert.Equal(t, "/accounts", steps[3].Value)
}

func TestParseLocator(t *testing.T) {
	tests := []struct {
		target string
		want   webdriver.By
	}{
		{"#login", webdriver.ByCSS("#login")},
		{"css=.btn", webdriver.ByCSS(".btn")},
		{"//button[@id='x']", webdriver.ByXPath("//button[@id='x']")},
		{"(//a)[2]", webdriver.ByXPath("(//a)[2]")},
		{"xpath=//div", webdriver.ByXPath("//div")},
		{"id=amount", webdriver.ByID("amount")},
		{"link=Sign out", webdriver.ByLinkText("Sign out")},
		{"partial=Sign", webdriver.ByPartialLinkText("Sign")},
		{"accessibility=login_button", webdriver.ByAccessibilityID("login_button")},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got, err := ParseLocator(tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLocator("  ")
	assert.Error(t, err)
	_, err = ParseLocator("xpath=")
	assert.Error(t, err)
}

func TestParseOrientation(t *testing.T) {
	o, err := ParseOrientation("Landscape")
	require.NoError(t, err)
	assert.Equal(t, webdriver.Landscape, o)

	o, err = ParseOrientation("portrait")
	require.NoError(t, err)
	assert.Equal(t, webdriver.Portrait, o)

	_, err = ParseOrientation("sideways")
	assert.Error(t, err)
}

func TestLoadPaths(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "payments")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "login.yaml"), []byte(loginFile), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "transfer.yml"), []byte(`scenarios:
  - name: Transfer_Domestic
    steps: [{click: "#send"}]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bankspec.yaml"), []byte("platform: web\n"), 0o644))
	hidden := filepath.Join(dir, ".bankspec")
	require.NoError(t, os.MkdirAll(hidden, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(hidden, "stale.yaml"), []byte("not: scenarios\n"), 0o644))

	files, err := LoadPaths([]string{dir})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "Login", files[0].Name)
	assert.Equal(t, "Transfer_Domestic", files[1].Scenarios[0].Name)
}

func TestLoadPathsRejectsDuplicatesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`scenarios:
  - name: Logout
    steps: [{click: "#logout"}]
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), content, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yaml"), content, 0o644))

	_, err := LoadPaths([]string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "also defined in")
}

func TestFilterSelect(t *testing.T) {
	f, err := Parse([]byte(loginFile), "login.yaml")
	require.NoError(t, err)
	files := []*File{f}

	assert.Len(t, Filter{}.Select(files), 2)
	assert.Len(t, Filter{Name: "Login_*"}.Select(files), 2)
	assert.Len(t, Filter{Name: "*Locked"}.Select(files), 1)
	assert.Len(t, Filter{Name: "*Val*"}.Select(files), 1)
	assert.Len(t, Filter{Tags: []string{"smoke"}}.Select(files), 1)
	assert.Len(t, Filter{Tags: []string{"nightly"}}.Select(files), 0)

	web := Filter{Platform: "WEB"}.Select(files)
	require.Len(t, web, 1)
	assert.Equal(t, "Login_Valid", web[0].Name)

	f.Scenarios[1].Only = true
	only := Filter{}.Select(files)
	require.Len(t, only, 1)
	assert.Equal(t, "Login_Locked", only[0].Name)
}
