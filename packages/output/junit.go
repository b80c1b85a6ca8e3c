package output

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
	"github.com/abdul-hamid-achik/bankspec/packages/report"
)

// JUnit XML structures

// JUnitTestSuites is the root element
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Name       string           `xml:"name,attr,omitempty"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	Errors     int              `xml:"errors,attr"`
	Skipped    int              `xml:"skipped,attr"`
	Time       float64          `xml:"time,attr"`
	Timestamp  string           `xml:"timestamp,attr,omitempty"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite represents the tests of one platform
type JUnitTestSuite struct {
	XMLName   xml.Name        `xml:"testsuite"`
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr,omitempty"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase represents a single test case
type JUnitTestCase struct {
	XMLName   xml.Name      `xml:"testcase"`
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Error     *JUnitError   `xml:"error,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure represents a test failure
type JUnitFailure struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitError represents a test error
type JUnitError struct {
	Message string `xml:"message,attr,omitempty"`
	Type    string `xml:"type,attr,omitempty"`
	Content string `xml:",chardata"`
}

// JUnitSkipped represents a skipped test
type JUnitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// JUnitFormatter formats test results as JUnit XML, one suite per platform.
type JUnitFormatter struct {
	writer io.Writer
}

type JUnitOption func(*JUnitFormatter)

func NewJUnitFormatter(opts ...JUnitOption) *JUnitFormatter {
	f := &JUnitFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JUnitWithWriter(w io.Writer) JUnitOption {
	return func(f *JUnitFormatter) {
		f.writer = w
	}
}

func (f *JUnitFormatter) Format(result *runner.RunResult) error {
	timestamp := result.Summary.StartedAt.Format(time.RFC3339)

	var order []string
	byPlatform := make(map[string]*JUnitTestSuite)

	for _, rec := range result.Records {
		platform := rec.Platform
		if platform == "" {
			platform = "default"
		}
		suite, ok := byPlatform[platform]
		if !ok {
			suite = &JUnitTestSuite{
				Name:      fmt.Sprintf("%s (%s)", result.Suite, platform),
				Timestamp: timestamp,
			}
			byPlatform[platform] = suite
			order = append(order, platform)
		}

		tc := JUnitTestCase{
			Name:      rec.Name,
			ClassName: result.Suite + "." + platform,
			Time:      rec.Duration().Seconds(),
		}
		suite.Tests++
		suite.Time += tc.Time

		switch {
		case rec.Skipped():
			suite.Skipped++
			tc.Skipped = &JUnitSkipped{Message: rec.Err}
		case rec.Failed() && isEnvironmentError(rec.Err):
			suite.Errors++
			tc.Error = &JUnitError{
				Message: firstLine(rec.Err),
				Type:    "ProvisioningError",
				Content: failureDetail(rec),
			}
		case rec.Failed():
			suite.Failures++
			tc.Failure = &JUnitFailure{
				Message: firstLine(rec.Err),
				Type:    "TestFailure",
				Content: failureDetail(rec),
			}
		}

		suite.TestCases = append(suite.TestCases, tc)
	}

	suites := JUnitTestSuites{
		Name:      result.Suite,
		Time:      result.Summary.Duration.Seconds(),
		Timestamp: timestamp,
	}
	for _, platform := range order {
		suite := byPlatform[platform]
		suites.Tests += suite.Tests
		suites.Failures += suite.Failures
		suites.Errors += suite.Errors
		suites.Skipped += suite.Skipped
		suites.TestSuites = append(suites.TestSuites, *suite)
	}

	fmt.Fprintf(f.writer, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	encoder := xml.NewEncoder(f.writer)
	encoder.Indent("", "  ")
	return encoder.Encode(suites)
}

func isEnvironmentError(msg string) bool {
	return strings.HasPrefix(msg, "provisioning ")
}

func failureDetail(rec report.Record) string {
	var b strings.Builder
	b.WriteString(rec.Err)
	fmt.Fprintf(&b, "\nattempt: %d", rec.Attempt)
	if rec.Worker != "" {
		fmt.Fprintf(&b, "\nworker: %s", rec.Worker)
	}
	if rec.Artifact != "" {
		fmt.Fprintf(&b, "\nscreenshot: %s", rec.Artifact)
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
