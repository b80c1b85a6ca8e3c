package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
)

// TAPFormatter formats test results in TAP (Test Anything Protocol) format
type TAPFormatter struct {
	writer io.Writer
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) Format(result *runner.RunResult) error {
	var b strings.Builder
	b.WriteString("TAP version 13\n")
	fmt.Fprintf(&b, "1..%d\n", len(result.Records))

	for i, rec := range result.Records {
		n := i + 1
		switch {
		case rec.Skipped():
			reason := rec.Err
			if reason == "" {
				reason = "SKIP"
			}
			fmt.Fprintf(&b, "ok %d - %s # SKIP %s\n", n, rec.Name, reason)

		case rec.Passed():
			fmt.Fprintf(&b, "ok %d - %s\n", n, rec.Name)

		default:
			fmt.Fprintf(&b, "not ok %d - %s\n", n, rec.Name)
			b.WriteString("  ---\n")
			fmt.Fprintf(&b, "  message: %s\n", escapeYAML(rec.Err))
			fmt.Fprintf(&b, "  attempts: %d\n", rec.Attempt)
			if rec.Platform != "" {
				fmt.Fprintf(&b, "  platform: %s\n", rec.Platform)
			}
			if rec.Artifact != "" {
				fmt.Fprintf(&b, "  screenshot: %s\n", escapeYAML(rec.Artifact))
			}
			b.WriteString("  ...\n")
		}
	}

	b.WriteString("\n")
	_, err := io.WriteString(f.writer, b.String())
	return err
}

func escapeYAML(s string) string {
	if strings.ContainsAny(s, ":\n\"'[]{}#&*!|>%@`") {
		s = strings.ReplaceAll(s, "\"", "\\\"")
		s = strings.ReplaceAll(s, "\n", "\\n")
		return "\"" + s + "\""
	}
	return s
}
