package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdul-hamid-achik/bankspec/packages/core/runner"
)

// Formatter writes a finished run as one report.
type Formatter interface {
	Format(result *runner.RunResult) error
}

// Formats lists the report formats New accepts.
var Formats = []string{"json", "junit", "tap", "html"}

// New returns the formatter for format, writing to w.
func New(format string, w io.Writer) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	case "junit":
		return NewJUnitFormatter(JUnitWithWriter(w)), nil
	case "tap":
		return NewTAPFormatter(TAPWithWriter(w)), nil
	case "html":
		return NewHTMLFormatter(HTMLWithWriter(w)), nil
	}
	return nil, fmt.Errorf("unknown report format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

// Extension returns the file extension for format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case "junit":
		return ".xml"
	case "tap":
		return ".tap"
	case "html":
		return ".html"
	}
	return ".json"
}

// WriteFiles writes one report per format into dir as results.<ext> and
// returns the paths written.
func WriteFiles(dir string, formats []string, result *runner.RunResult) ([]string, error) {
	if len(formats) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var paths []string
	for _, format := range formats {
		path := filepath.Join(dir, "results"+Extension(format))
		if err := writeFile(path, format, result); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path, format string, result *runner.RunResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	formatter, err := New(format, f)
	if err != nil {
		f.Close()
		return err
	}
	if err := formatter.Format(result); err != nil {
		f.Close()
		return fmt.Errorf("writing %s report: %w", format, err)
	}
	return f.Close()
}
