package builtin

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

type Func func(args []string) (string, error)

type Registry struct {
	funcs map[string]Func
	now   func() time.Time
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["now"] = func(_ []string) (string, error) {
		return r.now().UTC().Format(time.RFC3339), nil
	}
	r.funcs["date"] = func(args []string) (string, error) {
		layout := "2006-01-02"
		if len(args) >= 1 && args[0] != "" {
			layout = args[0]
		}
		return r.now().UTC().Format(layout), nil
	}
	r.funcs["timestamp"] = func(_ []string) (string, error) {
		return strconv.FormatInt(r.now().Unix(), 10), nil
	}
	r.funcs["uuid"] = func(_ []string) (string, error) {
		return uuid.NewString(), nil
	}
	r.funcs["ulid"] = func(_ []string) (string, error) {
		return ulid.Make().String(), nil
	}
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["randomDigits"] = funcRandomDigits
	r.funcs["randomEmail"] = funcRandomEmail
	r.funcs["amount"] = funcAmount
}

// Register adds or replaces fn under name.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Has reports whether name is a registered function.
func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates expr of the form name(arg, ...). ok is false when expr is
// not a call to a registered function.
func (r *Registry) Call(expr string) (value string, ok bool, err error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return "", false, nil
	}

	fn, found := r.funcs[matches[1]]
	if !found {
		return "", false, nil
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}

	value, err = fn(args)
	if err != nil {
		return "", true, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return value, true, nil
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func intArg(args []string, i, def int) (int, error) {
	if len(args) <= i || args[i] == "" {
		return def, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d %q is not an integer", i+1, args[i])
	}
	return v, nil
}

func bounds(args []string, defMin, defMax int) (int, int, error) {
	lo, err := intArg(args, 0, defMin)
	if err != nil {
		return 0, 0, err
	}
	hi, err := intArg(args, 1, defMax)
	if err != nil {
		return 0, 0, err
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("max %d is below min %d", hi, lo)
	}
	return lo, hi, nil
}

func funcRandom(args []string) (string, error) {
	lo, hi, err := bounds(args, 0, 100)
	if err != nil {
		return "", err
	}
	return strconv.Itoa(rand.IntN(hi-lo+1) + lo), nil
}

func funcRandomString(args []string) (string, error) {
	n, err := intArg(args, 0, 16)
	if err != nil {
		return "", err
	}
	return randomString(n, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"), nil
}

// randomDigits never starts with zero so values survive numeric inputs.
func funcRandomDigits(args []string) (string, error) {
	n, err := intArg(args, 0, 10)
	if err != nil {
		return "", err
	}
	if n < 1 {
		return "", nil
	}
	return randomString(1, "123456789") + randomString(n-1, "0123456789"), nil
}

func funcRandomEmail(_ []string) (string, error) {
	user := randomString(8, "abcdefghijklmnopqrstuvwxyz")
	return user + "@example.com", nil
}

func funcAmount(args []string) (string, error) {
	lo, hi, err := bounds(args, 1, 1000)
	if err != nil {
		return "", err
	}
	cents := rand.IntN((hi-lo)*100+1) + lo*100
	return fmt.Sprintf("%d.%02d", cents/100, cents%100), nil
}

func randomString(length int, charset string) string {
	if length <= 0 {
		return ""
	}
	result := make([]byte, length)
	for i := range result {
		result[i] = charset[rand.IntN(len(charset))]
	}
	return string(result)
}
