package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/complytrack/internal/domain"
	"github.com/spf13/pflag"
)

// enumValue is a pflag.Value restricted to a fixed set of lowercase strings.
type enumValue[T ~string] struct {
	target   *T
	allowed  map[string]bool
	typeName string
}

var _ pflag.Value = (*enumValue[domain.Priority])(nil)

func newEnumValue[T ~string](target *T, allowed map[string]bool, typeName string) *enumValue[T] {
	return &enumValue[T]{target: target, allowed: allowed, typeName: typeName}
}

func (v *enumValue[T]) String() string {
	if v.target == nil {
		return ""
	}
	return string(*v.target)
}

func (v *enumValue[T]) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	if !v.allowed[s] {
		return fmt.Errorf("must be one of %s", strings.Join(allowedList(v.allowed), ", "))
	}
	*v.target = T(s)
	return nil
}

func (v *enumValue[T]) Type() string { return v.typeName }

func allowedList(allowed map[string]bool) []string {
	out := make([]string, 0, len(allowed))
	for k := range allowed {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func taskTypeFlag(fs *pflag.FlagSet, target *domain.TaskType, name, usage string) {
	fs.Var(newEnumValue(target, domain.ValidTaskTypes, "type"), name, usage)
}

func priorityFlag(fs *pflag.FlagSet, target *domain.Priority, name, usage string) {
	fs.Var(newEnumValue(target, domain.ValidPriorities, "priority"), name, usage)
}

func patternFlag(fs *pflag.FlagSet, target *domain.RecurrencePattern, name, usage string) {
	fs.Var(newEnumValue(target, domain.ValidRecurrencePatterns, "pattern"), name, usage)
}

func validityFlag(fs *pflag.FlagSet, target *domain.ValidityPeriod, name, usage string) {
	fs.Var(newEnumValue(target, domain.ValidValidityPeriods, "validity"), name, usage)
}

var validCertificateStatuses = map[string]bool{"active": true, "revoked": true, "expired": true}

func certStatusFlag(fs *pflag.FlagSet, target *domain.CertificateStatus, name, usage string) {
	fs.Var(newEnumValue(target, validCertificateStatuses, "status"), name, usage)
}

// dateValue parses YYYY-MM-DD into a UTC midnight.
type dateValue struct {
	target **time.Time
}

func (v dateValue) String() string {
	if *v.target == nil {
		return ""
	}
	return (*v.target).Format(time.DateOnly)
}

func (v dateValue) Set(s string) error {
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	*v.target = &t
	return nil
}

func (v dateValue) Type() string { return "date" }

func dateFlag(fs *pflag.FlagSet, target **time.Time, name, usage string) {
	fs.Var(dateValue{target: target}, name, usage+" (YYYY-MM-DD)")
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

func parseStatuses(values []string) ([]domain.TaskStatus, error) {
	out := make([]domain.TaskStatus, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if !domain.ValidTaskStatuses[v] {
			return nil, fmt.Errorf("invalid status %q: must be one of %s",
				v, strings.Join(allowedList(domain.ValidTaskStatuses), ", "))
		}
		out = append(out, domain.TaskStatus(v))
	}
	return out, nil
}

// writeFile creates path and hands it to write, removing the file when
// write fails.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
