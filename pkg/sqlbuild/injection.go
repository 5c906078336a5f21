package sqlbuild

import (
	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding describes a string value that matched a SQL injection
// pattern. Values are always bound, never interpolated, so findings are
// logged as security events rather than rejected.
type InjectionFinding struct {
	Column      string
	Value       string
	Fingerprint string
}

// ScreenValue runs libinjection over a single bind value. Only strings are
// checked; other types cannot carry injection patterns. Returns nil when the
// value is clean.
func ScreenValue(column string, value any) *InjectionFinding {
	str, ok := value.(string)
	if !ok {
		return nil
	}
	isSQLi, fingerprint := libinjection.IsSQLi(str)
	if !isSQLi {
		return nil
	}
	return &InjectionFinding{Column: column, Value: str, Fingerprint: string(fingerprint)}
}

// ScreenUpdates screens every value in a column→value map.
func ScreenUpdates(updates map[string]any) []*InjectionFinding {
	var findings []*InjectionFinding
	for column, value := range updates {
		if f := ScreenValue(column, value); f != nil {
			findings = append(findings, f)
		}
	}
	return findings
}
