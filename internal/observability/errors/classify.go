// Package errors derives low-cardinality error labels for metrics and logs.
package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	domainauth "github.com/target/opsconsole/internal/domain/auth"
)

// Classify returns a metric-safe label for err.
// Tagged identity failures yield their kind; context errors yield "timeout" or
// "canceled"; anything else yields the innermost concrete type in snake form.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var rej *domainauth.Rejection
	if goerrors.As(err, &rej) && rej.Kind != "" {
		return string(rej.Kind)
	}
	var failure *domainauth.Failure
	if goerrors.As(err, &failure) && failure.Kind != "" {
		return string(failure.Kind)
	}
	switch {
	case goerrors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	}

	for {
		inner := goerrors.Unwrap(err)
		if inner == nil {
			break
		}
		err = inner
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := strings.ToLower(strings.ReplaceAll(t.String(), ".", "_"))
	if name == "" {
		return "unknown"
	}
	return name
}
