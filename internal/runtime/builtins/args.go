package builtins

import (
	"context"
	"strings"

	"isle/internal/value"
)

// Force drives v to weak head normal form and checks its kind. The result
// is an Error value when forcing failed in the language or the kind is not
// one of kinds; builtins return it unchanged.
func Force(ctx context.Context, host value.Host, name string, v value.Value, kinds ...value.Kind) (value.Value, error) {
	v, err := host.Force(ctx, v)
	if err != nil || v.IsError() {
		return v, err
	}
	for _, k := range kinds {
		if v.Kind == k {
			return v, nil
		}
	}
	want := make([]string, len(kinds))
	for i, k := range kinds {
		want[i] = k.String()
	}
	return value.Errorf("%s: expected %s, got %s", name, strings.Join(want, " or "), v.Kind), nil
}

// HostError turns a failure of the host into a language level error value.
func HostError(name string, err error) value.Value {
	return value.Errorf("%s: %v", name, err)
}
