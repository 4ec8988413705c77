package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrKeyNotFound means the artifact has no entry for the endpoint key. The
// provisioning run still succeeded; callers report it as a warning.
var ErrKeyNotFound = errors.New("endpoint key not found")

// Publisher writes the resolved endpoint URL to a downstream sink.
type Publisher interface {
	Publish(ctx context.Context, url string) error
	String() string
}

// Multi publishes to every sink in order and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, url string) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, url); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}

func (m Multi) String() string {
	names := make([]string, len(m))
	for i, p := range m {
		names[i] = p.String()
	}
	return strings.Join(names, ", ")
}

// IsSoft reports whether a publish error should only be warned about.
func IsSoft(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
