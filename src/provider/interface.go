package provider

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"sync"
)

// Client is the subset of the CI provider API the monitor depends on.
// Implementations return *Error values for every failure they can classify.
type Client interface {
	// GetCurrentUser resolves the identity behind the API token.
	GetCurrentUser(ctx context.Context) (*User, error)

	// ListUserBuilds returns the most recent builds created by userID in org.
	ListUserBuilds(ctx context.Context, org, userID string, perPage int) ([]Build, error)

	// GetBuild fetches a single build by its coordinates.
	GetBuild(ctx context.Context, org, pipeline string, number int) (*Build, error)
}

// ClientFactory builds a Client for an API token.
type ClientFactory func(token string) Client

var (
	registryMu sync.RWMutex
	registry   = map[string]ClientFactory{}
)

// RegisterClient makes a client factory available by provider name.
func RegisterClient(name string, factory ClientFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// LookupClient returns the factory registered under name.
func LookupClient(name string) (ClientFactory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown CI provider: %s", name)
	}
	return factory, nil
}

// RegisteredClients lists registered provider names.
func RegisteredClients() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var buildURLPattern = regexp.MustCompile(`^https?://[^/]+/([^/?#]+)/([^/?#]+)/builds/(\d+)(?:[/?#].*)?$`)

// ParseURL extracts the build coordinates from a build URL of the form
// .../{org}/{pipeline}/builds/{number}.
func ParseURL(url string) (BuildRef, error) {
	matches := buildURLPattern.FindStringSubmatch(url)
	if matches == nil {
		return BuildRef{}, fmt.Errorf("%w: %s", ErrInvalidURL, url)
	}

	number, err := strconv.Atoi(matches[3])
	if err != nil || number <= 0 {
		return BuildRef{}, fmt.Errorf("%w: bad build number in %s", ErrInvalidURL, url)
	}

	return BuildRef{Org: matches[1], Pipeline: matches[2], Number: number}, nil
}
