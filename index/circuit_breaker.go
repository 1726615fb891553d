package index

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// BreakerTransport guards a Transport with one circuit breaker per index
// host, so an index that keeps failing is not asked again until its backoff
// expires. Missing projects are answers, not failures.
type BreakerTransport struct {
	next     Transport
	mu       sync.Mutex
	breakers map[string]*circuit.Breaker
}

// NewBreakerTransport wraps next.
func NewBreakerTransport(next Transport) *BreakerTransport {
	return &BreakerTransport{next: next, breakers: make(map[string]*circuit.Breaker)}
}

func (bt *BreakerTransport) breaker(host string) *circuit.Breaker {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	if b, ok := bt.breakers[host]; ok {
		return b
	}

	// Trips after 5 consecutive failures
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 30 * time.Second
	expBackoff.MaxInterval = 5 * time.Minute
	expBackoff.Reset()

	b := circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(5),
	})
	bt.breakers[host] = b
	return b
}

// guard runs call through the breaker of rawURL's host.
func (bt *BreakerTransport) guard(rawURL string, call func() error) error {
	host := hostOf(rawURL)
	b := bt.breaker(host)
	if !b.Ready() {
		return fmt.Errorf("circuit breaker open for index %s: %w", host, ErrUpstreamDown)
	}

	var notFound error
	err := b.Call(func() error {
		err := call()
		if errors.Is(err, ErrNotFound) {
			notFound = err
			return nil
		}
		return err
	}, 0)
	if err != nil {
		return err
	}
	return notFound
}

// GetJSON implements Transport.
func (bt *BreakerTransport) GetJSON(ctx context.Context, rawURL string) ([]byte, error) {
	var body []byte
	err := bt.guard(rawURL, func() error {
		var err error
		body, err = bt.next.GetJSON(ctx, rawURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Probe implements Transport.
func (bt *BreakerTransport) Probe(ctx context.Context, rawURL string) error {
	return bt.guard(rawURL, func() error {
		return bt.next.Probe(ctx, rawURL)
	})
}

// OpenHosts lists the index hosts whose breaker is currently tripped.
func (bt *BreakerTransport) OpenHosts() []string {
	bt.mu.Lock()
	defer bt.mu.Unlock()

	var open []string
	for host, b := range bt.breakers {
		if b.Tripped() {
			open = append(open, host)
		}
	}
	sort.Strings(open)
	return open
}

// hostOf returns the host breakers are keyed by, or rawURL itself when it
// does not parse as an absolute URL.
func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
