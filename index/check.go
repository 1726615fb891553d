package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"

	"github.com/git-pkgs/tfaot/internal/core"
	"github.com/git-pkgs/tfaot/internal/pep440"
)

// ErrNoMatchingRelease is returned when a project exists but no installable
// release satisfies the requirement.
var ErrNoMatchingRelease = errors.New("no matching release")

// DefaultConcurrency bounds parallel index lookups in Verify.
const DefaultConcurrency = 8

// NoMatchError reports a requirement that no release satisfies.
type NoMatchError struct {
	Name      string
	Specifier string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("%s: no release matches %q", e.Name, e.Specifier)
}

func (e *NoMatchError) Unwrap() error {
	return ErrNoMatchingRelease
}

// Result is the outcome of checking one dependency.
type Result struct {
	Dependency core.Dependency
	// Version is the newest release satisfying the requirement. It is empty
	// for unconstrained requirements, which only need the project to exist.
	Version string
	// Skipped is set for requirements the index cannot answer, such as direct
	// URL references.
	Skipped bool
	Err     error
}

// Check resolves dep against the index. Yanked releases and releases
// without files never match, pre-releases only when nothing else does.
func (c *Client) Check(ctx context.Context, dep core.Dependency) Result {
	res := Result{Dependency: dep}

	if strings.HasPrefix(dep.Requirements, " @ ") {
		res.Skipped = true
		return res
	}

	if dep.Requirements == "" || dep.Requirements == "*" {
		ok, err := c.Exists(ctx, dep.Name)
		switch {
		case err != nil:
			res.Err = err
		case !ok:
			res.Err = &NotFoundError{Name: dep.Name}
		}
		return res
	}

	set, err := pep440.ParseSpecifierSet(dep.Requirements)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", dep.Name, err)
		return res
	}

	versions, err := c.FetchVersions(ctx, dep.Name)
	if err != nil {
		res.Err = err
		return res
	}

	res.Version = bestMatch(versions, set, false)
	if res.Version == "" {
		res.Version = bestMatch(versions, set, true)
	}
	if res.Version == "" {
		res.Err = &NoMatchError{Name: dep.Name, Specifier: dep.Requirements}
	}
	return res
}

// bestMatch returns the newest candidate in versions, which must be sorted
// oldest first.
func bestMatch(versions []core.Version, set pep440.SpecifierSet, prereleases bool) string {
	for i := len(versions) - 1; i >= 0; i-- {
		v := versions[i]
		if v.Status == core.StatusYanked || cast.ToInt(v.Metadata["files"]) == 0 {
			continue
		}
		if set.Contains(pep440.MustParse(v.Number), prereleases) {
			return v.Number
		}
	}
	return ""
}

// Verify checks deps with at most concurrency lookups in flight. Results
// come back in the order of deps; the error aggregates every failed check.
func (c *Client) Verify(ctx context.Context, deps []core.Dependency, concurrency int) ([]Result, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result, len(deps))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, dep := range deps {
		g.Go(func() error {
			results[i] = c.Check(ctx, dep)
			glog.V(1).Infof("checked %s: version=%q skipped=%v err=%v", dep, results[i].Version, results[i].Skipped, results[i].Err)
			return nil
		})
	}
	_ = g.Wait()

	var errs *multierror.Error
	for _, r := range results {
		if r.Err != nil {
			errs = multierror.Append(errs, r.Err)
		}
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, errs.ErrorOrNil()
}
