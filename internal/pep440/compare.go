package pep440

import "strings"

// Compare returns -1, 0 or 1 depending on whether v sorts before, equal to
// or after o.
func (v Version) Compare(o Version) int {
	if c := compareInt(v.Epoch, o.Epoch); c != 0 {
		return c
	}
	if c := compareRelease(v.Release, o.Release); c != 0 {
		return c
	}
	if c := compareInt(v.preKey(), o.preKey()); c != 0 {
		return c
	}
	if v.Pre != nil && o.Pre != nil && v.Pre.Label == o.Pre.Label {
		if c := compareInt(v.Pre.Num, o.Pre.Num); c != 0 {
			return c
		}
	}
	if c := compareOptional(v.Post, o.Post, -1); c != 0 {
		return c
	}
	if c := compareOptional(v.Dev, o.Dev, 1); c != 0 {
		return c
	}
	return compareLocal(v.Local, o.Local)
}

// Equal reports whether v and o are the same version.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// LessThan reports whether v sorts before o.
func (v Version) LessThan(o Version) bool {
	return v.Compare(o) < 0
}

// preKey orders the pre-release phase: a dev-only release sorts before any
// pre-release of the same release, a final release after all of them.
func (v Version) preKey() int {
	switch {
	case v.Pre == nil && v.Post == nil && v.Dev != nil:
		return -1
	case v.Pre == nil:
		return 4
	case v.Pre.Label == "a":
		return 1
	case v.Pre.Label == "b":
		return 2
	default:
		return 3
	}
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// compareOptional treats a missing value as lower (missing = -1) or higher
// (missing = 1) than any present value.
func compareOptional(a, b *int, missing int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return missing
	case b == nil:
		return -missing
	default:
		return compareInt(*a, *b)
	}
}

func compareRelease(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if c := compareInt(x, y); c != 0 {
			return c
		}
	}
	return 0
}

// compareLocal orders local segments: absent sorts first, numeric segments
// sort after alphanumeric ones, shorter prefixes sort first.
func compareLocal(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		aNum, bNum := isDigits(a[i]), isDigits(b[i])
		switch {
		case aNum && bNum:
			if c := compareDigits(a[i], b[i]); c != 0 {
				return c
			}
		case aNum:
			return 1
		case bNum:
			return -1
		default:
			if a[i] < b[i] {
				return -1
			}
			if a[i] > b[i] {
				return 1
			}
		}
	}
	return compareInt(len(a), len(b))
}

// compareDigits orders decimal strings of any length by value.
func compareDigits(a, b string) int {
	a, b = trimZeros(a), trimZeros(b)
	if c := compareInt(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
