package aot

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var (
	namespaceRegex = regexp.MustCompile(`^namespace\s+(\S+)\s*\{$`)
	classRegex     = regexp.MustCompile(`^class\s+(\S+)_bs(\d+)\s+final\s+:\s+public\s+tensorflow::XlaCompiledCpuFunction\s+.*$`)
	countRegex     = regexp.MustCompile(`^(?:static\s+)?(?:constexpr\s+)?int\s+(arg|result)(\d+)_count\(\).+$`)
	returnRegex    = regexp.MustCompile(`^return\s+(\d+)\s*;.*$`)
)

// HeaderData describes one compiled header.
type HeaderData struct {
	BatchSize        int
	Prefix           string
	Namespace        string
	ClassName        string
	NArgs            int
	ArgCounts        []int
	ArgCountsNoBatch []int
	NRes             int
	ResCounts        []int
	ResCountsNoBatch []int
}

// ParseHeader reads the class layout of a header written by the compiler.
func ParseHeader(fsys afero.Fs, path string) (*HeaderData, error) {
	content, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read header")
	}

	var lines []string
	for _, line := range strings.Split(string(content), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}

	data := &HeaderData{}
	argCounts := make(map[int]int)
	resCounts := make(map[int]int)
	for i := 0; i < len(lines); i++ {
		line := lines[i]

		if m := namespaceRegex.FindStringSubmatch(line); m != nil {
			data.Namespace = m[1]
			continue
		}

		if m := classRegex.FindStringSubmatch(line); m != nil {
			data.ClassName = m[1]
			data.BatchSize, _ = strconv.Atoi(m[2])
			continue
		}

		if m := countRegex.FindStringSubmatch(line); m != nil {
			index, _ := strconv.Atoi(m[2])
			i++
			if i >= len(lines) {
				return nil, errors.Errorf("corrupted header file %s", path)
			}
			r := returnRegex.FindStringSubmatch(lines[i])
			if r == nil {
				return nil, errors.Errorf("corrupted header file %s", path)
			}
			count, _ := strconv.Atoi(r[1])
			if m[1] == "arg" {
				argCounts[index] = count
			} else {
				resCounts[index] = count
			}
		}
	}

	if data.BatchSize <= 0 {
		return nil, errors.Errorf("no compiled class found in header %s", path)
	}

	base := filepath.Base(path)
	postfix := fmt.Sprintf("_bs%d.h", data.BatchSize)
	if !strings.HasSuffix(base, postfix) {
		return nil, errors.Errorf("header '%s' does not end with expected postfix '%s'", path, postfix)
	}
	data.Prefix = strings.TrimSuffix(base, postfix)

	if data.ArgCounts, err = flatten(argCounts, "argument"); err != nil {
		return nil, err
	}
	if data.ResCounts, err = flatten(resCounts, "result"); err != nil {
		return nil, err
	}
	data.NArgs = len(data.ArgCounts)
	data.NRes = len(data.ResCounts)
	if data.ArgCountsNoBatch, err = noBatch(data.ArgCounts, data.BatchSize, "argument"); err != nil {
		return nil, err
	}
	if data.ResCountsNoBatch, err = noBatch(data.ResCounts, data.BatchSize, "result"); err != nil {
		return nil, err
	}
	return data, nil
}

// flatten turns index keyed counts into a list. Indices must be 0..n-1.
func flatten(counts map[int]int, name string) ([]int, error) {
	indices := make([]int, 0, len(counts))
	for i := range counts {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	out := make([]int, len(indices))
	for pos, i := range indices {
		if i != pos {
			return nil, errors.Errorf("non-contiguous indices in %s counts: %s", name, joinInts(indices, ", "))
		}
		out[pos] = counts[i]
	}
	return out, nil
}

func noBatch(counts []int, batchSize int, name string) ([]int, error) {
	out := make([]int, len(counts))
	for i, c := range counts {
		if c%batchSize != 0 {
			return nil, errors.Errorf("%s count of %d at index %d is not dividable by batch size %d", name, c, i, batchSize)
		}
		out[i] = c / batchSize
	}
	return out, nil
}

func joinInts(ns []int, sep string) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, sep)
}
