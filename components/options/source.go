package options

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-crudkit/pkg/model"
)

// Source supplies the candidate options of one request.
type Source interface {
	Options(r *http.Request) ([]model.Option, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(r *http.Request) ([]model.Option, error)

func (f SourceFunc) Options(r *http.Request) ([]model.Option, error) {
	return f(r)
}

// Static serves a fixed list.
func Static(opts ...model.Option) Source {
	list := append([]model.Option{}, opts...)
	return SourceFunc(func(*http.Request) ([]model.Option, error) {
		return list, nil
	})
}

// Strings serves values that are their own labels.
func Strings(values ...string) Source {
	list := make([]model.Option, 0, len(values))
	for _, v := range values {
		list = append(list, model.Option{Value: v, Label: v})
	}
	return Static(list...)
}

// LoadLines reads one value per line, skipping blanks, "#" comments and
// duplicates. The result is sorted.
func LoadLines(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, fmt.Errorf("options: missing reader")
	}

	scanner := bufio.NewScanner(r)
	lines := make([]string, 0, 128)
	seen := map[string]struct{}{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	sort.Strings(lines)
	return lines, nil
}

// LinesFile serves the lines of path, read once on first use.
func LinesFile(path string) Source {
	var (
		once sync.Once
		list []model.Option
		err  error
	)
	return SourceFunc(func(*http.Request) ([]model.Option, error) {
		once.Do(func() {
			f, openErr := os.Open(path)
			if openErr != nil {
				err = openErr
				return
			}
			defer func() { _ = f.Close() }()
			lines, loadErr := LoadLines(f)
			if loadErr != nil {
				err = loadErr
				return
			}
			for _, line := range lines {
				list = append(list, model.Option{Value: line, Label: line})
			}
		})
		return list, err
	})
}

// RecordLoader returns the current records of a collection.
type RecordLoader func(ctx context.Context) ([]model.Record, error)

// Records serves the options of field computed from the loaded records.
// Fields without static or computed options fall back to the distinct
// display values of the column.
func Records(field model.Field, load RecordLoader) Source {
	return SourceFunc(func(r *http.Request) ([]model.Option, error) {
		records, err := load(r.Context())
		if err != nil {
			return nil, err
		}
		if opts := model.BuildOptions(field, records); len(opts) > 0 {
			return opts, nil
		}
		seen := make(map[string]struct{})
		var out []model.Option
		for _, record := range records {
			for _, v := range model.AccessorFor(field).FilterableValues(record) {
				if _, dup := seen[v]; dup || v == "" {
					continue
				}
				seen[v] = struct{}{}
				out = append(out, model.Option{Value: v, Label: v})
			}
		}
		return out, nil
	})
}
