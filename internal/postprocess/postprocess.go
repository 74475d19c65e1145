package postprocess

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"

	"time-value-analyser/quake-ingester/internal/config"
	"time-value-analyser/quake-ingester/internal/frame"
	"time-value-analyser/quake-ingester/internal/model"
)

// placeColumn is what keyword rules search.
const placeColumn = model.ColPlace

// Engine labels and filters a quake table. Rules are normalized and
// compiled once by New; Apply may be called any number of times.
type Engine struct {
	kw      []keywordRule
	regs    []regexRule
	maps    []mapRule
	filters []filter
}

type keywordRule struct {
	words  []string
	labels map[string]string
}

type regexRule struct {
	field  string
	re     *regexp.Regexp
	labels map[string]string
}

type mapRule struct {
	field       string
	suffixAfter string
	outKey      string
	mapping     map[string]string
}

type filter struct {
	expr string
	prg  cel.Program
}

// New compiles cfg. Bad regular expressions and CEL expressions that do not
// compile are reported here rather than at Apply time.
func New(cfg config.PostProcessConfig) (*Engine, error) {
	eng := &Engine{}

	for _, kr := range cfg.Keywords {
		words := make([]string, 0, len(kr.When))
		for _, w := range kr.When {
			if s := strings.TrimSpace(w); s != "" {
				words = append(words, strings.ToLower(s))
			}
		}
		if len(words) == 0 || len(kr.Labels) == 0 {
			continue
		}
		eng.kw = append(eng.kw, keywordRule{words: words, labels: kr.Labels})
	}

	for _, rr := range cfg.Regex {
		if strings.TrimSpace(rr.Field) == "" || strings.TrimSpace(rr.Expr) == "" {
			continue
		}
		re, err := regexp.Compile(rr.Expr)
		if err != nil {
			return nil, fmt.Errorf("regex rule on %q: %w", rr.Field, err)
		}
		eng.regs = append(eng.regs, regexRule{field: rr.Field, re: re, labels: rr.Labels})
	}

	for _, mr := range cfg.Maps {
		if strings.TrimSpace(mr.Field) == "" || len(mr.Mapping) == 0 {
			continue
		}
		out := mr.OutKey
		if out == "" {
			out = mr.Field
		}
		eng.maps = append(eng.maps, mapRule{field: mr.Field, suffixAfter: mr.SuffixAfter, outKey: out, mapping: mr.Mapping})
	}

	if len(cfg.Filters) > 0 {
		// One "row" map per table row, holding its non-missing cells.
		env, err := cel.NewEnv(
			cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create CEL env: %w", err)
		}
		for _, expr := range cfg.Filters {
			ast, issues := env.Compile(expr)
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("CEL compile error in %q: %w", expr, issues.Err())
			}
			prg, err := env.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("CEL program error in %q: %w", expr, err)
			}
			eng.filters = append(eng.filters, filter{expr: expr, prg: prg})
		}
	}
	return eng, nil
}

// Apply runs keyword, regex and map rules, then drops the rows any filter
// rejects. Labels land in string columns named by the rule; a row a rule
// does not match keeps whatever that column held before.
func (e *Engine) Apply(f *frame.Frame) (*frame.Frame, error) {
	out := f

	// 1) Keyword rules: ALL words appear in place (case-insensitive)
	for _, kr := range e.kw {
		kr := kr
		out = setLabels(out, kr.labels, func(r frame.Row) bool {
			place := strings.ToLower(r.Get(placeColumn).Text())
			for _, w := range kr.words {
				if !strings.Contains(place, w) {
					return false
				}
			}
			return true
		})
	}

	// 2) Regex rules against the cell text of a column
	for _, rr := range e.regs {
		rr := rr
		if !out.HasColumn(rr.field) {
			return nil, fmt.Errorf("regex rule: %w: %q", frame.ErrColumnNotFound, rr.field)
		}
		out = setLabels(out, rr.labels, func(r frame.Row) bool {
			v := r.Get(rr.field)
			return !v.IsMissing() && rr.re.MatchString(v.Text())
		})
	}

	// 3) Map rules: looked-up value goes to outKey
	for _, mr := range e.maps {
		mr := mr
		if !out.HasColumn(mr.field) {
			return nil, fmt.Errorf("map rule: %w: %q", frame.ErrColumnNotFound, mr.field)
		}
		out = out.Apply(mr.outKey, func(r frame.Row) model.Value {
			if mapped, ok := mr.mapping[mr.key(r.Get(mr.field))]; ok {
				return model.StringValue(mapped)
			}
			return r.Get(mr.outKey)
		})
	}

	if len(e.filters) == 0 {
		return out, nil
	}
	return out.Filter(e.mask(out))
}

func (mr mapRule) key(v model.Value) string {
	if v.IsMissing() {
		return ""
	}
	s := v.Text()
	if mr.suffixAfter != "" {
		if i := strings.LastIndex(s, mr.suffixAfter); i >= 0 {
			s = s[i+len(mr.suffixAfter):]
		}
	}
	return strings.TrimSpace(s)
}

// setLabels writes labels on the rows where match holds. Keys are applied in
// sorted order so column order is stable across runs.
func setLabels(f *frame.Frame, labels map[string]string, match func(frame.Row) bool) *frame.Frame {
	hit := f.RowMask(match)
	if hit.Count() == 0 {
		return f
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		k, label := k, labels[k]
		f = f.Apply(k, func(r frame.Row) model.Value {
			if hit[r.Index()] {
				return model.StringValue(label)
			}
			return r.Get(k)
		})
	}
	return f
}

// mask AND-combines every filter. A row on which an expression errors, or
// yields a non-bool, is excluded.
func (e *Engine) mask(f *frame.Frame) frame.Mask {
	return f.RowMask(func(r frame.Row) bool {
		activation := map[string]interface{}{"row": r.Map()}
		for _, flt := range e.filters {
			out, _, err := flt.prg.Eval(activation)
			if err != nil {
				return false
			}
			keep, ok := out.Value().(bool)
			if !ok || !keep {
				return false
			}
		}
		return true
	})
}
