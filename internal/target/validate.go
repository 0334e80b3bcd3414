package target

import (
	"fmt"
	"regexp"
)

// ValidatorKind enumerates the closed set of parameter validator kinds.
type ValidatorKind int

const (
	// ValidatorLiteral accepts exactly one value.
	ValidatorLiteral ValidatorKind = iota
	// ValidatorRegex accepts values matching an anchored pattern.
	ValidatorRegex
	// ValidatorFunc accepts values passing a function registered by id at
	// table construction time.
	ValidatorFunc
)

// Validator constrains one captured or default parameter of a pattern.
type Validator struct {
	Kind    ValidatorKind
	Literal string
	Pattern string
	FuncID  string
}

// Literal builds a literal validator.
func Literal(value string) Validator {
	return Validator{Kind: ValidatorLiteral, Literal: value}
}

// Regex builds a regex validator.
func Regex(pattern string) Validator {
	return Validator{Kind: ValidatorRegex, Pattern: pattern}
}

// Func builds a validator referring to a registered function id.
func Func(id string) Validator {
	return Validator{Kind: ValidatorFunc, FuncID: id}
}

// ValidatorFn is the signature of registered validator functions.
type ValidatorFn func(value string) bool

// validatorSet resolves validators against the function registry and owns
// the compiled-regex cache. It belongs to exactly one Table; there is no
// process-wide cache.
type validatorSet struct {
	funcs map[string]ValidatorFn
	cache map[string]*regexp.Regexp
}

func newValidatorSet(funcs map[string]ValidatorFn) *validatorSet {
	return &validatorSet{
		funcs: funcs,
		cache: make(map[string]*regexp.Regexp),
	}
}

// compile resolves a validator once, at table construction time, so a bad
// pattern or unknown function id fails startup instead of a request.
func (vs *validatorSet) compile(v Validator) (func(string) bool, error) {
	switch v.Kind {
	case ValidatorLiteral:
		want := v.Literal
		return func(value string) bool { return value == want }, nil
	case ValidatorRegex:
		re, ok := vs.cache[v.Pattern]
		if !ok {
			var err error
			re, err = regexp.Compile("^(?:" + v.Pattern + ")$")
			if err != nil {
				return nil, fmt.Errorf("invalid validator pattern %q: %w", v.Pattern, err)
			}
			vs.cache[v.Pattern] = re
		}
		return re.MatchString, nil
	case ValidatorFunc:
		fn, ok := vs.funcs[v.FuncID]
		if !ok {
			return nil, fmt.Errorf("unknown validator function %q", v.FuncID)
		}
		return fn, nil
	default:
		return nil, fmt.Errorf("unknown validator kind %d", v.Kind)
	}
}
