package target

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoMatch is returned when a tail path matches no registered pattern.
var ErrNoMatch = errors.New("no target matches tail path")

// Params carries the values captured from a tail path plus the rule's
// defaults.
type Params map[string]string

// Request is what a resolver receives: the verified instance identifier and
// the captured parameters.
type Request struct {
	UUID   string
	Params Params
}

// Response is a resolver's answer. Exactly one of RedirectURL or Body is
// meaningful; Status and ContentType describe how the transport should
// deliver it.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	RedirectURL string
}

// IsError reports whether the response denotes a client or server error.
func (r *Response) IsError() bool {
	return r.Status >= 400
}

// HandlerFunc resolves one target kind.
type HandlerFunc func(ctx context.Context, req *Request) (*Response, error)

// Rule declares one tail-path pattern: the expression, the handler, fixed
// default parameters, and per-parameter validators.
type Rule struct {
	Expr       string
	Handler    HandlerFunc
	Defaults   Params
	Validators map[string]Validator
}

type compiledRule struct {
	re         *regexp.Regexp
	handler    HandlerFunc
	defaults   Params
	validators map[string]func(string) bool
}

// Table is the immutable tail-path dispatch table. It is built once at
// startup from explicit rules and passed by reference into the gateway;
// nothing registers into it afterwards.
type Table struct {
	rules []compiledRule
}

// NewTable compiles the given rules. Validator functions are resolved
// against the supplied registry; compilation failures abort construction.
func NewTable(rules []Rule, funcs map[string]ValidatorFn) (*Table, error) {
	vs := newValidatorSet(funcs)

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		re, err := regexp.Compile(rule.Expr)
		if err != nil {
			return nil, fmt.Errorf("invalid target pattern %q: %w", rule.Expr, err)
		}

		validators := make(map[string]func(string) bool, len(rule.Validators))
		for param, v := range rule.Validators {
			fn, err := vs.compile(v)
			if err != nil {
				return nil, fmt.Errorf("pattern %q: %w", rule.Expr, err)
			}
			validators[param] = fn
		}

		compiled = append(compiled, compiledRule{
			re:         re,
			handler:    rule.Handler,
			defaults:   rule.Defaults,
			validators: validators,
		})
	}

	return &Table{rules: compiled}, nil
}

// Resolve matches a tail path (without its leading slash) against the table
// and returns the handler plus captured parameters. Parameters failing
// their validators make the whole rule fail resolution.
func (t *Table) Resolve(tail string) (HandlerFunc, Params, error) {
	tail = strings.TrimPrefix(tail, "/")

	for _, rule := range t.rules {
		m := rule.re.FindStringSubmatch(tail)
		if m == nil {
			continue
		}

		params := make(Params, len(rule.defaults)+2)
		for k, v := range rule.defaults {
			params[k] = v
		}
		for i, name := range rule.re.SubexpNames() {
			if name == "" || i == 0 || m[i] == "" {
				continue
			}
			params[name] = m[i]
		}

		valid := true
		for param, check := range rule.validators {
			value, ok := params[param]
			if ok && !check(value) {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}

		return rule.handler, params, nil
	}

	return nil, nil, fmt.Errorf("%w: %q", ErrNoMatch, tail)
}

// Expressions for the built-in rule set. The trailing slash is optional
// everywhere; NormalizeTail strips it before hashing but the raw inbound
// tail is matched as supplied.
const (
	exprDomain = `([-\w]+\.)+[-\w]+(:\d+)?`
	// Slash-separated segments with no trailing slash, so the optional
	// trailing slash of the full pattern stays out of the capture.
	exprPath = `[-\w.]+(?:/[-\w.]+)*`
	// Redirect destinations keep a trailing slash inside the capture:
	// /app/page and /app/page/ are different resources on the destination
	// server, so the slash must survive into the redirect URL.
	exprLocation     = exprPath + `/?`
	exprRedirectHTTP = `^http/(?P<domain>` + exprDomain + `)(?:/(?P<filepath>` + exprLocation + `))?/?$`
	exprRedirectTLS  = `^https/(?P<domain>` + exprDomain + `)(?:/(?P<filepath>` + exprLocation + `))?/?$`
	exprRedirectLoc  = `^r/(?P<filepath>` + exprLocation + `)$`
	exprHTML         = `^h/(?P<filepath>` + exprPath + `)/?$`
	exprPixelGIF     = `^gpx/?$`
	exprPixelPNG     = `^ppx/?$`
	exprEmailRender  = `^email/render/?$`
	exprEmailAck     = `^email/acknowledge-receipt/?$`
)

// cleanPathFuncID names the registered validator that rejects path
// traversal in captured file paths.
const cleanPathFuncID = "clean-path"

func cleanPath(value string) bool {
	if strings.HasPrefix(value, "/") {
		return false
	}
	for _, seg := range strings.Split(value, "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}

// DefaultTable builds the dispatch table covering every built-in target
// kind, wired to the given resolvers.
func DefaultTable(res *Resolvers) (*Table, error) {
	funcs := map[string]ValidatorFn{
		cleanPathFuncID: cleanPath,
	}

	rules := []Rule{
		{
			Expr:     exprRedirectHTTP,
			Handler:  res.Redirect,
			Defaults: Params{"scheme": SchemeHTTP},
			Validators: map[string]Validator{
				"scheme": Literal(SchemeHTTP),
				"domain": Regex(exprDomain),
			},
		},
		{
			Expr:     exprRedirectTLS,
			Handler:  res.Redirect,
			Defaults: Params{"scheme": SchemeHTTPS},
			Validators: map[string]Validator{
				"scheme": Literal(SchemeHTTPS),
				"domain": Regex(exprDomain),
			},
		},
		{
			Expr:    exprRedirectLoc,
			Handler: res.Redirect,
		},
		{
			Expr:    exprHTML,
			Handler: res.HTMLPage,
			Validators: map[string]Validator{
				"filepath": Func(cleanPathFuncID),
			},
		},
		{Expr: exprPixelGIF, Handler: res.PixelGIF},
		{Expr: exprPixelPNG, Handler: res.PixelPNG},
		{Expr: exprEmailRender, Handler: res.EmailRender},
		{Expr: exprEmailAck, Handler: res.EmailAcknowledge},
	}

	return NewTable(rules, funcs)
}
