package policy

import (
	"go.uber.org/zap"

	"github.com/darianrosebrook/agent-agency/pkg/dlogger"
	"github.com/darianrosebrook/agent-agency/pkg/policy/status"
)

// Verdict qualifies the outcome of an admission check
type Verdict uint

const (
	// Admitted content passes through unchanged
	Admitted Verdict = iota
	// Redacted content passes through with secret spans replaced
	Redacted
	// Rejected content must not be persisted in any form
	Rejected
)

func (v Verdict) String() string {
	switch v {
	case Admitted:
		return "admitted"
	case Redacted:
		return "redacted"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Decision is the outcome of admitting one piece of content
type Decision struct {
	Verdict Verdict
	// Bytes to persist. Nil when Rejected.
	Bytes []byte
	// Rules that fired, in rule order
	Rules []string
}

// Gate screens content against an ordered rule set
type Gate struct {
	rules []Rule
	l     *zap.Logger
}

// Option configures a Gate
type Option func(*Gate)

// Logger sets a logger for this gate
func Logger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.l = l
		}
	}
}

// WithRules replaces the default rule set
func WithRules(rules []Rule) Option {
	return func(g *Gate) {
		g.rules = rules
	}
}

// ExtraRules appends rules after the default set
func ExtraRules(rules ...Rule) Option {
	return func(g *Gate) {
		g.rules = append(g.rules, rules...)
	}
}

// New builds a gate, compiling all rules up front
func New(opts ...Option) (*Gate, error) {
	g := &Gate{
		rules: DefaultRules(),
		l:     dlogger.MustGetLogger(dlogger.LogLevelNone),
	}
	for _, apply := range opts {
		apply(g)
	}
	for i := range g.rules {
		if err := g.rules[i].compile(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Marker returns the redaction marker emitted for a rule
func Marker(rule string) []byte {
	return []byte("[REDACTED:" + rule + "]")
}

// Admit screens one piece of content. Hard-block matches reject the whole
// write. Redaction matches replace each secret span with the rule marker;
// only the returned bytes may ever be hashed or stored.
func (g *Gate) Admit(path string, data []byte) (Decision, error) {
	var fired []string
	out := data
	for i := range g.rules {
		rule := &g.rules[i]
		if !rule.re.Match(out) {
			continue
		}
		if rule.Action == ActionBlock {
			g.l.Warn("content rejected by policy",
				zap.String("path", path),
				zap.String("rule", rule.Name),
			)
			return Decision{Verdict: Rejected, Rules: []string{rule.Name}},
				status.ErrRejected.WrapMessage(rule.Name)
		}
		fired = append(fired, rule.Name)
		out = rule.re.ReplaceAll(out, Marker(rule.Name))
	}
	if len(fired) == 0 {
		return Decision{Verdict: Admitted, Bytes: out}, nil
	}
	g.l.Info("content redacted by policy",
		zap.String("path", path),
		zap.Strings("rules", fired),
	)
	return Decision{Verdict: Redacted, Bytes: out, Rules: fired}, nil
}
