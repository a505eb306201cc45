package devices

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/hed1ad/zigsense/pkg/capture"
)

// DefaultBurstGap is the burst threshold in seconds when the rule does not
// set one.
const DefaultBurstGap = 2.0

// Classifier runs the group, filter and rank pipeline for one rule.
type Classifier struct {
	rule     Rule
	top      int
	burstGap float64
	log      logrus.FieldLogger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTop limits the candidate list. Zero or less keeps every candidate.
func WithTop(n int) Option {
	return func(c *Classifier) {
		c.top = n
	}
}

// WithBurstGap overrides the burst threshold in seconds.
func WithBurstGap(seconds float64) Option {
	return func(c *Classifier) {
		c.burstGap = seconds
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Classifier) {
		c.log = l
	}
}

// New creates a Classifier for rule.
func New(rule Rule, opts ...Option) *Classifier {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Classifier{
		rule:     rule,
		top:      5,
		burstGap: DefaultBurstGap,
		log:      discard,
	}
	if br, ok := rule.(DoorBurstRule); ok && br.BurstGap > 0 {
		c.burstGap = br.BurstGap
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Rule returns the rule in use.
func (c *Classifier) Rule() Rule {
	return c.rule
}

// Rank returns the best candidates for the role, best first.
func (c *Classifier) Rank(t *capture.Table) []Profile {
	profiles := Profiles(t, c.burstGap)

	candidates := profiles[:0:0]
	for _, p := range profiles {
		if c.rule.Accept(p) {
			candidates = append(candidates, p)
		}
	}
	sortProfiles(candidates, c.rule)

	c.log.WithFields(logrus.Fields{
		"role":       c.rule.Name(),
		"addresses":  len(profiles),
		"candidates": len(candidates),
	}).Debug("ranked source addresses")

	if c.top > 0 && len(candidates) > c.top {
		candidates = candidates[:c.top]
	}
	return candidates
}

// Print writes the candidate list the way an operator reads it.
func (c *Classifier) Print(w io.Writer, candidates []Profile) {
	fmt.Fprintf(w, "\nLikely %s addresses:\n", c.rule.Title())
	for _, p := range candidates {
		fmt.Fprintln(w, c.rule.Describe(p))
	}
}
