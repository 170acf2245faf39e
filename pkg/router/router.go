// Package router maps file events onto destination plans. Routing is a pure
// function over the configured rule list: rules are scanned in declared
// order, the first rule whose criteria all match wins, and its destinations
// become the ordered plans.
package router

import (
	"path"
	"regexp"
	"strings"
	"time"

	fherrors "github.com/filehorizon/filehorizon/pkg/errors"
	"github.com/filehorizon/filehorizon/pkg/event"
)

// Matcher is the criteria block of one rule. Declared criteria are ANDed;
// undeclared criteria match anything.
type Matcher struct {
	// Protocol matches the event protocol, case-insensitive.
	Protocol string

	// PathGlob is tested against the normalized source path (scheme, drive
	// letter, and leading slash stripped), case-insensitive.
	PathGlob string

	// PathRegex is tested against the raw source path.
	PathRegex string

	// SourceName is reserved; a rule declaring it never matches.
	SourceName string
}

// Rule routes matching events to named destinations.
type Rule struct {
	Name          string
	Match         Matcher
	Destinations  []string
	RenamePattern string
	Overwrite     bool
	ComputeHash   bool
}

// Destination resolves a rule's destination name to a concrete target kind.
// Root is the base directory (local/sftp), the key prefix (s3), or the
// stream/topic name (bus).
type Destination struct {
	Name    string
	Kind    event.DestinationKind
	Root    string
	IsTopic bool
}

type compiledRule struct {
	rule      Rule
	pathRegex *regexp.Regexp
}

// Router evaluates rules against events.
type Router struct {
	rules        []compiledRule
	destinations map[string]Destination

	// now is swappable for tests of date tokens.
	now func() time.Time
}

// New compiles the rule set. Regexes are compiled once; every destination
// name a rule references must exist.
func New(rules []Rule, destinations []Destination) (*Router, error) {
	const op = "router.New"

	destMap := make(map[string]Destination, len(destinations))
	for _, d := range destinations {
		destMap[d.Name] = d
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		cr := compiledRule{rule: rule}
		if rule.Match.PathRegex != "" {
			re, err := regexp.Compile(rule.Match.PathRegex)
			if err != nil {
				return nil, fherrors.Newf(fherrors.KindValidation, fherrors.CodeValidation, op,
					"rule %q has invalid pathRegex: %v", rule.Name, err)
			}
			cr.pathRegex = re
		}
		for _, destName := range rule.Destinations {
			if _, ok := destMap[destName]; !ok {
				return nil, fherrors.Newf(fherrors.KindValidation, fherrors.CodeUnknownDest, op,
					"rule %q references unknown destination %q", rule.Name, destName)
			}
		}
		compiled = append(compiled, cr)
	}

	return &Router{
		rules:        compiled,
		destinations: destMap,
		now:          time.Now,
	}, nil
}

// Route returns the ordered destination plans for the event, or a
// validation-class error when no rule matches.
func (r *Router) Route(ev event.FileEvent) ([]event.DestinationPlan, error) {
	const op = "Router.Route"

	for _, cr := range r.rules {
		if !r.matches(cr, ev) {
			continue
		}

		plans := make([]event.DestinationPlan, 0, len(cr.rule.Destinations))
		for _, destName := range cr.rule.Destinations {
			dest, ok := r.destinations[destName]
			if !ok {
				return nil, fherrors.Newf(fherrors.KindValidation, fherrors.CodeUnknownDest, op,
					"rule %q references unknown destination %q", cr.rule.Name, destName)
			}
			plans = append(plans, event.DestinationPlan{
				DestinationName: dest.Name,
				TargetPath:      r.renderTarget(cr.rule, ev),
				Kind:            dest.Kind,
				IsTopic:         dest.IsTopic,
				Options: event.PlanOptions{
					Overwrite:     cr.rule.Overwrite,
					ComputeHash:   cr.rule.ComputeHash,
					RenamePattern: cr.rule.RenamePattern,
				},
			})
		}
		return plans, nil
	}

	return nil, fherrors.Newf(fherrors.KindValidation, fherrors.CodeNoRuleMatched, op,
		"no routing rule matched %q", ev.Metadata.SourcePath)
}

func (r *Router) matches(cr compiledRule, ev event.FileEvent) bool {
	m := cr.rule.Match

	if m.SourceName != "" {
		// Reserved criterion: declaring it excludes the rule.
		return false
	}
	if m.Protocol != "" && !strings.EqualFold(m.Protocol, string(ev.Protocol)) {
		return false
	}
	if m.PathGlob != "" && !matchGlob(m.PathGlob, normalizeForGlob(ev.Metadata.SourcePath)) {
		return false
	}
	if cr.pathRegex != nil && !cr.pathRegex.MatchString(ev.Metadata.SourcePath) {
		return false
	}
	return true
}

// renderTarget renders the rule's rename pattern for the event. An empty
// pattern keeps the source file name.
func (r *Router) renderTarget(rule Rule, ev event.FileEvent) string {
	fileName := path.Base(normalizeForGlob(ev.Metadata.SourcePath))
	if rule.RenamePattern == "" {
		return fileName
	}

	rendered := strings.ReplaceAll(rule.RenamePattern, "{fileName}", fileName)
	rendered = strings.ReplaceAll(rendered, "{yyyyMMdd}", r.now().UTC().Format("20060102"))
	return rendered
}

// normalizeForGlob strips the scheme/authority prefix, any drive letter, and
// the leading slash so globs match the plain relative path.
func normalizeForGlob(raw string) string {
	p := raw
	if ref, err := event.ParseReference(raw); err == nil {
		p = ref.Path
	}

	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "/")
	if len(p) >= 2 && p[1] == ':' {
		p = p[2:]
	}
	return strings.TrimPrefix(p, "/")
}
