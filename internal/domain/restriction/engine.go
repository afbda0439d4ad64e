package restriction

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Target is the attribute a rule pattern is matched against
type Target string

const (
	TargetName      Target = "name"
	TargetExtension Target = "extension"
	TargetMIME      Target = "mime"
)

// Mode decides what a matching rule does
type Mode string

const (
	ModeAllow Mode = "allow"
	ModeDeny  Mode = "deny"
)

// Scope limits a rule to files, directories or both
type Scope string

const (
	ScopeFile      Scope = "file"
	ScopeDirectory Scope = "directory"
	ScopeAny       Scope = "any"
)

// Policy applies when no rule matches
type Policy string

const (
	PolicyAllow Policy = "allow"
	PolicyDeny  Policy = "deny"
)

// Rule is a single allow or deny pattern.
//
// Name patterns are doublestar globs over the base name, or over the full
// sandbox path (without the leading slash) when the pattern contains "/".
// Extension patterns ignore the leading dot. MIME patterns match the
// sniffed media type, e.g. "application/x-*".
type Rule struct {
	Pattern string `json:"pattern" yaml:"pattern" toml:"pattern"`
	Target  Target `json:"target" yaml:"target" toml:"target"`
	Mode    Mode   `json:"mode" yaml:"mode" toml:"mode"`
	Scope   Scope  `json:"scope,omitempty" yaml:"scope,omitempty" toml:"scope,omitempty"`
}

// Config defines the restriction policy
type Config struct {
	Rules           []Rule
	DefaultPolicy   Policy
	IgnoreCase      bool
	ImageExtensions []string
}

// Engine evaluates candidates against the configured rules. It is
// immutable after construction and safe for concurrent use.
type Engine struct {
	rules      []Rule
	policy     Policy
	ignoreCase bool
	images     map[string]struct{}
	mimeAllows bool
}

// candidate is one path element under evaluation
type candidate struct {
	name  string
	path  string
	mime  string
	isDir bool
}

// New validates cfg and builds an engine.
func New(cfg Config) (*Engine, error) {
	e := &Engine{
		policy:     cfg.DefaultPolicy,
		ignoreCase: cfg.IgnoreCase,
		images:     make(map[string]struct{}, len(cfg.ImageExtensions)),
	}
	if e.policy == "" {
		e.policy = PolicyAllow
	}
	if e.policy != PolicyAllow && e.policy != PolicyDeny {
		return nil, fmt.Errorf("unknown default policy %q", cfg.DefaultPolicy)
	}

	for i, rule := range cfg.Rules {
		if rule.Scope == "" {
			rule.Scope = ScopeAny
		}
		if err := validate(rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if rule.Target == TargetExtension {
			rule.Pattern = strings.ToLower(strings.TrimPrefix(rule.Pattern, "."))
		}
		if rule.Target == TargetMIME {
			rule.Pattern = strings.ToLower(rule.Pattern)
			if rule.Mode == ModeAllow {
				e.mimeAllows = true
			}
		}
		if e.ignoreCase && rule.Target == TargetName {
			rule.Pattern = strings.ToLower(rule.Pattern)
		}
		e.rules = append(e.rules, rule)
	}

	for _, ext := range cfg.ImageExtensions {
		e.images[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return e, nil
}

func validate(rule Rule) error {
	switch rule.Target {
	case TargetName, TargetExtension, TargetMIME:
	default:
		return fmt.Errorf("unknown target %q", rule.Target)
	}
	switch rule.Mode {
	case ModeAllow, ModeDeny:
	default:
		return fmt.Errorf("unknown mode %q", rule.Mode)
	}
	switch rule.Scope {
	case ScopeFile, ScopeDirectory, ScopeAny:
	default:
		return fmt.Errorf("unknown scope %q", rule.Scope)
	}
	if rule.Pattern == "" {
		return fmt.Errorf("empty pattern")
	}
	if !doublestar.ValidatePattern(rule.Pattern) {
		return fmt.Errorf("invalid pattern %q", rule.Pattern)
	}
	return nil
}

// IsAllowed evaluates a single base name.
func (e *Engine) IsAllowed(name string, isDir bool) bool {
	return e.decide(candidate{name: name, path: name, isDir: isDir})
}

// MatchesRestriction reports whether every element of a sandbox path
// passes. Ancestors are evaluated as directories and the last element
// with isDir. The root itself always passes.
func (e *Engine) MatchesRestriction(rel string, isDir bool) bool {
	segments := splitPath(rel)
	for i, seg := range segments {
		last := i == len(segments)-1
		c := candidate{
			name:  seg,
			path:  strings.Join(segments[:i+1], "/"),
			isDir: !last || isDir,
		}
		if !e.decide(c) {
			return false
		}
	}
	return true
}

// IsAllowedContent evaluates MIME rules against a sniffed media type.
// Without MIME allow rules every type not explicitly denied passes.
func (e *Engine) IsAllowedContent(mime string) bool {
	mime = strings.ToLower(mediaType(mime))
	allowed := !e.mimeAllows
	for _, rule := range e.rules {
		if rule.Target != TargetMIME || !match(rule.Pattern, mime) {
			continue
		}
		if rule.Mode == ModeDeny {
			return false
		}
		allowed = true
	}
	return allowed
}

// IsAllowedImageExtension reports whether ext (with or without dot) is a
// configured image type.
func (e *Engine) IsAllowedImageExtension(ext string) bool {
	_, ok := e.images[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return ok
}

// IsImage reports whether name carries an image extension.
func (e *Engine) IsImage(name string) bool {
	return e.IsAllowedImageExtension(filepath.Ext(name))
}

// ImageExtensions lists the configured image extensions in order
func (e *Engine) ImageExtensions() []string {
	exts := make([]string, 0, len(e.images))
	for ext := range e.images {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Policy returns the default policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// decide applies deny-over-allow, then the default policy.
func (e *Engine) decide(c candidate) bool {
	allowed := false
	for _, rule := range e.rules {
		if !e.applies(rule, c) || !e.matches(rule, c) {
			continue
		}
		if rule.Mode == ModeDeny {
			return false
		}
		allowed = true
	}
	return allowed || e.policy == PolicyAllow
}

func (e *Engine) applies(rule Rule, c candidate) bool {
	switch rule.Scope {
	case ScopeFile:
		if c.isDir {
			return false
		}
	case ScopeDirectory:
		if !c.isDir {
			return false
		}
	}
	switch rule.Target {
	case TargetExtension:
		return !c.isDir
	case TargetMIME:
		return !c.isDir && c.mime != ""
	}
	return true
}

func (e *Engine) matches(rule Rule, c candidate) bool {
	switch rule.Target {
	case TargetName:
		subject := c.name
		if strings.Contains(rule.Pattern, "/") {
			subject = c.path
		}
		if e.ignoreCase {
			subject = strings.ToLower(subject)
		}
		return match(rule.Pattern, subject)
	case TargetExtension:
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(c.name), "."))
		return ext != "" && match(rule.Pattern, ext)
	case TargetMIME:
		return match(rule.Pattern, strings.ToLower(mediaType(c.mime)))
	}
	return false
}

func match(pattern, subject string) bool {
	ok, err := doublestar.Match(pattern, subject)
	return err == nil && ok
}

// mediaType drops parameters such as "; charset=utf-8".
func mediaType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}

func splitPath(rel string) []string {
	var out []string
	for _, seg := range strings.Split(rel, "/") {
		if seg != "" && seg != "." {
			out = append(out, seg)
		}
	}
	return out
}
