package parsers

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	logpkg "github.com/haukened/risklists/internal/risk/common/log"
	"github.com/haukened/risklists/internal/risk/domain"
)

// EnvSource attributes rules that came from the UMBRELLA_EXCLUDE variable.
const EnvSource = "env"

// ParsePlainList parses a newline-delimited list of names into exclusion rules.
// Names are exact by default; a leading "*." or "." makes a suffix rule.
//
// Comments start with '#', either whole-line or inline. Invalid tokens are
// skipped. Duplicates (same name and kind) are dropped, first one wins.
func ParsePlainList(r io.Reader, source string, logger logpkg.Logger) ([]domain.ExclusionRule, error) {
	scanner := bufio.NewScanner(r)

	seen := make(map[string]struct{})
	out := make([]domain.ExclusionRule, 0, 64)
	logger.Debug(map[string]any{"source": source}, "parse_plain_list_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		s := stripComment(scanner.Text())
		if s == "" {
			continue
		}

		rule, ok := newRule(s, source)
		if !ok {
			logger.Debug(map[string]any{"line": lineNum, "raw": s}, "skip_invalid_fqdn")
			continue
		}

		seenKey := rule.Name + "|" + rule.Kind.String()
		if _, dup := seen[seenKey]; dup {
			continue
		}
		seen[seenKey] = struct{}{}
		out = append(out, rule)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_plain_list_done")
	return out, nil
}

// ParseNames converts configured names into rules. Unlike the file format,
// a bare name here is a suffix rule, matching the built-in exclusions. A
// leading "=" asks for an exact match, and a "exact:" or "suffix:" prefix
// names the kind outright.
func ParseNames(names []string, source string) ([]domain.ExclusionRule, error) {
	out := make([]domain.ExclusionRule, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, raw := range names {
		s := stripComment(raw)
		if s == "" {
			continue
		}
		kind := domain.ExclusionSuffix
		if len(s) > 1 && s[0] == '=' {
			kind, s = domain.ExclusionExact, s[1:]
		} else if prefix, rest, ok := strings.Cut(s, ":"); ok {
			k, err := domain.ParseExclusionRuleKind(prefix)
			if err != nil {
				return nil, fmt.Errorf("%w: exclusion %q: %v", domain.ErrInvalidArgument, raw, err)
			}
			kind, s = k, rest
		}
		rule, ok := newRule(s, source)
		if !ok {
			return nil, fmt.Errorf("%w: invalid exclusion %q", domain.ErrInvalidArgument, raw)
		}
		rule.Kind = kind
		key := rule.Name + "|" + rule.Kind.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rule)
	}
	return out, nil
}

// LoadFile opens path and parses it with ParsePlainList, using the path as
// the rule source.
func LoadFile(path string, logger logpkg.Logger) ([]domain.ExclusionRule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open exclusions file: %w", err)
	}
	defer f.Close()
	rules, err := ParsePlainList(f, path, logger)
	if err != nil {
		return nil, fmt.Errorf("read exclusions file %s: %w", path, err)
	}
	return rules, nil
}
