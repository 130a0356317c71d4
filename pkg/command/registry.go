package command

import (
	"sort"
	"strings"
)

// Registry maps upper-cased names and aliases to cloneable command
// templates. Executions always operate on a Clone of the template, never
// the template itself.
type Registry struct {
	commands   map[string]Command
	aliases    map[string]string
	categories map[string][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:   make(map[string]Command),
		aliases:    make(map[string]string),
		categories: make(map[string][]string),
	}
}

// Register adds a command template under its name and all its aliases.
func (r *Registry) Register(cmd Command) {
	name := strings.ToUpper(cmd.Name())

	for _, alias := range cmd.Aliases() {
		r.aliases[strings.ToUpper(alias)] = name
	}

	r.commands[name] = cmd
}

// RegisterWithCategory registers cmd and records it under category for
// help presentation.
func (r *Registry) RegisterWithCategory(cmd Command, category string) {
	name := strings.ToUpper(cmd.Name())
	r.categories[category] = append(r.categories[category], name)
	r.Register(cmd)
}

// Get looks up a command template by name or alias.
func (r *Registry) Get(name string) (Command, bool) {
	upper := strings.ToUpper(name)

	if cmd, ok := r.commands[upper]; ok {
		return cmd, true
	}

	if actual, ok := r.aliases[upper]; ok {
		cmd, ok := r.commands[actual]
		return cmd, ok
	}

	return nil, false
}

// CloneCommand returns a fresh clone of the template registered under
// name or alias.
func (r *Registry) CloneCommand(name string) (Command, bool) {
	cmd, ok := r.Get(name)
	if !ok {
		return nil, false
	}

	return cmd.Clone(), true
}

// Contains reports whether name or alias resolves to a registered command.
func (r *Registry) Contains(name string) bool {
	upper := strings.ToUpper(name)
	_, byName := r.commands[upper]
	_, byAlias := r.aliases[upper]

	return byName || byAlias
}

// CommandNames returns all registered names, sorted.
func (r *Registry) CommandNames() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Categories returns all category names, sorted.
func (r *Registry) Categories() []string {
	cats := make([]string, 0, len(r.categories))
	for cat := range r.categories {
		cats = append(cats, cat)
	}

	sort.Strings(cats)

	return cats
}

// GetCategory returns the command names registered under category.
func (r *Registry) GetCategory(category string) []string {
	out := make([]string, len(r.categories[category]))
	copy(out, r.categories[category])

	return out
}

// Autocomplete returns command names and "alias (name)" suggestions whose
// prefix matches partial, sorted.
func (r *Registry) Autocomplete(partial string) []string {
	upper := strings.ToUpper(partial)

	var suggestions []string

	for name := range r.commands {
		if strings.HasPrefix(name, upper) {
			suggestions = append(suggestions, name)
		}
	}

	for alias, name := range r.aliases {
		if strings.HasPrefix(alias, upper) {
			suggestions = append(suggestions, alias+" ("+name+")")
		}
	}

	sort.Strings(suggestions)

	return suggestions
}

// Count returns the number of registered command templates.
func (r *Registry) Count() int { return len(r.commands) }

// Unregister removes a command and every alias/category entry pointing
// to it. Reports whether a command was actually removed.
func (r *Registry) Unregister(name string) bool {
	upper := strings.ToUpper(name)

	_, existed := r.commands[upper]
	delete(r.commands, upper)

	for alias, target := range r.aliases {
		if target == upper {
			delete(r.aliases, alias)
		}
	}

	for cat, names := range r.categories {
		filtered := names[:0]

		for _, n := range names {
			if n != upper {
				filtered = append(filtered, n)
			}
		}

		r.categories[cat] = filtered
	}

	return existed
}

// FuzzyMatch returns registered names and aliases within Levenshtein
// distance maxDistance of name, sorted and deduplicated.
func (r *Registry) FuzzyMatch(name string, maxDistance int) []string {
	upper := strings.ToUpper(name)
	seen := make(map[string]struct{})

	var matches []string

	add := func(candidate string) {
		if _, ok := seen[candidate]; ok {
			return
		}

		seen[candidate] = struct{}{}
		matches = append(matches, candidate)
	}

	for cmdName := range r.commands {
		if levenshteinDistance(upper, cmdName) <= maxDistance {
			add(cmdName)
		}
	}

	for alias := range r.aliases {
		if levenshteinDistance(upper, alias) <= maxDistance {
			add(alias)
		}
	}

	sort.Strings(matches)

	return matches
}

// levenshteinDistance computes the classic edit distance between two
// strings, operating byte-wise (command names are ASCII).
func levenshteinDistance(a, b string) int {
	la, lb := len(a), len(b)
	if la == 0 {
		return lb
	}

	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)

	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i

		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost

			curr[j] = minOf3(del, ins, sub)
		}

		prev, curr = curr, prev
	}

	return prev[lb]
}

func minOf3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}

	if c < m {
		m = c
	}

	return m
}
