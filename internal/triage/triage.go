package triage

import (
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the rule file structure.
type Config struct {
	Rules    map[string]Rule `yaml:"rules"`
	Settings Settings        `yaml:"settings"`
}

// Rule flags one category of urgent symptom narrative.
type Rule struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Priority    int       `yaml:"priority"`
	Patterns    []Pattern `yaml:"patterns"`
}

// Pattern is a single matching strategy within a rule.
type Pattern struct {
	Type       string     `yaml:"type"`
	Phrases    []string   `yaml:"phrases,omitempty"`
	Words      [][]string `yaml:"words,omitempty"`
	WordGroups [][]string `yaml:"word_groups,omitempty"`
}

type Settings struct {
	CaseSensitive bool `yaml:"case_sensitive"`
	ReloadOnCheck bool `yaml:"reload_on_check"`
}

// Matcher screens symptom narratives for red-flag phrases that need a human
// before any automated work-up.
type Matcher struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
	lastLoad   time.Time
}

func NewMatcher(configPath string) (*Matcher, error) {
	m := &Matcher{configPath: configPath}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load triage rules: %w", err)
	}
	return m, nil
}

func (m *Matcher) loadConfig() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return fmt.Errorf("failed to read rule file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse rule file: %w", err)
	}

	m.config = &config
	m.lastLoad = time.Now()

	log.Printf("Loaded triage rules: %d", len(config.Rules))
	return nil
}

func (m *Matcher) reloadIfNeeded() error {
	m.mu.RLock()
	shouldReload := m.config.Settings.ReloadOnCheck
	m.mu.RUnlock()

	if !shouldReload {
		return nil
	}
	info, err := os.Stat(m.configPath)
	if err != nil {
		return err
	}
	if info.ModTime().After(m.lastLoad) {
		log.Printf("Triage rule file modified, reloading")
		return m.loadConfig()
	}
	return nil
}

// Detect returns the highest-priority rule the narrative trips, or nil.
func (m *Matcher) Detect(text string) *Rule {
	if err := m.reloadIfNeeded(); err != nil {
		log.Printf("Failed to reload triage rules: %v", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	searchText := text
	if !m.config.Settings.CaseSensitive {
		searchText = strings.ToLower(text)
	}

	// Map iteration order is random; check highest priority first so ties
	// between overlapping rules resolve the same way every call.
	keys := make([]string, 0, len(m.config.Rules))
	for k := range m.config.Rules {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := m.config.Rules[keys[i]], m.config.Rules[keys[j]]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return keys[i] < keys[j]
	})

	for _, k := range keys {
		rule := m.config.Rules[k]
		if m.matchesRule(searchText, rule) {
			log.Printf("Triage match: %s - '%s'", rule.Name, text)
			return &rule
		}
	}
	return nil
}

// Rules returns the loaded rule set keyed by rule id.
func (m *Matcher) Rules() map[string]Rule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Rule, len(m.config.Rules))
	for k, v := range m.config.Rules {
		out[k] = v
	}
	return out
}

func (m *Matcher) matchesRule(searchText string, rule Rule) bool {
	for _, pattern := range rule.Patterns {
		if m.matchesPattern(searchText, pattern) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchesPattern(searchText string, pattern Pattern) bool {
	switch pattern.Type {
	case "exact":
		return m.matchesExact(searchText, pattern.Phrases)
	case "combo":
		return m.matchesCombo(searchText, pattern.Words)
	case "alternative":
		return m.matchesAlternative(searchText, pattern.WordGroups)
	default:
		log.Printf("Unknown pattern type: %s", pattern.Type)
		return false
	}
}

func (m *Matcher) matchesExact(searchText string, phrases []string) bool {
	for _, phrase := range phrases {
		checkPhrase := phrase
		if !m.config.Settings.CaseSensitive {
			checkPhrase = strings.ToLower(phrase)
		}
		if strings.Contains(searchText, checkPhrase) {
			return true
		}
	}
	return false
}

// matchesCombo requires every word of at least one word list to be present.
func (m *Matcher) matchesCombo(searchText string, wordLists [][]string) bool {
	for _, wordList := range wordLists {
		allPresent := true
		for _, word := range wordList {
			checkWord := word
			if !m.config.Settings.CaseSensitive {
				checkWord = strings.ToLower(word)
			}
			if !strings.Contains(searchText, checkWord) {
				allPresent = false
				break
			}
		}
		if allPresent {
			return true
		}
	}
	return false
}

// matchesAlternative requires at least one word from every group.
func (m *Matcher) matchesAlternative(searchText string, wordGroups [][]string) bool {
	for _, group := range wordGroups {
		groupMatched := false
		for _, word := range group {
			checkWord := word
			if !m.config.Settings.CaseSensitive {
				checkWord = strings.ToLower(word)
			}
			if strings.Contains(searchText, checkWord) {
				groupMatched = true
				break
			}
		}
		if !groupMatched {
			return false
		}
	}
	return true
}
