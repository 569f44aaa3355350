// Package content resolves companion text by content key.
//
// A key names an asset and an entry in it: "Strings/Strings:askToFollow" is the
// entry askToFollow of the asset Strings/Strings. Entries may carry {0}, {1}, ...
// placeholders filled from the arguments of LoadString.
package content

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrAssetNotFound is returned when an asset has no table.
var ErrAssetNotFound = errors.New("asset not found")

// Loader resolves text by content key.
type Loader interface {
	LoadString(key string, args ...any) (string, bool)
	LoadStrings(asset string) (map[string]string, error)
}

// SplitKey splits "Asset:key" into its asset and entry.
func SplitKey(key string) (asset, entry string, ok bool) {
	i := strings.LastIndex(key, ":")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// Format replaces {0}, {1}, ... in s with args.
func Format(s string, args ...any) string {
	for i, a := range args {
		s = strings.ReplaceAll(s, fmt.Sprintf("{%d}", i), fmt.Sprint(a))
	}
	return s
}

// YAMLLoader reads string tables from <dir>/<asset>.yaml. Each file is a flat
// mapping of entry to text. Tables are cached after the first read.
type YAMLLoader struct {
	dir string

	mu     sync.Mutex
	tables map[string]map[string]string
}

// NewYAMLLoader creates a loader rooted at dir.
func NewYAMLLoader(dir string) *YAMLLoader {
	return &YAMLLoader{dir: dir, tables: make(map[string]map[string]string)}
}

// LoadStrings returns the whole table of asset.
func (l *YAMLLoader) LoadStrings(asset string) (map[string]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if table, ok := l.tables[asset]; ok {
		return table, nil
	}

	path := filepath.Join(l.dir, filepath.FromSlash(asset)+".yaml")
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	table := map[string]string{}
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	l.tables[asset] = table
	return table, nil
}

// LoadString returns the formatted text of key. When the key is unknown it
// returns the key itself and false.
func (l *YAMLLoader) LoadString(key string, args ...any) (string, bool) {
	asset, entry, ok := SplitKey(key)
	if !ok {
		return key, false
	}
	table, err := l.LoadStrings(asset)
	if err != nil {
		return key, false
	}
	text, ok := table[entry]
	if !ok {
		return key, false
	}
	return Format(text, args...), true
}

// Static is a loader backed by a map of full keys to text.
type Static map[string]string

// LoadString returns the formatted text of key, or the key and false.
func (s Static) LoadString(key string, args ...any) (string, bool) {
	text, ok := s[key]
	if !ok {
		return key, false
	}
	return Format(text, args...), true
}

// LoadStrings collects every entry of asset.
func (s Static) LoadStrings(asset string) (map[string]string, error) {
	table := map[string]string{}
	for key, text := range s {
		if a, entry, ok := SplitKey(key); ok && a == asset {
			table[entry] = text
		}
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}
	return table, nil
}

// Builtin holds the shared strings every session needs. Peers fall back to it
// when no content_dir is configured.
var Builtin = Static{
	"Strings/Strings:askToFollow":            "Ask {0} to follow you?",
	"Strings/Strings:companionSuggest":       "{0} looks like they want to go on an adventure. Invite them?",
	"Strings/Strings:recruitedWant":          "What do you want from {0}?",
	"Strings/Strings:choice_yes":             "Yes",
	"Strings/Strings:choice_no":              "No",
	"Strings/Strings:choice_bag":             "Open their bag",
	"Strings/Strings:choice_dismiss":         "Send them home",
	"Strings/Strings:choice_nothing":         "Nothing",
	"Strings/Strings:companionSuggest_Yes":   "Let's go!",
	"Strings/Strings:companionSuggest_No":    "Maybe another time.",
	"Strings/Strings:companionAccepted":      "Sure, lead the way.",
	"Strings/Strings:companionRejected":      "I don't know you well enough yet.",
	"Strings/Strings:companionRejectedNight": "It's too late to go anywhere.",
	"Strings/Strings:companionRecruited":     "{0} is now following you.",
	"Strings/Strings:companionBusy":          "{0} is busy right now.",
	"Strings/Strings:companionDismiss":       "See you around.",
	"Strings/Strings:companionDismissAuto":   "It's getting late, I'm heading home.",
	"Strings/Strings:claim_taken":            "{0} is already with someone else.",
	"Strings/Strings:claim_not-free":         "You can't bring {0} along right now.",
	"Strings/Strings:claim_already-yours":    "{0} is already following you.",
}

// Fallback resolves keys from primary first, then from secondary.
type Fallback struct {
	Primary   Loader
	Secondary Static
}

// LoadString returns the text of key from the first loader that has it.
func (f Fallback) LoadString(key string, args ...any) (string, bool) {
	if text, ok := f.Primary.LoadString(key, args...); ok {
		return text, true
	}
	return f.Secondary.LoadString(key, args...)
}

// LoadStrings merges the tables of asset, primary entries winning.
func (f Fallback) LoadStrings(asset string) (map[string]string, error) {
	table, err := f.Primary.LoadStrings(asset)
	if err != nil && !errors.Is(err, ErrAssetNotFound) {
		return nil, err
	}
	merged := map[string]string{}
	if base, berr := f.Secondary.LoadStrings(asset); berr == nil {
		maps.Copy(merged, base)
	}
	maps.Copy(merged, table)
	if len(merged) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAssetNotFound, asset)
	}
	return merged, nil
}
