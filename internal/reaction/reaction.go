// Package reaction stores emoji-style reactions as symbol to user sets.
package reaction

import (
	"encoding/json"
	"sort"
)

// Set maps a reaction symbol to the users who added it. The zero value is
// ready to use. Set is not safe for concurrent use; owners guard it.
type Set struct {
	bySymbol map[string]map[string]struct{}
}

// Add records userID reacting with symbol. Returns false if the reaction
// was already present.
func (s *Set) Add(symbol, userID string) bool {
	if s.bySymbol == nil {
		s.bySymbol = make(map[string]map[string]struct{})
	}
	users, ok := s.bySymbol[symbol]
	if !ok {
		users = make(map[string]struct{})
		s.bySymbol[symbol] = users
	}
	if _, dup := users[userID]; dup {
		return false
	}
	users[userID] = struct{}{}
	return true
}

// Remove deletes userID's reaction. Returns false if there was none.
func (s *Set) Remove(symbol, userID string) bool {
	users, ok := s.bySymbol[symbol]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(s.bySymbol, symbol)
	}
	return true
}

// Toggle adds the reaction if absent and removes it otherwise.
// Returns true if the reaction is present afterwards.
func (s *Set) Toggle(symbol, userID string) bool {
	if s.Remove(symbol, userID) {
		return false
	}
	return s.Add(symbol, userID)
}

// Has reports whether userID reacted with symbol.
func (s *Set) Has(symbol, userID string) bool {
	_, ok := s.bySymbol[symbol][userID]
	return ok
}

// Users returns the users who reacted with symbol, sorted.
func (s *Set) Users(symbol string) []string {
	users := s.bySymbol[symbol]
	out := make([]string, 0, len(users))
	for u := range users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Counts returns the number of users per symbol.
func (s *Set) Counts() map[string]int {
	out := make(map[string]int, len(s.bySymbol))
	for sym, users := range s.bySymbol {
		out[sym] = len(users)
	}
	return out
}

// Symbols returns every symbol with at least one reaction, sorted.
func (s *Set) Symbols() []string {
	out := make([]string, 0, len(s.bySymbol))
	for sym := range s.bySymbol {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy.
func (s *Set) Clone() Set {
	var c Set
	for sym, users := range s.bySymbol {
		for u := range users {
			c.Add(sym, u)
		}
	}
	return c
}

// Map returns the reactions as symbol to sorted user list, suitable for encoding.
func (s *Set) Map() map[string][]string {
	out := make(map[string][]string, len(s.bySymbol))
	for sym := range s.bySymbol {
		out[sym] = s.Users(sym)
	}
	return out
}

// MarshalJSON encodes the set as an object of symbol to sorted user IDs.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Map())
}

// UnmarshalJSON decodes the form written by MarshalJSON, replacing s.
func (s *Set) UnmarshalJSON(data []byte) error {
	var m map[string][]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	s.bySymbol = nil
	for sym, users := range m {
		for _, u := range users {
			s.Add(sym, u)
		}
	}
	return nil
}
