// Package rbac defines the permission keys that gate API operations and the
// built-in roles seeded on first start.
package rbac

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Permission string

const (
	Dashboard Permission = "dashboard"
	Sales     Permission = "sales"
	Orders    Permission = "orders"
	Kitchen   Permission = "kitchen"
	Products  Permission = "products"
	Expenses  Permission = "expenses"
	Stock     Permission = "stock"
	Reports   Permission = "reports"
	Users     Permission = "users"
	Sessions  Permission = "sessions"
)

// Descriptor is the display form of a permission key.
type Descriptor struct {
	Key  Permission `json:"key"`
	Name string     `json:"name"`
}

var catalog = []Descriptor{
	{Dashboard, "Dashboard"},
	{Sales, "Sales"},
	{Orders, "Orders"},
	{Kitchen, "Kitchen"},
	{Products, "Products"},
	{Expenses, "Expenses"},
	{Stock, "Stock"},
	{Reports, "Reports"},
	{Users, "Users"},
	{Sessions, "Business days"},
}

func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

func Known(p Permission) bool {
	for _, d := range catalog {
		if d.Key == p {
			return true
		}
	}
	return false
}

// Set is an unordered collection of permissions.
type Set map[Permission]struct{}

func NewSet(perms ...Permission) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[p] = struct{}{}
	}
	return s
}

func All() Set {
	s := make(Set, len(catalog))
	for _, d := range catalog {
		s[d.Key] = struct{}{}
	}
	return s
}

// ParseSet validates raw keys and rejects unknown ones.
func ParseSet(keys []string) (Set, error) {
	s := make(Set, len(keys))
	for _, raw := range keys {
		p := Permission(strings.ToLower(strings.TrimSpace(raw)))
		if !Known(p) {
			return nil, fmt.Errorf("unknown permission %q", raw)
		}
		s[p] = struct{}{}
	}
	return s, nil
}

func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Sorted returns the keys in a stable order for storage and output.
func (s Set) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s Set) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, p := range sorted {
		out[i] = string(p)
	}
	return out
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var keys []string
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}
	parsed, err := ParseSet(keys)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// HasAny reports whether granted contains at least one of required. An empty
// required set only demands authentication and always passes.
func HasAny(required, granted Set) bool {
	if len(required) == 0 {
		return true
	}
	for p := range required {
		if granted.Has(p) {
			return true
		}
	}
	return false
}

// HasAll reports whether granted contains every permission in required.
func HasAll(required, granted Set) bool {
	for p := range required {
		if !granted.Has(p) {
			return false
		}
	}
	return true
}

// BuiltinRole is a role created by seeding.
type BuiltinRole struct {
	Name        string
	Description string
	Permissions Set
}

const AdminRole = "admin"

func BuiltinRoles() []BuiltinRole {
	return []BuiltinRole{
		{Name: AdminRole, Description: "Full access", Permissions: All()},
		{Name: "cashier", Description: "Front of house", Permissions: NewSet(Dashboard, Sales, Orders, Kitchen, Expenses, Sessions)},
		{Name: "kitchen", Description: "Kitchen display", Permissions: NewSet(Kitchen)},
	}
}
