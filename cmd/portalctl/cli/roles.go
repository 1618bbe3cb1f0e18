package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sentinel-cyber/portal/internal/rbac"
)

// Exit codes shared by the offline commands.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitInvalid = 10
)

// FileOptions configures commands reading a JSON document.
type FileOptions struct {
	Path       string
	Input      io.Reader
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

func (o *FileOptions) defaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
}

func (o FileOptions) read() ([]byte, error) {
	if o.Input != nil {
		return io.ReadAll(o.Input)
	}
	if o.Path == "" || o.Path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(o.Path)
}

// RoleReport is the validation outcome of one role.
type RoleReport struct {
	Name   string   `json:"name"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidateSummary is the JSON output of roles validate.
type ValidateSummary struct {
	OK    bool         `json:"ok"`
	Roles []RoleReport `json:"roles"`
}

// decodeRoles accepts a single role object or an array of roles.
func decodeRoles(data []byte) ([]rbac.Role, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty input")
	}
	if trimmed[0] == '[' {
		var roles []rbac.Role
		if err := json.Unmarshal(trimmed, &roles); err != nil {
			return nil, fmt.Errorf("decode roles: %w", err)
		}
		return roles, nil
	}
	var role rbac.Role
	if err := json.Unmarshal(trimmed, &role); err != nil {
		return nil, fmt.Errorf("decode role: %w", err)
	}
	return []rbac.Role{role}, nil
}

// ValidateCommand checks role configurations and exits 10 when any is invalid.
func ValidateCommand(opts FileOptions) int {
	opts.defaults()
	data, err := opts.read()
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "roles validate: %v\n", err)
		return ExitError
	}
	roles, err := decodeRoles(data)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "roles validate: %v\n", err)
		return ExitError
	}
	summary := ValidateSummary{OK: true, Roles: make([]RoleReport, 0, len(roles))}
	for _, role := range roles {
		problems := rbac.ValidateRoleConfiguration(role)
		if problems == nil {
			problems = []string{}
		}
		summary.Roles = append(summary.Roles, RoleReport{Name: role.Name, Valid: len(problems) == 0, Errors: problems})
		if len(problems) > 0 {
			summary.OK = false
		}
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "roles validate: encode json: %v\n", err)
			return ExitError
		}
	} else {
		for i, report := range summary.Roles {
			name := report.Name
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			if report.Valid {
				_, _ = fmt.Fprintf(opts.Stdout, "%s: ok\n", name)
				continue
			}
			_, _ = fmt.Fprintf(opts.Stdout, "%s: %d problem(s)\n", name, len(report.Errors))
			for _, msg := range report.Errors {
				_, _ = fmt.Fprintf(opts.Stdout, " - %s\n", msg)
			}
		}
	}
	if !summary.OK {
		return ExitInvalid
	}
	return ExitOK
}

// EffectiveCommand prints the hierarchy-amplified permissions of each role.
func EffectiveCommand(opts FileOptions) int {
	opts.defaults()
	data, err := opts.read()
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "roles effective: %v\n", err)
		return ExitError
	}
	roles, err := decodeRoles(data)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "roles effective: %v\n", err)
		return ExitError
	}
	out := make(map[string][]rbac.Permission, len(roles))
	for _, role := range roles {
		out[role.Name] = rbac.EffectivePermissions(role)
	}
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(out); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "roles effective: encode json: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
	for _, role := range roles {
		_, _ = fmt.Fprintf(opts.Stdout, "%s (%s)\n", role.Name, role.BaseRole)
		renderPermissions(opts.Stdout, out[role.Name])
	}
	return ExitOK
}

// MergeCommand collapses a permission list per category and resource.
func MergeCommand(opts FileOptions) int {
	opts.defaults()
	data, err := opts.read()
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "permissions merge: %v\n", err)
		return ExitError
	}
	var perms []rbac.Permission
	if err := json.Unmarshal(data, &perms); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "permissions merge: decode permissions: %v\n", err)
		return ExitError
	}
	merged := rbac.MergePermissions(perms)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(merged); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "permissions merge: encode json: %v\n", err)
			return ExitError
		}
		return ExitOK
	}
	renderPermissions(opts.Stdout, merged)
	return ExitOK
}

// CompareCommand reports how two base roles rank against each other.
func CompareCommand(a, b string, stdout, stderr io.Writer) int {
	left, okA := rbac.ParseBaseRole(a)
	right, okB := rbac.ParseBaseRole(b)
	if !okA || !okB {
		_, _ = fmt.Fprintf(stderr, "hierarchy compare: expected base roles from %s\n", strings.Join(baseRoleNames(), ", "))
		return ExitError
	}
	switch {
	case rbac.IsRoleHigherThan(left, right):
		_, _ = fmt.Fprintf(stdout, "%s (%d) outranks %s (%d)\n", left, rbac.Weight(left), right, rbac.Weight(right))
	case rbac.IsRoleHigherThan(right, left):
		_, _ = fmt.Fprintf(stdout, "%s (%d) is outranked by %s (%d)\n", left, rbac.Weight(left), right, rbac.Weight(right))
	default:
		_, _ = fmt.Fprintf(stdout, "%s and %s rank equally (%d)\n", left, right, rbac.Weight(left))
	}
	return ExitOK
}

func baseRoleNames() []string {
	roles := rbac.BaseRoles()
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return names
}

func renderPermissions(w io.Writer, perms []rbac.Permission) {
	if len(perms) == 0 {
		_, _ = fmt.Fprintln(w, "  (no permissions)")
		return
	}
	for _, p := range perms {
		_, _ = fmt.Fprintf(w, "  %-8s %-6s %s\n", p.Category, p.Action, p.Resource)
	}
}
