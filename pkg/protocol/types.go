// Package protocol defines the request and response shapes of the
// daemon's JSON-RPC interface.
package protocol

import "encoding/json"

const (
	MethodHealth           = "health"
	MethodSpecPut          = "spec.put"
	MethodSpecGet          = "spec.get"
	MethodSpecList         = "spec.list"
	MethodSpecDelete       = "spec.delete"
	MethodCheckValue       = "check.value"
	MethodCheckFile        = "check.file"
	MethodViolationsRecent = "violations.recent"
)

type HealthResult struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Specs         int64  `json:"specs"`
	Violations    int64  `json:"violations"`
}

type SpecPutParams struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
}

type SpecPutResult struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type SpecGetParams struct {
	Name string `json:"name"`
}

type SpecInfo struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	Description string `json:"description,omitempty"`
}

type SpecListResult struct {
	Specs []SpecInfo `json:"specs"`
}

type SpecDeleteParams struct {
	Name string `json:"name"`
}

type SpecDeleteResult struct {
	Deleted bool `json:"deleted"`
}

// CheckValueParams checks an inline JSON value. Exactly one of Name
// (a stored specification) or Source (an inline expression) selects
// what to check against.
type CheckValueParams struct {
	Name    string            `json:"name,omitempty"`
	Source  string            `json:"source,omitempty"`
	Value   json.RawMessage   `json:"value"`
	Slot    string            `json:"slot,omitempty"`
	Options map[string]string `json:"options,omitempty"`
}

type CheckFileParams struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

type CheckResult struct {
	OK        bool   `json:"ok"`
	Violation string `json:"violation,omitempty"`
	Expr      string `json:"expr,omitempty"`
	Sampled   bool   `json:"sampled"`
}

type ViolationsRecentParams struct {
	Name  string `json:"name,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type ViolationInfo struct {
	SpecName   string `json:"spec_name"`
	Path       string `json:"path,omitempty"`
	Slot       string `json:"slot,omitempty"`
	Message    string `json:"message"`
	ObservedAt string `json:"observed_at"`
}

type ViolationsRecentResult struct {
	Violations []ViolationInfo `json:"violations"`
}
