package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/typegate/internal/cache"
	"github.com/alucardeht/typegate/internal/check"
	"github.com/alucardeht/typegate/internal/config"
	"github.com/alucardeht/typegate/internal/diag"
	"github.com/alucardeht/typegate/internal/document"
	"github.com/alucardeht/typegate/internal/logger"
	"github.com/alucardeht/typegate/internal/spec"
	"github.com/alucardeht/typegate/internal/store"
	"github.com/alucardeht/typegate/pkg/protocol"
)

const (
	codeSpecNotFound  = -32001
	codeCheckRejected = -32002
)

// Server implements the daemon's JSON-RPC methods on top of the spec
// store and the check pipeline. One server serves every connection;
// all state lives in the store and the shared compilation cache.
type Server struct {
	cfg       *config.Config
	store     *store.Store
	cache     *cache.Cache
	resolver  *storeResolver
	startTime time.Time
}

func NewServer(cfg *config.Config, s *store.Store) *Server {
	c := cache.New()
	return &Server{
		cfg:       cfg,
		store:     s,
		cache:     c,
		resolver:  newStoreResolver(s, cfg.Check, c),
		startTime: time.Now(),
	}
}

func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	switch req.Method {
	case protocol.MethodHealth:
		return s.handleHealth()
	case protocol.MethodSpecPut:
		var params protocol.SpecPutParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.handleSpecPut(params)
	case protocol.MethodSpecGet:
		var params protocol.SpecGetParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.handleSpecGet(params)
	case protocol.MethodSpecList:
		return s.handleSpecList()
	case protocol.MethodSpecDelete:
		var params protocol.SpecDeleteParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.handleSpecDelete(params)
	case protocol.MethodCheckValue:
		var params protocol.CheckValueParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.handleCheckValue(params)
	case protocol.MethodCheckFile:
		var params protocol.CheckFileParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.handleCheckFile(params)
	case protocol.MethodViolationsRecent:
		var params protocol.ViolationsRecentParams
		if err := unmarshalParams(req, &params); err != nil {
			return nil, err
		}
		return s.handleViolationsRecent(params)
	}

	return nil, &jsonrpc2.Error{
		Code:    jsonrpc2.CodeMethodNotFound,
		Message: fmt.Sprintf("method %q not found", req.Method),
	}
}

func unmarshalParams(req *jsonrpc2.Request, v any) error {
	if req.Params == nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: "missing params"}
	}
	if err := json.Unmarshal(*req.Params, v); err != nil {
		return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
	}
	return nil
}

func invalidParams(format string, args ...any) error {
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

func (s *Server) handleHealth() (any, error) {
	stats, err := s.store.GetStats()
	if err != nil {
		return nil, err
	}
	return &protocol.HealthResult{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Specs:         stats.TotalSpecs,
		Violations:    stats.TotalViolations,
	}, nil
}

// handleSpecPut validates a specification before storing it: the
// source must parse and compile under the daemon configuration, so
// the store never holds an expression no checker can be built from.
func (s *Server) handleSpecPut(params protocol.SpecPutParams) (any, error) {
	if params.Name == "" {
		return nil, invalidParams("spec name is required")
	}

	tree, err := spec.Parse(params.Source)
	if err != nil {
		return nil, invalidParams("parse spec: %v", err)
	}
	if _, err := s.cache.GetOrCompile(tree, s.cfg.Check); err != nil {
		return nil, invalidParams("compile spec: %v", err)
	}

	id, err := s.store.PutSpec(&store.StoredSpec{
		Name:        params.Name,
		Source:      params.Source,
		Description: params.Description,
	})
	if err != nil {
		return nil, err
	}

	s.resolver.Invalidate(params.Name)
	logger.Info("spec stored", "name", params.Name, "id", id)

	return &protocol.SpecPutResult{ID: id, Name: params.Name}, nil
}

func (s *Server) handleSpecGet(params protocol.SpecGetParams) (any, error) {
	stored, err := s.store.GetSpec(params.Name)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, &jsonrpc2.Error{
			Code:    codeSpecNotFound,
			Message: fmt.Sprintf("no specification named %q", params.Name),
		}
	}
	return &protocol.SpecInfo{
		Name:        stored.Name,
		Source:      stored.Source,
		Description: stored.Description,
	}, nil
}

func (s *Server) handleSpecList() (any, error) {
	specs, err := s.store.ListSpecs()
	if err != nil {
		return nil, err
	}
	result := &protocol.SpecListResult{Specs: make([]protocol.SpecInfo, 0, len(specs))}
	for _, stored := range specs {
		result.Specs = append(result.Specs, protocol.SpecInfo{
			Name:        stored.Name,
			Source:      stored.Source,
			Description: stored.Description,
		})
	}
	return result, nil
}

func (s *Server) handleSpecDelete(params protocol.SpecDeleteParams) (any, error) {
	deleted, err := s.store.DeleteSpec(params.Name)
	if err != nil {
		return nil, err
	}
	if deleted {
		s.resolver.Invalidate(params.Name)
	}
	return &protocol.SpecDeleteResult{Deleted: deleted}, nil
}

func (s *Server) handleCheckValue(params protocol.CheckValueParams) (any, error) {
	tree, specName, err := s.resolveTree(params.Name, params.Source)
	if err != nil {
		return nil, err
	}

	cfg := s.cfg.Check
	if len(params.Options) > 0 {
		cfg, err = config.ParseCheckOptions(params.Options)
		if err != nil {
			return nil, invalidParams("%v", err)
		}
	}

	value, err := document.Parse(params.Value, document.FormatJSON)
	if err != nil {
		return nil, invalidParams("parse value: %v", err)
	}

	slot := params.Slot
	if slot == "" {
		slot = "value"
	}

	return s.runCheck(tree, specName, cfg, value, slot, "")
}

func (s *Server) handleCheckFile(params protocol.CheckFileParams) (any, error) {
	if params.Name == "" {
		return nil, invalidParams("spec name is required")
	}
	tree, specName, err := s.resolveTree(params.Name, "")
	if err != nil {
		return nil, err
	}

	value, _, err := document.Load(params.Path)
	if err != nil {
		return nil, invalidParams("load document: %v", err)
	}

	return s.runCheck(tree, specName, s.cfg.Check, value, "value", params.Path)
}

func (s *Server) handleViolationsRecent(params protocol.ViolationsRecentParams) (any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	violations, err := s.store.RecentViolations(params.Name, limit)
	if err != nil {
		return nil, err
	}

	result := &protocol.ViolationsRecentResult{Violations: make([]protocol.ViolationInfo, 0, len(violations))}
	for _, v := range violations {
		result.Violations = append(result.Violations, protocol.ViolationInfo{
			SpecName:   v.SpecName,
			Path:       v.Path,
			Slot:       v.Slot,
			Message:    v.Message,
			ObservedAt: v.ObservedAt.Format(time.RFC3339),
		})
	}
	return result, nil
}

// resolveTree turns a stored name or an inline source into a
// specification tree. Exactly one of the two must be given.
func (s *Server) resolveTree(name, source string) (*spec.Node, string, error) {
	switch {
	case name != "" && source != "":
		return nil, "", invalidParams("give either a spec name or an inline source, not both")
	case name != "":
		stored, err := s.store.GetSpec(name)
		if err != nil {
			return nil, "", err
		}
		if stored == nil {
			return nil, "", &jsonrpc2.Error{
				Code:    codeSpecNotFound,
				Message: fmt.Sprintf("no specification named %q", name),
			}
		}
		tree, err := spec.Parse(stored.Source)
		if err != nil {
			return nil, "", fmt.Errorf("stored specification %q: %w", name, err)
		}
		return tree, name, nil
	case source != "":
		tree, err := spec.Parse(source)
		if err != nil {
			return nil, "", invalidParams("parse spec: %v", err)
		}
		return tree, "(inline)", nil
	}
	return nil, "", invalidParams("a spec name or an inline source is required")
}

// runCheck builds a checker, evaluates the value, and on failure
// diagnoses and records the violation.
func (s *Server) runCheck(tree *spec.Node, specName string, cfg config.CheckConfig, value any, slot, path string) (any, error) {
	engine := check.NewEngine(cfg, s.cache, check.Options{Resolver: s.resolver.Resolve})
	checker, err := engine.CheckerFor(tree, slot)
	if err != nil {
		return nil, invalidParams("compile spec: %v", err)
	}

	ok, err := checker.Check(value)
	if err != nil {
		return nil, &jsonrpc2.Error{Code: codeCheckRejected, Message: err.Error()}
	}

	result := &protocol.CheckResult{
		OK:      ok,
		Expr:    checker.Expr(),
		Sampled: checker.Sampled(),
	}

	if !ok {
		d := &diag.Diagnoser{Resolver: s.resolver.Resolve}
		result.Violation = d.Explain(tree, value, slot)
		if result.Violation == "" {
			result.Violation = fmt.Sprintf("%s: %s does not satisfy %s", diag.SlotLabel(slot), diag.Label(value), tree)
		}

		if err := s.store.RecordViolation(&store.Violation{
			SpecName: specName,
			Path:     path,
			Slot:     slot,
			Message:  result.Violation,
		}); err != nil {
			logger.Warn("record violation failed", "error", err)
		}
	}

	return result, nil
}

// ValidateFile is the watcher's revalidation hook: check one file
// against a stored specification and log the outcome.
func (s *Server) ValidateFile(path, specName string) {
	result, err := s.handleCheckFile(protocol.CheckFileParams{Path: path, Name: specName})
	if err != nil {
		logger.Warn("revalidation failed", "path", path, "spec", specName, "error", err)
		return
	}
	if cr, ok := result.(*protocol.CheckResult); ok && !cr.OK {
		logger.Info("violation detected", "path", path, "spec", specName, "violation", cr.Violation)
	}
}
