package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/alucardeht/typegate/internal/config"
	"github.com/alucardeht/typegate/internal/store"
	"github.com/alucardeht/typegate/pkg/protocol"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "specs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := config.Load()
	cfg.Check = config.DefaultCheckConfig()
	cfg.Check.Sampling = false
	return NewServer(cfg, s)
}

func mustPut(t *testing.T, s *Server, name, source string) {
	t.Helper()
	if _, err := s.handleSpecPut(protocol.SpecPutParams{Name: name, Source: source}); err != nil {
		t.Fatalf("put %s: %v", name, err)
	}
}

func TestSpecPutRejectsUnparseable(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSpecPut(protocol.SpecPutParams{Name: "Bad", Source: "list["})
	rpcErr, ok := err.(*jsonrpc2.Error)
	if !ok || rpcErr.Code != jsonrpc2.CodeInvalidParams {
		t.Fatalf("expected invalid params, got %v", err)
	}

	got, _ := s.store.GetSpec("Bad")
	if got != nil {
		t.Error("rejected spec must not be stored")
	}
}

func TestSpecPutGetRoundTrip(t *testing.T) {
	s := newTestServer(t)
	mustPut(t, s, "Order", "tuple[int, str]")

	result, err := s.handleSpecGet(protocol.SpecGetParams{Name: "Order"})
	if err != nil {
		t.Fatal(err)
	}
	info := result.(*protocol.SpecInfo)
	if info.Source != "tuple[int, str]" {
		t.Errorf("got %+v", info)
	}
}

func TestSpecGetMissing(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSpecGet(protocol.SpecGetParams{Name: "nope"})
	rpcErr, ok := err.(*jsonrpc2.Error)
	if !ok || rpcErr.Code != codeSpecNotFound {
		t.Fatalf("expected spec-not-found, got %v", err)
	}
}

func TestCheckValueAgainstInlineSource(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleCheckValue(protocol.CheckValueParams{
		Source: "int | str",
		Value:  json.RawMessage(`3`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if cr := result.(*protocol.CheckResult); !cr.OK {
		t.Errorf("3 satisfies int | str, got %+v", cr)
	}

	result, err = s.handleCheckValue(protocol.CheckValueParams{
		Source: "int | str",
		Value:  json.RawMessage(`3.5`),
	})
	if err != nil {
		t.Fatal(err)
	}
	cr := result.(*protocol.CheckResult)
	if cr.OK {
		t.Error("3.5 must not satisfy int | str")
	}
	if cr.Violation == "" {
		t.Error("a failed check carries an explanation")
	}
}

func TestCheckValueSlotAnchorsViolation(t *testing.T) {
	s := newTestServer(t)

	result, err := s.handleCheckValue(protocol.CheckValueParams{
		Source: "list[int]",
		Value:  json.RawMessage(`[1, "x"]`),
		Slot:   "return",
	})
	if err != nil {
		t.Fatal(err)
	}
	cr := result.(*protocol.CheckResult)
	if cr.OK {
		t.Fatal("value must be rejected")
	}
	if !strings.Contains(cr.Violation, "return value") {
		t.Errorf("violation must be anchored at the slot label, got %q", cr.Violation)
	}
}

func TestCheckValueAgainstStoredSpec(t *testing.T) {
	s := newTestServer(t)
	mustPut(t, s, "Pair", "tuple[int, str]")

	result, err := s.handleCheckValue(protocol.CheckValueParams{
		Name:  "Pair",
		Value: json.RawMessage(`[1, "a"]`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if cr := result.(*protocol.CheckResult); !cr.OK {
		t.Errorf("got %+v", cr)
	}
}

func TestCheckValueRejectsAmbiguousTarget(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleCheckValue(protocol.CheckValueParams{
		Name:   "A",
		Source: "int",
		Value:  json.RawMessage(`1`),
	})
	if err == nil {
		t.Error("name and source together must be rejected")
	}

	_, err = s.handleCheckValue(protocol.CheckValueParams{Value: json.RawMessage(`1`)})
	if err == nil {
		t.Error("neither name nor source must be rejected")
	}
}

func TestCheckValueOptionsOverride(t *testing.T) {
	s := newTestServer(t)

	// Exhaustive mode must catch a bad element regardless of position.
	result, err := s.handleCheckValue(protocol.CheckValueParams{
		Source:  "list[int]",
		Value:   json.RawMessage(`[1, 2, "x"]`),
		Options: map[string]string{"sampling": "disabled"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cr := result.(*protocol.CheckResult); cr.OK || cr.Sampled {
		t.Errorf("got %+v", cr)
	}
}

func TestForwardRefsResolveAgainstStore(t *testing.T) {
	s := newTestServer(t)
	mustPut(t, s, "Amount", "int | float")

	result, err := s.handleCheckValue(protocol.CheckValueParams{
		Source: "list[ref[Amount]]",
		Value:  json.RawMessage(`[1, 2.5]`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if cr := result.(*protocol.CheckResult); !cr.OK {
		t.Errorf("got %+v", cr)
	}

	result, err = s.handleCheckValue(protocol.CheckValueParams{
		Source:  "list[ref[Amount]]",
		Value:   json.RawMessage(`[1, "x"]`),
		Options: map[string]string{"sampling": "disabled"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if cr := result.(*protocol.CheckResult); cr.OK {
		t.Errorf("got %+v", cr)
	}
}

func TestRecursiveSpecChecksNestedValues(t *testing.T) {
	s := newTestServer(t)
	mustPut(t, s, "Tree", "list[ref[Tree]]")

	result, err := s.handleCheckValue(protocol.CheckValueParams{
		Name:  "Tree",
		Value: json.RawMessage(`[[], [[]]]`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if cr := result.(*protocol.CheckResult); !cr.OK {
		t.Errorf("nested empty lists satisfy the recursive spec, got %+v", cr)
	}

	result, err = s.handleCheckValue(protocol.CheckValueParams{
		Name:  "Tree",
		Value: json.RawMessage(`[[1]]`),
	})
	if err != nil {
		t.Fatal(err)
	}
	if cr := result.(*protocol.CheckResult); cr.OK {
		t.Error("a leaf integer must not satisfy the recursive spec")
	}
}

func TestCheckFileRecordsViolation(t *testing.T) {
	s := newTestServer(t)
	mustPut(t, s, "Ints", "list[int]")

	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(`[1, "x", 3]`), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := s.handleCheckFile(protocol.CheckFileParams{Path: path, Name: "Ints"})
	if err != nil {
		t.Fatal(err)
	}
	cr := result.(*protocol.CheckResult)
	if cr.OK {
		t.Errorf("got %+v", cr)
	}

	violations, err := s.store.RecentViolations("Ints", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(violations) != 1 || violations[0].Path != path {
		t.Errorf("violation log: %+v", violations)
	}
}

func TestHealthReportsCounts(t *testing.T) {
	s := newTestServer(t)
	mustPut(t, s, "A", "int")

	result, err := s.handleHealth()
	if err != nil {
		t.Fatal(err)
	}
	health := result.(*protocol.HealthResult)
	if health.Status != "ok" || health.Specs != 1 {
		t.Errorf("got %+v", health)
	}
}

func TestSpecDeleteInvalidatesResolution(t *testing.T) {
	s := newTestServer(t)
	mustPut(t, s, "Amount", "int")

	check := protocol.CheckValueParams{
		Source:  "ref[Amount]",
		Value:   json.RawMessage(`1`),
		Options: map[string]string{"sampling": "disabled"},
	}
	if result, err := s.handleCheckValue(check); err != nil {
		t.Fatal(err)
	} else if !result.(*protocol.CheckResult).OK {
		t.Fatal("1 satisfies Amount")
	}

	if _, err := s.handleSpecDelete(protocol.SpecDeleteParams{Name: "Amount"}); err != nil {
		t.Fatal(err)
	}

	if _, err := s.handleCheckValue(check); err == nil {
		t.Error("references to a deleted spec must fail to resolve")
	} else if !strings.Contains(err.Error(), "Amount") {
		t.Errorf("error should name the missing spec: %v", err)
	}
}
