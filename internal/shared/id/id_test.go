package id

import (
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{UserPrefix, SessionPrefix, TabPrefix, WorkflowPrefix} {
		id := gen.GenerateWithPrefix(prefix)

		if !strings.HasPrefix(id, prefix+"_") {
			t.Errorf("ID should start with '%s_', got: %s", prefix, id)
		}
		if !IsValid(id, prefix) {
			t.Errorf("ID should be valid for prefix %s: %s", prefix, id)
		}
	}
}

func TestTypedIDGeneration(t *testing.T) {
	cases := map[string]string{
		"usr_":  NewUserID().String(),
		"sess_": NewSessionID().String(),
		"tab_":  NewTabID().String(),
		"wf_":   NewWorkflowID().String(),
		"exec_": NewExecutionID().String(),
		"tok_":  NewTokenID().String(),
		"req_":  NewRequestID().String(),
	}

	for prefix, id := range cases {
		if !strings.HasPrefix(id, prefix) {
			t.Errorf("expected prefix %q, got: %s", prefix, id)
		}
	}
}

func TestIsValid(t *testing.T) {
	valid := NewTabID().String()

	tests := []struct {
		name   string
		input  string
		prefix string
		want   bool
	}{
		{"matching prefix", valid, TabPrefix, true},
		{"any prefix", valid, "", true},
		{"wrong prefix", valid, SessionPrefix, false},
		{"no separator", "tab01ARZ3NDEKTSV4RRFFQ69G5FAV", "", false},
		{"bad ulid", "tab_not-a-ulid", TabPrefix, false},
		{"empty", "", "", false},
		{"trailing separator", "tab_", TabPrefix, false},
	}

	for _, tt := range tests {
		if got := IsValid(tt.input, tt.prefix); got != tt.want {
			t.Errorf("%s: IsValid(%q, %q) = %v, want %v", tt.name, tt.input, tt.prefix, got, tt.want)
		}
	}
}

func TestGeneratedIDsSortInCreationOrder(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 200)
	for i := range ids {
		ids[i] = gen.GenerateWithPrefix(TabPrefix)
	}

	if !sort.StringsAreSorted(ids) {
		t.Error("IDs from one generator should sort in creation order")
	}
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewSessionID().String()

	ts, err := Timestamp(id)
	if err != nil {
		t.Fatalf("Timestamp failed: %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Errorf("timestamp %v outside expected window", ts)
	}
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const workers, perWorker = 8, 250
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id := gen.GenerateWithPrefix(ExecutionPrefix)
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("expected %d unique ids, got %d", workers*perWorker, len(seen))
	}
}
