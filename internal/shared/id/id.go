// Package id provides centralized ID generation for the backend.
//
// Every entity identifier is a prefixed ULID ("sess_01J..."):
//   - Lexicographic sortability: ids created later sort later
//   - Prefixed types: the prefix names the entity in logs (sess_*, tab_*, wf_*)
//   - Type safety: separate string types keep a TabID from being passed as a SessionID
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ============================================================================
// Type-Safe ID Wrappers
// ============================================================================

// UserID identifies a user account
type UserID string

// SessionID identifies a browser session
type SessionID string

// TabID identifies a tab inside a browser session
type TabID string

// WorkflowID identifies an automation workflow
type WorkflowID string

// ExecutionID identifies one workflow or command run
type ExecutionID string

// TokenID identifies an issued bearer token record
type TokenID string

// RequestID identifies an API request
type RequestID string

// ============================================================================
// ID Prefixes
// ============================================================================

const (
	UserPrefix      = "usr"
	SessionPrefix   = "sess"
	TabPrefix       = "tab"
	WorkflowPrefix  = "wf"
	ExecutionPrefix = "exec"
	TokenPrefix     = "tok"
	RequestPrefix   = "req"
)

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic entropy,
// so ids generated within the same millisecond still sort in creation order.
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(ulid.Monotonic(rand.Reader, 0))
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// ============================================================================
// Typed ID Generators
// ============================================================================

func NewUserID() UserID           { return UserID(Default().GenerateWithPrefix(UserPrefix)) }
func NewSessionID() SessionID     { return SessionID(Default().GenerateWithPrefix(SessionPrefix)) }
func NewTabID() TabID             { return TabID(Default().GenerateWithPrefix(TabPrefix)) }
func NewWorkflowID() WorkflowID   { return WorkflowID(Default().GenerateWithPrefix(WorkflowPrefix)) }
func NewExecutionID() ExecutionID { return ExecutionID(Default().GenerateWithPrefix(ExecutionPrefix)) }
func NewTokenID() TokenID         { return TokenID(Default().GenerateWithPrefix(TokenPrefix)) }
func NewRequestID() RequestID     { return RequestID(Default().GenerateWithPrefix(RequestPrefix)) }

func (id UserID) String() string      { return string(id) }
func (id SessionID) String() string   { return string(id) }
func (id TabID) String() string       { return string(id) }
func (id WorkflowID) String() string  { return string(id) }
func (id ExecutionID) String() string { return string(id) }
func (id TokenID) String() string     { return string(id) }
func (id RequestID) String() string   { return string(id) }

// ============================================================================
// Parsing
// ============================================================================

// Split separates "prefix_ULID" into its parts.
func Split(s string) (prefix string, raw string, ok bool) {
	i := strings.LastIndexByte(s, '_')
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// IsValid reports whether s is a prefixed ULID carrying the given prefix.
// An empty prefix accepts any prefix.
func IsValid(s, prefix string) bool {
	p, raw, ok := Split(s)
	if !ok {
		return false
	}
	if prefix != "" && p != prefix {
		return false
	}
	_, err := ulid.ParseStrict(raw)
	return err == nil
}

// Timestamp extracts the creation time encoded in a prefixed ULID
func Timestamp(s string) (time.Time, error) {
	_, raw, ok := Split(s)
	if !ok {
		raw = s
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
