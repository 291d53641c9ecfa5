package domain

import "time"

type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypePassword FieldType = "password"
)

type ConfigField struct {
	Key   string    `json:"key"`
	Type  FieldType `json:"type"`
	Title string    `json:"title"`
}

// Configuration holds user-supplied values keyed by ConfigField.Key.
type Configuration map[string]string

func (c Configuration) Get(key string) string {
	if c == nil {
		return ""
	}
	return c[key]
}

type ResolverInfo struct {
	Name         string        `json:"name"`
	ConfigFields []ConfigField `json:"configFields"`
	Cleanable    bool          `json:"cleanable"`
}

type ResolverDiagnostics struct {
	Name                string     `json:"name"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	LastError           string     `json:"lastError,omitempty"`
	LastOperation       string     `json:"lastOperation,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	TotalRequests       int64      `json:"totalRequests"`
	TotalFailures       int64      `json:"totalFailures"`
	TimeoutCount        int64      `json:"timeoutCount,omitempty"`
}

// LookupRecord is one served stream request, kept for diagnostics.
type LookupRecord struct {
	ID        string    `json:"id"`
	Type      MediaType `json:"type"`
	MetaID    string    `json:"metaId"`
	Title     string    `json:"title"`
	Terms     []string  `json:"terms,omitempty"`
	Resolvers []string  `json:"resolvers,omitempty"`
	Streams   int       `json:"streams"`
	ElapsedMS int64     `json:"elapsedMs"`
	CreatedAt time.Time `json:"createdAt"`
}
