package domain

import "github.com/proofrock/sqliterg/internal/apperr"

// Credentials is the request-body credential pair used by INLINE auth mode.
// Grounded on original_source/tests/structs.go's credentials struct.
type Credentials struct {
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
}

// RequestItem is one entry in a transaction's ordered item list. Exactly one
// of Query/Statement is set; at most one of Values/ValuesBatch is set.
type RequestItem struct {
	Query       string `json:"query,omitempty"`
	Statement   string `json:"statement,omitempty"`
	NoFail      bool   `json:"noFail,omitempty"`
	Values      any    `json:"values,omitempty"`
	ValuesBatch any    `json:"valuesBatch,omitempty"`
}

// IsQuery reports whether this item expects a result set rather than an
// update count.
func (it RequestItem) IsQuery() bool {
	return it.Query != ""
}

// Text returns the item's raw (unresolved) SQL text, regardless of which of
// Query/Statement was populated.
func (it RequestItem) Text() string {
	if it.Query != "" {
		return it.Query
	}
	return it.Statement
}

// Validate enforces the request item's shape: exactly one of query/statement,
// at most one of values/valuesBatch (the latter is re-checked by the binder,
// which owns the BadRequest message for it) — spec §4.4 step 1.
func (it RequestItem) Validate() error {
	if it.Query == "" && it.Statement == "" {
		return apperr.BadRequest("item must set exactly one of query or statement")
	}
	if it.Query != "" && it.Statement != "" {
		return apperr.BadRequest("item must set exactly one of query or statement, not both")
	}
	return nil
}

// Request is the full body of POST /<db>.
type Request struct {
	Credentials *Credentials  `json:"credentials,omitempty"`
	Transaction []RequestItem `json:"transaction"`
}

// ResultItem is one entry in a Response, mirroring a RequestItem 1:1.
//
// ResultSet has no omitempty: encoding/json's omitempty drops a non-nil
// empty slice as well as a nil one, but spec §8 requires the resultSet key
// to be present (as []) whenever the item was a query, even when it matched
// zero rows — omitting the tag keeps the key present for query results while
// queries still report the zero value. For statement results, execStatement
// never populates ResultSet, so it stays nil and still marshals to `null`;
// that's fine since only items where IsQuery() is true are expected to carry
// a resultSet key at all.
type ResultItem struct {
	Success          bool             `json:"success"`
	RowsUpdated      *int             `json:"rowsUpdated,omitempty"`
	RowsUpdatedBatch []int            `json:"rowsUpdatedBatch,omitempty"`
	ResultSet        []map[string]any `json:"resultSet"`
	Error            string           `json:"error,omitempty"`
}

// Response is the full body returned from POST /<db>.
type Response struct {
	Results []ResultItem `json:"results"`
}

// ErrorBody is the body returned on any client-facing error.
type ErrorBody struct {
	Error string `json:"error"`
	Index *int   `json:"index,omitempty"`
}
