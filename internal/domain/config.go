// Package domain holds the typed config model decoded from each database's
// YAML file, and the JSON wire types for the transaction request/response
// contract. Grounded on the original sqliterg config shape (see
// original_source/tests/structs.go) and restated as idiomatic Go with
// yaml.v3/json tags the way the teacher tags its domain.Config.
package domain

// AuthMode selects where client credentials are read from.
type AuthMode string

const (
	AuthModeInline    AuthMode = "INLINE"
	AuthModeHTTPBasic AuthMode = "HTTP_BASIC"
)

// Credential is one entry in an auth.byCredentials list.
type Credential struct {
	User           string `yaml:"user"`
	Password       string `yaml:"password,omitempty"`
	HashedPassword string `yaml:"hashedPassword,omitempty"`
}

// Auth configures the per-database client authentication gate (§4.7).
type Auth struct {
	Mode          AuthMode     `yaml:"mode"`
	AuthErrorCode *int         `yaml:"authErrorCode,omitempty"`
	ByQuery       string       `yaml:"byQuery,omitempty"`
	ByCredentials []Credential `yaml:"byCredentials,omitempty"`
}

// StoredStatement is an immutable (id, sql) pair referenced via "^id".
type StoredStatement struct {
	ID  string `yaml:"id"`
	SQL string `yaml:"sql"`
}

// WebService configures a macro/backup's web-callable token auth (§4.5/§4.6).
type WebService struct {
	AuthErrorCode   *int    `yaml:"authErrorCode,omitempty"`
	AuthToken       *string `yaml:"authToken,omitempty"`
	HashedAuthToken *string `yaml:"hashedAuthToken,omitempty"`
}

// Execution names the triggers under which a macro or backup runs (§3).
type Execution struct {
	OnCreate   bool        `yaml:"onCreate,omitempty"`
	OnStartup  bool        `yaml:"onStartup,omitempty"`
	Period     uint        `yaml:"period,omitempty"` // whole minutes
	WebService *WebService `yaml:"webService,omitempty"`
}

// Macro is a named, ordered list of SQL statements with triggers.
type Macro struct {
	ID                 string    `yaml:"id"`
	DisableTransaction bool      `yaml:"disableTransaction,omitempty"`
	Statements         []string  `yaml:"statements"`
	Execution          Execution `yaml:"execution"`
}

// Backup configures the retention-bounded online backup policy (§4.6).
type Backup struct {
	BackupDir string    `yaml:"backupDir"`
	NumFiles  uint      `yaml:"numFiles"`
	Execution Execution `yaml:"execution"`
}

// Database is the full per-database YAML config (spec §6).
type Database struct {
	Auth                    *Auth             `yaml:"auth,omitempty"`
	ReadOnly                bool              `yaml:"readOnly,omitempty"`
	CORSOrigin              string            `yaml:"corsOrigin,omitempty"`
	UseOnlyStoredStatements bool              `yaml:"useOnlyStoredStatements,omitempty"`
	JournalMode             string            `yaml:"journalMode,omitempty"`
	StoredStatements        []StoredStatement `yaml:"storedStatements,omitempty"`
	Macros                  []Macro           `yaml:"macros,omitempty"`
	Backup                  *Backup           `yaml:"backup,omitempty"`
}

// HasOnCreateAndOnStartup reports whether m fires on both the create cycle
// and every later startup, per the invariant in spec §3: such a macro runs
// exactly once per process lifetime (the on-create run subsumes on-startup
// on the create cycle).
func (m Macro) HasOnCreateAndOnStartup() bool {
	return m.Execution.OnCreate && m.Execution.OnStartup
}
