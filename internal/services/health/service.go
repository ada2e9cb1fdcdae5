// Package health reports whether the analysis pipeline can serve requests.
package health

import (
	"context"
	"database/sql"
	"time"

	"cropguard/internal/shared/config"
)

const pingTimeout = 2 * time.Second

// Status is the /health payload. OK is false only when a configured
// database cannot be reached; missing credentials are reported but do not
// fail the probe since history routes still work.
type Status struct {
	OK          bool              `json:"ok"`
	Credentials CredentialsStatus `json:"credentials"`
	Database    string            `json:"database"`
	Missing     []string          `json:"missing,omitempty"`
}

// CredentialsStatus tells which upstream keys are present.
type CredentialsStatus struct {
	Classifier  bool `json:"classifier"`
	Recommender bool `json:"recommender"`
}

// Service encapsulates health-related checks.
type Service struct {
	creds config.Credentials
	db    *sql.DB
}

// NewService constructs a health service. db may be nil for in-memory setups.
func NewService(creds config.Credentials, db *sql.DB) *Service {
	return &Service{creds: creds, db: db}
}

// Status checks credentials and, when present, pings the database.
func (s *Service) Status(ctx context.Context) Status {
	missing := s.creds.Missing()
	out := Status{
		OK: true,
		Credentials: CredentialsStatus{
			Classifier:  !contains(missing, "ROBOFLOW_API_KEY"),
			Recommender: !contains(missing, "GROQ_API_KEY"),
		},
		Database: "memory",
		Missing:  missing,
	}
	if s.db == nil {
		return out
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		out.OK = false
		out.Database = "unreachable"
		return out
	}
	out.Database = "postgres"
	return out
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
