package storage

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

var routineName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLAdapter implements the catalog, document and credential ports on top of
// a Provider. Every method acquires its own connection.
type SQLAdapter struct {
	provider       *Provider
	suggestRoutine string
}

// NewSQLAdapter builds an adapter. suggestRoutine names the store-side product
// suggestion routine; empty means always use the fallback query.
func NewSQLAdapter(p *Provider, suggestRoutine string) (*SQLAdapter, error) {
	if suggestRoutine != "" && !routineName.MatchString(suggestRoutine) {
		return nil, fmt.Errorf("invalid suggest routine name %q", suggestRoutine)
	}
	return &SQLAdapter{provider: p, suggestRoutine: suggestRoutine}, nil
}

// Ping returns the name of the database behind the provider.
func (a *SQLAdapter) Ping(ctx context.Context) (string, error) {
	var name sql.NullString
	err := a.provider.withConn(ctx, func(conn *sqlx.Conn) error {
		return conn.GetContext(ctx, &name, a.provider.dialect.databaseName)
	})
	if err != nil {
		return "", fmt.Errorf("ping: %w", err)
	}
	return name.String, nil
}

// escapeLike makes s match literally inside a LIKE pattern using ESCAPE '!'.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// sqlTime scans DATE/DATETIME columns whether the driver hands back a
// time.Time or its text form.
type sqlTime struct {
	time.Time
}

func (t *sqlTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = x
		return nil
	case []byte:
		return t.parse(string(x))
	case string:
		return t.parse(x)
	}
	return fmt.Errorf("cannot scan %T into time", v)
}

func (t *sqlTime) parse(s string) error {
	if i := strings.Index(s, " m="); i > 0 {
		s = s[:i]
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("cannot parse time %q", s)
}

// now is the transaction start time recorded on document headers.
func now() time.Time {
	return time.Now().UTC().Round(0)
}
