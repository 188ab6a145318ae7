package devserver

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var defaultFixtures []byte

// Fixtures is the demo data loaded into the store.
//
//	users:
//	  - {id: 1, username: admin, email: admin@example.com, password: admin123, role: admin}
//	tables:
//	  jobs:
//	    - {id: 1, user_id: 1, status: completed}
//	generate:
//	  audit_logs: 120
type Fixtures struct {
	Users  []FixtureUser               `yaml:"users"`
	Tables map[string][]map[string]any `yaml:"tables"`
	// Generate appends that many synthetic rows to each named table.
	Generate map[string]int `yaml:"generate"`
}

// FixtureUser is a login-capable account. Password is plain text in the
// fixture file and hashed when loaded.
type FixtureUser struct {
	ID        int64  `yaml:"id"`
	Username  string `yaml:"username"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	CreatedAt string `yaml:"created_at"`
}

// DefaultFixtures returns the embedded demo data set.
func DefaultFixtures() (*Fixtures, error) {
	return ParseFixtures(defaultFixtures)
}

// LoadFixturesFile reads fixtures from path, or the embedded set when path
// is empty.
func LoadFixturesFile(path string) (*Fixtures, error) {
	if path == "" {
		return DefaultFixtures()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}
	fx, err := ParseFixtures(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fx, nil
}

// ParseFixtures decodes and validates a fixture document.
func ParseFixtures(data []byte) (*Fixtures, error) {
	var fx Fixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("invalid fixtures: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixtures) validate() error {
	emails := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		if u.ID <= 0 || u.Email == "" || u.Password == "" {
			return fmt.Errorf("user %d: id, email and password are required", i+1)
		}
		if emails[u.Email] {
			return fmt.Errorf("user %d: duplicate email %q", i+1, u.Email)
		}
		emails[u.Email] = true
	}
	if _, ok := fx.Tables["users"]; ok {
		return fmt.Errorf("users must be listed under the top-level users key")
	}
	for name, rows := range fx.Tables {
		t, ok := LookupTable(name)
		if !ok {
			return fmt.Errorf("unknown table %q", name)
		}
		for i, row := range rows {
			if _, ok := row["id"]; !ok {
				return fmt.Errorf("%s row %d: missing id", name, i+1)
			}
			for c := range row {
				if !t.HasColumn(c) {
					return fmt.Errorf("%s row %d: unknown column %q", name, i+1, c)
				}
			}
		}
	}
	for name, n := range fx.Generate {
		if _, ok := LookupTable(name); !ok || name == "users" {
			return fmt.Errorf("cannot generate rows for table %q", name)
		}
		if n < 0 {
			return fmt.Errorf("generate %s: count must not be negative", name)
		}
	}
	return nil
}

// userIDs returns the fixture user ids in file order.
func (fx *Fixtures) userIDs() []int64 {
	ids := make([]int64, len(fx.Users))
	for i, u := range fx.Users {
		ids[i] = u.ID
	}
	return ids
}

// Rows returns the explicit rows of table followed by its generated rows.
// Generated ids continue after the largest explicit id.
func (fx *Fixtures) Rows(table string) []map[string]any {
	rows := slices.Clone(fx.Tables[table])
	n := fx.Generate[table]
	if n == 0 {
		return rows
	}
	var next int64
	for _, r := range rows {
		next = max(next, cast.ToInt64(r["id"]))
	}
	t, _ := LookupTable(table)
	return append(rows, generateRows(t, n, next+1, fx.userIDs())...)
}

var generatedBase = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

var cycles = map[string][]string{
	"status":     {"pending", "running", "completed", "failed"},
	"action":     {"login", "update", "delete", "export", "logout"},
	"job_type":   {"export", "import", "report", "cleanup"},
	"email_type": {"welcome", "password_reset", "digest"},
	"resource":   {"users", "files", "jobs", "settings"},
}

// generateRows builds n synthetic rows for t. A few string cells are left
// NULL or empty so both render states show up while browsing.
func generateRows(t Table, n int, firstID int64, userIDs []int64) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := range n {
		row := make(map[string]any, len(t.Columns))
		for _, c := range t.Columns {
			switch {
			case c.Name == "id":
				row["id"] = firstID + int64(i)
			case c.Name == "user_id":
				if len(userIDs) > 0 {
					row["user_id"] = userIDs[i%len(userIDs)]
				} else {
					row["user_id"] = nil
				}
			case c.Type == "integer":
				row[c.Name] = int64((i + 1) * 1024)
			case c.Type == "timestamp":
				row[c.Name] = generatedBase.Add(time.Duration(i) * 37 * time.Minute).Format(time.RFC3339)
			case cycles[c.Name] != nil:
				vals := cycles[c.Name]
				row[c.Name] = vals[i%len(vals)]
			case i%11 == 5:
				row[c.Name] = nil
			case i%13 == 6:
				row[c.Name] = ""
			default:
				row[c.Name] = c.Name + "-" + uuid.NewString()[:8]
			}
		}
		rows = append(rows, row)
	}
	return rows
}
