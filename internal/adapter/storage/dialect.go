package storage

import (
	"crypto/sha256"
	"crypto/sha512"
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/config"
)

// Dialect captures what differs between the supported SQL engines. Query text
// is otherwise shared: positional ? placeholders, LIKE ... ESCAPE, LIMIT and
// SHA2(text, bits) behave the same on both.
type Dialect struct {
	driver       string
	schema       []string
	databaseName string
}

var (
	MySQL = Dialect{
		driver:       config.DriverMySQL,
		schema:       mysqlSchema,
		databaseName: `SELECT DATABASE()`,
	}
	SQLite = Dialect{
		driver:       config.DriverSQLite,
		schema:       sqliteSchema,
		databaseName: `SELECT file FROM pragma_database_list WHERE name = 'main'`,
	}
)

func (d Dialect) Driver() string { return d.driver }

func dialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverMySQL:
		return MySQL, nil
	case config.DriverSQLite:
		return SQLite, nil
	}
	return Dialect{}, fmt.Errorf("unsupported store driver %q", driver)
}

// SQLite has no SHA2; register one inside the engine so credential hashing
// stays in SQL for both dialects. Output matches MySQL: lowercase hex, NULL for
// NULL input or unsupported widths.
func init() {
	err := sqlite.RegisterDeterministicScalarFunction("sha2", 2, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		var data []byte
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			data = []byte(fmt.Sprint(v))
		}

		bits, _ := args[1].(int64)
		switch bits {
		case 0, 256:
			sum := sha256.Sum256(data)
			return hex.EncodeToString(sum[:]), nil
		case 224:
			sum := sha256.Sum224(data)
			return hex.EncodeToString(sum[:]), nil
		case 384:
			sum := sha512.Sum384(data)
			return hex.EncodeToString(sum[:]), nil
		case 512:
			sum := sha512.Sum512(data)
			return hex.EncodeToString(sum[:]), nil
		}
		return nil, nil
	})
	if err != nil {
		panic(fmt.Sprintf("register sqlite sha2: %v", err))
	}

	// The built-in lower() only folds ASCII; catalog searches lowercase both
	// sides and must agree with strings.ToLower on accented text.
	err = sqlite.RegisterDeterministicScalarFunction("lower", 1, func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case string:
			return strings.ToLower(v), nil
		case []byte:
			return strings.ToLower(string(v)), nil
		default:
			return strings.ToLower(fmt.Sprint(v)), nil
		}
	})
	if err != nil {
		panic(fmt.Sprintf("register sqlite lower: %v", err))
	}
}
