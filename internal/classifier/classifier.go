// Package classifier turns failures into the sentence shown to the end user.
// It never changes control flow; callers decide what to do with the Result.
package classifier

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io/fs"
	"net"
	"regexp"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/samuelvillalba090-commits/farmacia-3hermanas/internal/core/domain"
)

// MySQL server error numbers
const (
	MySQLErrDBAccessDenied      = 1044
	MySQLErrAccessDenied        = 1045
	MySQLErrBadNull             = 1048
	MySQLErrBadField            = 1054
	MySQLErrDupEntry            = 1062
	MySQLErrNoSuchTable         = 1146
	MySQLErrLockWaitTimeout     = 1205
	MySQLErrLockDeadlock        = 1213
	MySQLErrRowIsReferenced     = 1451
	MySQLErrNoReferencedRow     = 1452
	MySQLErrWarnDataOutOfRange  = 1264
	MySQLErrTruncatedWrongValue = 1292
	MySQLErrNoDefaultForField   = 1364
	MySQLErrTruncatedValue      = 1366
	MySQLErrDataTooLong         = 1406
	MySQLErrCheckViolated       = 3819
)

const (
	MsgUnspecified = "Ocurrió un error no especificado."
	MsgNetwork     = "No se pudo conectar al servidor de base de datos. Verifique que el servicio esté en ejecución y la red disponible."

	storeFallbackPrefix = "Error de base de datos: "
	storeFallbackEmpty  = "consulte al administrador."
)

// Result is the presentational outcome of Classify.
type Result struct {
	Category  domain.Kind
	Message   string
	Retryable bool
}

type rule struct {
	category  domain.Kind
	pattern   *regexp.Regexp
	mysql     []uint16
	sqlite    []int
	message   string
	retryable bool
}

// rules is evaluated top to bottom and the first match wins. Earlier entries
// take priority where texts overlap.
var rules = []rule{
	{
		category: domain.KindConnectivity,
		pattern:  regexp.MustCompile(`sql: unknown driver|driver.*not found|data source name not found`),
		message:  "No se encontró el controlador de base de datos solicitado. Verifique la instalación.",
	},
	{
		category: domain.KindConnectivity,
		pattern:  regexp.MustCompile(`x509|certificate|tls:`),
		message:  "Conexión cifrada falló: certificado no confiable. Revise la configuración TLS del servidor.",
	},
	{
		category: domain.KindConnectivity,
		pattern:  regexp.MustCompile(`access denied for user|login failed for user|28000`),
		mysql:    []uint16{MySQLErrDBAccessDenied, MySQLErrAccessDenied},
		message:  "Error de inicio de sesión: usuario o contraseña incorrectos, o sin permisos.",
	},
	{
		category:  domain.KindConnectivity,
		pattern:   regexp.MustCompile(`timeout|timed out|deadline exceeded|hyt00|database is locked`),
		mysql:     []uint16{MySQLErrLockWaitTimeout},
		sqlite:    []int{sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED},
		message:   "Tiempo de espera agotado al comunicarse con la base de datos.",
		retryable: true,
	},
	{
		category:  domain.KindConnectivity,
		pattern:   regexp.MustCompile(`connection refused|connection reset|no such host|broken pipe|invalid connection|bad connection|communication link failure|08001|08s01|network|unable to open database file`),
		sqlite:    []int{sqlite3.SQLITE_CANTOPEN},
		message:   MsgNetwork,
		retryable: true,
	},
	{
		category: domain.KindIntegrity,
		pattern:  regexp.MustCompile(`duplicate entry|unique constraint|violation of unique key|duplicat.*key`),
		mysql:    []uint16{MySQLErrDupEntry},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY},
		message:  "Dato duplicado: ya existe un registro con ese valor único.",
	},
	{
		category: domain.KindIntegrity,
		pattern:  regexp.MustCompile(`cannot be null|not null constraint|cannot insert (the value )?null|doesn't have a default value`),
		mysql:    []uint16{MySQLErrBadNull, MySQLErrNoDefaultForField},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_NOTNULL},
		message:  "Dato obligatorio faltante. Complete todos los campos requeridos.",
	},
	{
		category: domain.KindIntegrity,
		pattern:  regexp.MustCompile(`foreign key constraint`),
		mysql:    []uint16{MySQLErrRowIsReferenced, MySQLErrNoReferencedRow},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY},
		message:  "No se puede guardar/eliminar porque está relacionado con otros datos (clave foránea).",
	},
	{
		category: domain.KindIntegrity,
		pattern:  regexp.MustCompile(`check constraint`),
		mysql:    []uint16{MySQLErrCheckViolated},
		sqlite:   []int{sqlite3.SQLITE_CONSTRAINT_CHECK},
		message:  "Uno de los valores no cumple las reglas del sistema (restricción CHECK).",
	},
	{
		category: domain.KindIntegrity,
		pattern:  regexp.MustCompile(`data too long|would be truncated`),
		mysql:    []uint16{MySQLErrDataTooLong},
		message:  "El texto es demasiado largo para el campo. Reduzca el contenido.",
	},
	{
		category: domain.KindIntegrity,
		pattern:  regexp.MustCompile(`incorrect \w+ value|out of range value|conversion failed|failed to convert|datatype mismatch`),
		mysql:    []uint16{MySQLErrTruncatedValue, MySQLErrTruncatedWrongValue, MySQLErrWarnDataOutOfRange},
		sqlite:   []int{sqlite3.SQLITE_MISMATCH},
		message:  "Formato de dato inválido. Revise números y fechas.",
	},
	{
		category:  domain.KindIntegrity,
		pattern:   regexp.MustCompile(`deadlock`),
		mysql:     []uint16{MySQLErrLockDeadlock},
		message:   "Conflicto de concurrencia (deadlock). Intente nuevamente.",
		retryable: true,
	},
	{
		category: domain.KindUnclassified,
		pattern:  regexp.MustCompile(`unknown column|no such column|invalid column name`),
		mysql:    []uint16{MySQLErrBadField},
		message:  "Nombre de columna inválido en la consulta.",
	},
	{
		category: domain.KindUnclassified,
		pattern:  regexp.MustCompile(`table .* doesn't exist|no such table|invalid object name`),
		mysql:    []uint16{MySQLErrNoSuchTable},
		message:  "Tabla o vista no existe.",
	},
}

// Message is the sentence to show for err.
func Message(err error) string {
	return Classify(err).Message
}

// Classify resolves err in this order: store diagnostics against the rules
// table, a generic store message, domain errors verbatim, then well-known
// runtime failure shapes. The returned message is never empty.
func Classify(err error) Result {
	if err == nil {
		return Result{Message: MsgUnspecified}
	}

	if d, ok := storeDiagnostics(err); ok {
		if r, ok := d.match(); ok {
			return Result{Category: r.category, Message: r.message, Retryable: r.retryable}
		}
		return d.fallback()
	}

	if domain.IsCallerCorrectable(err) {
		return Result{Category: domain.KindOf(err), Message: domainMessage(err)}
	}

	return classifyGeneric(err)
}

type diagnostics struct {
	text         string
	state        string
	mysqlCode    uint16
	sqliteCode   int
	connectivity bool
}

func storeDiagnostics(err error) (diagnostics, bool) {
	var (
		me *mysql.MySQLError
		se *sqlite.Error
		ce *domain.ConnectivityError
		oe *net.OpError
		de *net.DNSError
		d  = diagnostics{text: err.Error()}
	)
	switch {
	case errors.As(err, &me):
		d.mysqlCode = me.Number
		d.text = me.Message
		if me.SQLState != [5]byte{} {
			d.state = string(me.SQLState[:])
		}
		return d, true
	case errors.As(err, &se):
		d.sqliteCode = se.Code()
		return d, true
	case errors.As(err, &ce):
		d.connectivity = true
		return d, true
	case errors.As(err, &oe),
		errors.As(err, &de),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, sql.ErrConnDone):
		d.connectivity = true
		return d, true
	case strings.Contains(d.text, "sql: unknown driver"):
		return d, true
	}
	return d, false
}

// match prefers a driver error code over text. Codes are unambiguous; text
// can carry user data that happens to look like another category.
func (d diagnostics) match() (rule, bool) {
	if d.mysqlCode != 0 || d.sqliteCode != 0 {
		for _, r := range rules {
			if d.mysqlCode != 0 && slices.Contains(r.mysql, d.mysqlCode) {
				return r, true
			}
			if d.sqliteCode != 0 && (slices.Contains(r.sqlite, d.sqliteCode) || slices.Contains(r.sqlite, d.sqliteCode&0xff)) {
				return r, true
			}
		}
	}

	lower := strings.ToLower(strings.TrimSpace(d.text + " " + d.state))
	for _, r := range rules {
		if r.pattern.MatchString(lower) {
			return r, true
		}
	}
	return rule{}, false
}

func (d diagnostics) fallback() Result {
	if d.connectivity {
		return Result{Category: domain.KindConnectivity, Message: MsgNetwork, Retryable: true}
	}
	text := d.text
	if i := strings.LastIndex(text, "]"); i >= 0 {
		text = text[i+1:]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		text = storeFallbackEmpty
	}
	return Result{Category: domain.KindUnclassified, Message: storeFallbackPrefix + text}
}

// domainMessage returns the innermost domain message so wrapping context added
// on the way up is not shown.
func domainMessage(err error) string {
	var (
		ve *domain.ValidationError
		ne *domain.NotFoundError
		ue *domain.UnknownCodeError
		se *domain.InsufficientStockError
	)
	switch {
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &ne):
		return ne.Error()
	case errors.As(err, &ue):
		return ue.Error()
	case errors.As(err, &se):
		return se.Error()
	case errors.Is(err, domain.ErrDuplicateRequest):
		return domain.ErrDuplicateRequest.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return domain.ErrInvalidCredentials.Error()
	}
	return err.Error()
}

func classifyGeneric(err error) Result {
	var (
		numErr  *strconv.NumError
		typeErr *runtime.TypeAssertionError
	)
	lower := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, fs.ErrNotExist) || strings.Contains(lower, "no such file") || strings.Contains(lower, "file not found"):
		return Result{Message: "Archivo no encontrado. Verifique la ruta."}
	case errors.Is(err, fs.ErrPermission) || strings.Contains(lower, "permission denied"):
		return Result{Message: "Permiso denegado. Ejecute con privilegios o cambie la ruta."}
	case strings.Contains(lower, "divide by zero") || strings.Contains(lower, "division by zero") || strings.Contains(lower, "division by 0"):
		return Result{Message: "No se puede dividir por cero."}
	case strings.Contains(lower, "key not found") || strings.Contains(lower, "missing key"):
		return Result{Message: "Clave inexistente en la estructura de datos."}
	case strings.Contains(lower, "index out of range"):
		return Result{Message: "Índice fuera de rango."}
	case errors.As(err, &numErr):
		return Result{Category: domain.KindValidation, Message: "Formato de dato inválido. Revise números y fechas."}
	case errors.As(err, &typeErr) || strings.Contains(lower, "interface conversion") || strings.Contains(lower, "type mismatch"):
		return Result{Message: "Tipo de dato inválido en la operación solicitada."}
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return Result{Message: msg}
	}
	return Result{Message: MsgUnspecified}
}
