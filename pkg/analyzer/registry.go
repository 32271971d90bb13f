// Package analyzer implements the semantic layer of SAS source analysis:
// library registry, table-operation extraction, macro dependency graphs,
// complexity metrics, chunking, and the report assembler. It builds on the
// lexical layer in pkg/sas and never executes any SAS code.
package analyzer

import (
	"regexp"
	"strings"

	"github.com/codemorph-io/sas-engine/pkg/models"
	"github.com/codemorph-io/sas-engine/pkg/sas"
)

var (
	libnameRe    = regexp.MustCompile(`(?i)\blibname\s+(&?\w+)\s+(\w+)([^;]*);`)
	schemaAttrRe = regexp.MustCompile(`(?i)schema\s*=\s*["']?([^"'\s;]+)["']?`)
)

// dialectTokens maps LIBNAME engine tokens to the closed dialect set.
// Adding a dialect means adding a variant and its token here, not
// subclassing.
var dialectTokens = map[string]models.Dialect{
	"oracle":     models.DialectOracle,
	"sqlsvr":     models.DialectSQLServer,
	"sqlserver":  models.DialectSQLServer,
	"mysql":      models.DialectMySQL,
	"postgres":   models.DialectPostgreSQL,
	"postgresql": models.DialectPostgreSQL,
	"db2":        models.DialectDB2,
	"odbc":       models.DialectODBC,
	"bigquery":   models.DialectBigQuery,
	"teradata":   models.DialectTeradata,
}

// Registry holds the database handles declared by LIBNAME statements, in
// declaration order, keyed case-insensitively by alias.
type Registry struct {
	handles []*models.DatabaseHandle
	byAlias map[string]*models.DatabaseHandle
}

// ParseLibraries scans source for LIBNAME declarations and builds the
// registry. Two shapes are recognized:
//
//	libname alias engine attr=value ...;        (generic)
//	libname alias TERADATA ... schema="NAME";   (Teradata)
//
// For Teradata the schema attribute becomes the handle's logical database
// name; both the alias and the schema value go through variable
// substitution first. Redeclaring an alias silently overwrites the prior
// handle (latest wins). Attributes are retained verbatim as connection
// detail, never parsed further.
func ParseLibraries(source string, vars *sas.Variables) *Registry {
	r := &Registry{byAlias: make(map[string]*models.DatabaseHandle)}

	for _, m := range libnameRe.FindAllStringSubmatch(source, -1) {
		alias := vars.Substitute(m[1])
		engine := strings.ToLower(m[2])
		detail := strings.TrimSpace(m[3])

		handle := &models.DatabaseHandle{
			Alias:            alias,
			ConnectionDetail: detail,
		}

		if engine == "teradata" {
			handle.DatabaseType = models.DialectTeradata
			handle.DatabaseName = "UNKNOWN"
			if sm := schemaAttrRe.FindStringSubmatch(detail); sm != nil {
				handle.DatabaseName = vars.Substitute(sm[1])
			}
		} else {
			handle.DatabaseName = alias
			dialect, ok := dialectTokens[engine]
			if !ok {
				dialect = models.DialectGeneric
			}
			handle.DatabaseType = dialect
		}

		r.put(handle)
	}

	return r
}

// put registers a handle, overwriting any earlier declaration of the same
// alias in place so declaration order reflects the first occurrence.
func (r *Registry) put(handle *models.DatabaseHandle) {
	key := strings.ToLower(handle.Alias)
	if existing, ok := r.byAlias[key]; ok {
		*existing = *handle
		r.byAlias[key] = existing
		return
	}
	r.handles = append(r.handles, handle)
	r.byAlias[key] = handle
}

// Resolve returns the handle for alias, case-insensitively. The caller is
// expected to variable-substitute the alias first.
func (r *Registry) Resolve(alias string) (*models.DatabaseHandle, bool) {
	h, ok := r.byAlias[strings.ToLower(alias)]
	return h, ok
}

// Handles returns all declared handles in declaration order.
func (r *Registry) Handles() []*models.DatabaseHandle {
	return r.handles
}

// HandlesWithOperations returns handles that accumulated at least one
// table operation, preserving declaration order. Declared but unreferenced
// libraries are omitted from the report.
func (r *Registry) HandlesWithOperations() []*models.DatabaseHandle {
	var out []*models.DatabaseHandle
	for _, h := range r.handles {
		var tables []*models.TableReference
		for _, t := range h.OperationTables {
			if t.HasOperations() {
				tables = append(tables, t)
			}
		}
		if len(tables) > 0 {
			h.OperationTables = tables
			out = append(out, h)
		}
	}
	return out
}
