package converter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/codemorph-io/sas-engine/pkg/models"
)

var sqlMarker = regexp.MustCompile(`(?i)\bproc\s+sql\b`)

// dialectDrivers maps dialects to the pip package and SQLAlchemy URL
// scheme their connections need.
var dialectDrivers = map[models.Dialect]struct {
	pkg    string
	scheme string
}{
	models.DialectOracle:     {"oracledb", "oracle+oracledb"},
	models.DialectSQLServer:  {"pyodbc", "mssql+pyodbc"},
	models.DialectMySQL:      {"pymysql", "mysql+pymysql"},
	models.DialectPostgreSQL: {"psycopg2-binary", "postgresql+psycopg2"},
	models.DialectDB2:        {"ibm-db-sa", "db2+ibm_db"},
	models.DialectODBC:       {"pyodbc", "mssql+pyodbc"},
	models.DialectBigQuery:   {"sqlalchemy-bigquery", "bigquery"},
	models.DialectTeradata:   {"teradatasqlalchemy", "teradatasql"},
}

// assembler collects per-step conversion responses and builds the final
// script.
type assembler struct {
	report    *models.AnalysisReport
	imports   []string
	importSet map[string]bool
	reqs      []string
	reqSet    map[string]bool
	functions []string
	fnNames   []string
	chunks    []string
	notes     []string
}

func newAssembler(report *models.AnalysisReport) *assembler {
	return &assembler{
		report:    report,
		importSet: make(map[string]bool),
		reqSet:    make(map[string]bool),
	}
}

func (a *assembler) addMacro(name string, resp *conversionResponse) {
	a.merge(resp, "macro "+name)
	a.functions = append(a.functions, strings.TrimRight(resp.Code, "\n"))
	a.fnNames = append(a.fnNames, strings.ToLower(name))
}

func (a *assembler) addChunk(index int, resp *conversionResponse) {
	a.merge(resp, fmt.Sprintf("chunk %d", index))
	a.chunks = append(a.chunks, strings.TrimRight(resp.Code, "\n"))
}

func (a *assembler) merge(resp *conversionResponse, step string) {
	for _, imp := range resp.Imports {
		imp = strings.TrimSpace(imp)
		if imp != "" && !a.importSet[imp] {
			a.importSet[imp] = true
			a.imports = append(a.imports, imp)
		}
	}
	for _, req := range resp.Requirements {
		a.addRequirement(req)
	}
	for _, note := range resp.Notes {
		if strings.TrimSpace(note) != "" {
			a.notes = append(a.notes, step+": "+note)
		}
	}
}

func (a *assembler) addRequirement(req string) {
	req = strings.TrimSpace(req)
	// Dedup by package name so "pandas" and "pandas>=2.0" do not both
	// survive; the first pinned spelling wins.
	fields := strings.FieldsFunc(req, func(r rune) bool {
		return r == '=' || r == '>' || r == '<' || r == '~' || r == '!' || r == '['
	})
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	if a.reqSet[name] {
		return
	}
	a.reqSet[name] = true
	a.reqs = append(a.reqs, req)
}

func (a *assembler) functionNames() []string {
	return append([]string(nil), a.fnNames...)
}

func (a *assembler) build() *Result {
	a.addRequirement("pandas")
	if len(a.report.Databases) > 0 {
		a.addRequirement("sqlalchemy")
		for _, db := range a.report.Databases {
			if drv, ok := dialectDrivers[db.DatabaseType]; ok {
				a.addRequirement(drv.pkg)
			}
		}
	}

	var b strings.Builder
	b.WriteString("# Generated from SAS source. Review before running in production.\n\n")

	sort.Strings(a.imports)
	for _, imp := range a.imports {
		b.WriteString(imp + "\n")
	}
	if len(a.report.Databases) > 0 {
		if !a.importSet["from sqlalchemy import create_engine"] {
			b.WriteString("from sqlalchemy import create_engine\n")
		}
		b.WriteString("\n")
		b.WriteString(a.connectionSection())
	}
	b.WriteString("\n")

	if ext := a.externalDependencyNotes(); ext != "" {
		b.WriteString(ext)
		b.WriteString("\n")
	}

	for _, fn := range a.functions {
		b.WriteString(fn)
		b.WriteString("\n\n\n")
	}
	for i, chunk := range a.chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(chunk)
		b.WriteString("\n")
	}

	return &Result{
		Script:       b.String(),
		Requirements: a.reqs,
		Notes:        a.notes,
	}
}

// connectionSection emits one SQLAlchemy engine per analyzed database.
// Credentials come from the environment, never from the analyzed source.
func (a *assembler) connectionSection() string {
	var b strings.Builder
	b.WriteString("# Database connections. Set *_URL environment variables before running.\n")
	b.WriteString("import os\n")
	for _, db := range a.report.Databases {
		varName := strings.ToLower(db.DatabaseName) + "_engine"
		envName := strings.ToUpper(db.DatabaseName) + "_URL"
		drv, ok := dialectDrivers[db.DatabaseType]
		scheme := "generic"
		if ok {
			scheme = drv.scheme
		}
		b.WriteString(fmt.Sprintf("%s = create_engine(os.environ[%q])  # %s\n", varName, envName, scheme))
	}
	return b.String()
}

// externalDependencyNotes flags macros invoked but not defined in the
// analyzed source; their conversions must come from elsewhere.
func (a *assembler) externalDependencyNotes() string {
	if a.report.Dependencies == nil || len(a.report.Dependencies.External) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("# TODO: the following macros are invoked but defined outside this\n")
	b.WriteString("# program; provide Python implementations before running:\n")
	for _, name := range a.report.Dependencies.External {
		b.WriteString(fmt.Sprintf("#   - %s\n", strings.ToLower(name)))
	}
	return b.String()
}
