package models

import "strings"

// Dialect identifies a database backend kind recognized in LIBNAME
// statements. Unrecognized engine tokens fall back to DialectGeneric; the
// raw statement text stays available in DatabaseHandle.ConnectionDetail.
type Dialect string

const (
	DialectGeneric    Dialect = "generic"
	DialectOracle     Dialect = "oracle"
	DialectSQLServer  Dialect = "sqlserver"
	DialectMySQL      Dialect = "mysql"
	DialectPostgreSQL Dialect = "postgresql"
	DialectDB2        Dialect = "db2"
	DialectODBC       Dialect = "odbc"
	DialectBigQuery   Dialect = "bigquery"
	DialectTeradata   Dialect = "teradata"
)

// Operation is a table operation observed in a SQL block.
type Operation string

const (
	OpSelect     Operation = "SELECT"
	OpInsert     Operation = "INSERT"
	OpUpdate     Operation = "UPDATE"
	OpDelete     Operation = "DELETE"
	OpCreateView Operation = "CREATE VIEW"
	OpSelectInto Operation = "SELECT INTO"
)

// TableReference records the set of operations observed against one table.
// Operations behave as an ordered set: duplicates are never appended, and
// first-seen order is preserved.
type TableReference struct {
	TableName  string      `json:"tableName"`
	Operations []Operation `json:"operations"`
}

// AddOperation appends op if it has not been observed yet.
func (t *TableReference) AddOperation(op Operation) {
	for _, existing := range t.Operations {
		if existing == op {
			return
		}
	}
	t.Operations = append(t.Operations, op)
}

// HasOperations reports whether any operation was observed.
func (t *TableReference) HasOperations() bool {
	return len(t.Operations) > 0
}

// DatabaseHandle is a database binding declared by a LIBNAME statement.
// Alias is the qualifier prefix used on table references in source;
// DatabaseName is the logical database identity (equal to Alias except for
// Teradata declarations, where it comes from the schema= attribute).
type DatabaseHandle struct {
	Alias            string            `json:"-"`
	DatabaseName     string            `json:"databaseName"`
	DatabaseType     Dialect           `json:"databaseType"`
	ConnectionDetail string            `json:"connectionDetail"`
	OperationTables  []*TableReference `json:"operationTables"`
}

// Table returns the TableReference for name, creating it on first use.
// Lookup is case-insensitive on the stored name.
func (d *DatabaseHandle) Table(name string) *TableReference {
	for _, t := range d.OperationTables {
		if strings.EqualFold(t.TableName, name) {
			return t
		}
	}
	t := &TableReference{TableName: name}
	d.OperationTables = append(d.OperationTables, t)
	return t
}

// MacroDefinition describes one %macro ... %mend block.
type MacroDefinition struct {
	Name       string `json:"name"`
	Parameters string `json:"parameters,omitempty"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	// Body is the full definition text including markers. It is working
	// state for per-block analyses, not part of the serialized report.
	Body string `json:"-"`
	// Invokes lists macro names called from the body, in occurrence order
	// with repeats (the raw call multigraph keeps multiplicity).
	Invokes []string `json:"invokes,omitempty"`
	// Invoked is true when some other macro or the top-level body calls
	// this macro within the same analysis unit.
	Invoked bool `json:"invoked"`
}

// DependencyEdge is one caller→callee edge in the macro call graph.
// Caller is empty for invocations made from the top-level body.
type DependencyEdge struct {
	Caller   string `json:"caller,omitempty"`
	Callee   string `json:"callee"`
	External bool   `json:"external"`
}

// DependencyGraph holds the raw macro call multigraph plus summary tags.
type DependencyGraph struct {
	// Edges keeps every observed invocation, repeats included.
	Edges []DependencyEdge `json:"edges"`
	// External lists invoked macro names with no definition in this unit.
	External []string `json:"external,omitempty"`
	// InternalUnused lists defined macros never invoked in this unit.
	InternalUnused []string `json:"internalUnused,omitempty"`
}

// ComplexityMetrics holds structural metrics for one analyzed block.
// CyclomaticComplexity is a keyword-count approximation (decision points
// + 1), not a control-flow-graph analysis.
type ComplexityMetrics struct {
	TotalLines           int `json:"totalLines"`
	CodeLines            int `json:"codeLines"`
	CommentLines         int `json:"commentLines"`
	MacroCount           int `json:"macroCount"`
	ProcCount            int `json:"procCount"`
	DataStepCount        int `json:"dataStepCount"`
	IfCount              int `json:"ifCount"`
	DoLoopCount          int `json:"doLoopCount"`
	CyclomaticComplexity int `json:"cyclomaticComplexity"`
}

// AnomalyKind classifies a recoverable structural irregularity.
type AnomalyKind string

const (
	AnomalyUnterminatedMacro AnomalyKind = "unterminated_macro"
	AnomalyUnmatchedMend     AnomalyKind = "unmatched_mend"
	AnomalyUnterminatedSQL   AnomalyKind = "unterminated_sql_block"
	AnomalyUnknownAlias      AnomalyKind = "unknown_alias"
)

// Anomaly is a non-fatal structural fault recorded during analysis.
type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	Message string      `json:"message"`
	Offset  int         `json:"offset"`
}

// Chunk is one token-budget-bounded unit of the top-level body.
type Chunk struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	TokenCount int    `json:"tokenCount"`
	// Oversized marks a single statement that exceeded the budget on its
	// own and was emitted whole rather than truncated.
	Oversized bool `json:"oversized,omitempty"`
}

// ChunkResult is the chunker output: macros kept whole, body split into
// budgeted units.
type ChunkResult struct {
	Macros []*MacroChunk `json:"macros,omitempty"`
	Units  []Chunk       `json:"units,omitempty"`
}

// MacroChunk is a whole macro definition emitted as a single unit.
type MacroChunk struct {
	Name       string `json:"name"`
	Text       string `json:"text"`
	TokenCount int    `json:"tokenCount"`
}

// AnalysisReport is the sole externally visible analysis artifact.
// In databases-only mode all fields except Databases are nil.
type AnalysisReport struct {
	Databases []*DatabaseHandle `json:"databases"`
	// UnknownTables holds references whose resolved alias matched no
	// declared DatabaseHandle. They are reported rather than dropped so
	// the report reflects analysis confidence.
	UnknownTables []*TableReference             `json:"unknownTables,omitempty"`
	Macros        []*MacroDefinition            `json:"macros,omitempty"`
	Dependencies  *DependencyGraph              `json:"dependencies,omitempty"`
	Complexity    map[string]*ComplexityMetrics `json:"complexity,omitempty"`
	Chunks        *ChunkResult                  `json:"chunks,omitempty"`
	Anomalies     []Anomaly                     `json:"anomalies,omitempty"`
}
