package analyzer

import (
	"regexp"
	"strings"

	"github.com/codemorph-io/sas-engine/pkg/models"
	"github.com/codemorph-io/sas-engine/pkg/sas"
)

var (
	// selectFromRe captures the FROM clause of a SELECT so that every
	// qualified source in a multi-table FROM list gets tagged. The clause
	// ends at the first keyword that cannot introduce another plain
	// source; JOIN sources are picked up separately by joinRe.
	selectFromRe = regexp.MustCompile(`(?is)\bselect\b[^;]*?\bfrom\s+(.*?)(?:\bwhere\b|\bgroup\b|\border\b|\bhaving\b|\bon\b|\bjoin\b|\binner\b|\bleft\b|\bright\b|\bfull\b|\bcross\b|\bunion\b|;|$)`)
	// The qualifier separator is one or two dots: &lib..table is the SAS
	// spelling of a macro-variable qualifier (dot terminator plus
	// separator).
	joinRe       = regexp.MustCompile(`(?i)\bjoin\s+(&?[A-Za-z_]\w*)\.{1,2}([A-Za-z_]\w*)`)
	updateRe     = regexp.MustCompile(`(?i)\bupdate\s+(&?[A-Za-z_]\w*)\.{1,2}([A-Za-z_]\w*)`)
	insertRe     = regexp.MustCompile(`(?i)\binsert\s+(?:into\s+)?(&?[A-Za-z_]\w*)\.{1,2}([A-Za-z_]\w*)`)
	deleteRe     = regexp.MustCompile(`(?i)\bdelete\s+from\s+(&?[A-Za-z_]\w*)\.{1,2}([A-Za-z_]\w*)`)
	createViewRe = regexp.MustCompile(`(?i)\bcreate\s+view\s+(&?[A-Za-z_]\w*)\.{1,2}([A-Za-z_]\w*)`)
	selectIntoRe = regexp.MustCompile(`(?i)\bselect\b[^;]*?\binto\s+(&?[A-Za-z_]\w*)\.{1,2}([A-Za-z_]\w*)`)
	qualifiedRe  = regexp.MustCompile(`(&?[A-Za-z_]\w*)\.{1,2}([A-Za-z_]\w*)`)
)

// TableUsage accumulates table operations across the SQL blocks of one
// analysis unit. References whose alias resolves to no declared handle are
// kept in an unknown bucket and flagged as anomalies instead of being
// dropped.
type TableUsage struct {
	registry *Registry
	vars     *sas.Variables

	unknown        []*models.TableReference
	unknownByName  map[string]*models.TableReference
	flaggedAliases map[string]bool
	anomalies      []models.Anomaly
}

// NewTableUsage creates an extractor over the given registry and variable
// table.
func NewTableUsage(registry *Registry, vars *sas.Variables) *TableUsage {
	return &TableUsage{
		registry:       registry,
		vars:           vars,
		unknownByName:  make(map[string]*models.TableReference),
		flaggedAliases: make(map[string]bool),
	}
}

// Extract scans one SQL block for statement-level operations on qualified
// alias.table references. offset is the block's position in the original
// source, used for anomaly reporting. Operations accumulate as a set per
// (alias, table) pair, so a table used as both a join source and an update
// target ends up with both tags.
func (u *TableUsage) Extract(sqlText string, offset int) {
	for _, m := range selectFromRe.FindAllStringSubmatch(sqlText, -1) {
		for _, q := range qualifiedRe.FindAllStringSubmatch(m[1], -1) {
			u.record(q[1], q[2], models.OpSelect, offset)
		}
	}
	u.extractOp(sqlText, joinRe, models.OpSelect, offset)
	u.extractOp(sqlText, updateRe, models.OpUpdate, offset)
	u.extractOp(sqlText, insertRe, models.OpInsert, offset)
	u.extractOp(sqlText, deleteRe, models.OpDelete, offset)
	u.extractOp(sqlText, createViewRe, models.OpCreateView, offset)
	u.extractOp(sqlText, selectIntoRe, models.OpSelectInto, offset)
}

func (u *TableUsage) extractOp(sqlText string, re *regexp.Regexp, op models.Operation, offset int) {
	for _, m := range re.FindAllStringSubmatch(sqlText, -1) {
		u.record(m[1], m[2], op, offset)
	}
}

// record attributes one operation to the handle matching the substituted
// alias, or to the unknown bucket when no handle matches.
func (u *TableUsage) record(alias, table string, op models.Operation, offset int) {
	resolved := u.vars.Substitute(alias)

	if handle, ok := u.registry.Resolve(resolved); ok {
		handle.Table(table).AddOperation(op)
		return
	}

	key := strings.ToLower(resolved + "." + table)
	ref, ok := u.unknownByName[key]
	if !ok {
		ref = &models.TableReference{TableName: resolved + "." + table}
		u.unknownByName[key] = ref
		u.unknown = append(u.unknown, ref)
	}
	ref.AddOperation(op)

	aliasKey := strings.ToLower(resolved)
	if !u.flaggedAliases[aliasKey] {
		u.flaggedAliases[aliasKey] = true
		u.anomalies = append(u.anomalies, models.Anomaly{
			Kind:    models.AnomalyUnknownAlias,
			Message: "table qualifier " + resolved + " matches no declared library",
			Offset:  offset,
		})
	}
}

// Unknown returns the unattributed references in first-seen order.
func (u *TableUsage) Unknown() []*models.TableReference {
	return u.unknown
}

// Anomalies returns the unknown-alias anomalies recorded so far.
func (u *TableUsage) Anomalies() []models.Anomaly {
	return u.anomalies
}
