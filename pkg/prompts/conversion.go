// Package prompts builds the LLM prompts for the SAS-to-Python
// conversion pipeline.
package prompts

import (
	"fmt"
	"strings"
)

// SystemPrompt frames every conversion request.
const SystemPrompt = `You are an expert in both SAS and Python data engineering. You convert legacy SAS programs to equivalent, idiomatic Python using pandas and SQLAlchemy. You preserve the business logic exactly, including edge cases in filtering, joins, and aggregation. You respond with a single JSON object and nothing else.`

// ResponseFormat is appended to every prompt so all conversion responses
// parse with the same structure.
const ResponseFormat = `Respond with a JSON object:
{
  "code": "<the complete Python code>",
  "imports": ["<import statements the code needs>"],
  "requirements": ["<pip package names with optional version pins>"],
  "notes": ["<assumptions or caveats, if any>"]
}`

// DatabaseContext describes one database the source reads or writes,
// so the generated Python can set up the right connections.
type DatabaseContext struct {
	Name    string
	Dialect string
	Tables  []string
}

// MacroContext carries one macro definition into a conversion prompt.
type MacroContext struct {
	Name       string
	Parameters string
	// Dependencies lists other macros this one invokes. Converted macros
	// become Python functions, so the prompt names the functions that
	// will already exist.
	Dependencies []string
	Source       string
}

// ChunkContext carries one top-level chunk into a conversion prompt.
type ChunkContext struct {
	Index     int
	Total     int
	HasSQL    bool
	Databases []DatabaseContext
	// MacroFunctions lists Python function names produced from converted
	// macros, available for the chunk to call.
	MacroFunctions []string
	Source         string
}

// BuildMacroConversionPrompt creates the prompt for converting one SAS
// macro into a Python function.
func BuildMacroConversionPrompt(mc MacroContext) string {
	var prompt strings.Builder

	prompt.WriteString("# SAS Macro Conversion\n\n")
	prompt.WriteString(fmt.Sprintf("Convert the SAS macro `%s` into a Python function named `%s`.\n\n", mc.Name, strings.ToLower(mc.Name)))

	prompt.WriteString("Rules:\n")
	prompt.WriteString("- Macro parameters become function parameters with the same names.\n")
	prompt.WriteString("- SAS datasets become pandas DataFrames passed in or returned.\n")
	prompt.WriteString("- Keep the function self-contained apart from its imports and listed dependencies.\n")
	if len(mc.Dependencies) > 0 {
		prompt.WriteString(fmt.Sprintf("- These functions already exist and can be called directly: %s.\n", strings.Join(mc.Dependencies, ", ")))
	}
	prompt.WriteString("\n")

	if mc.Parameters != "" {
		prompt.WriteString(fmt.Sprintf("Macro parameters: %s\n\n", mc.Parameters))
	}

	prompt.WriteString("## SAS Source\n\n```sas\n")
	prompt.WriteString(mc.Source)
	prompt.WriteString("\n```\n\n")
	prompt.WriteString(ResponseFormat)

	return prompt.String()
}

// BuildChunkConversionPrompt creates the prompt for converting one
// top-level chunk. SQL-bearing chunks get database context and
// SQL-specific rules; plain chunks get data-step rules only.
func BuildChunkConversionPrompt(cc ChunkContext) string {
	var prompt strings.Builder

	prompt.WriteString("# SAS Program Conversion\n\n")
	prompt.WriteString(fmt.Sprintf("Convert part %d of %d of a SAS program to Python. Parts run in order and share module-level state.\n\n", cc.Index+1, cc.Total))

	prompt.WriteString("Rules:\n")
	prompt.WriteString("- DATA steps become pandas operations.\n")
	prompt.WriteString("- PROC SORT becomes DataFrame.sort_values, PROC MEANS/SUMMARY becomes groupby aggregation.\n")
	if cc.HasSQL {
		prompt.WriteString("- PROC SQL blocks become SQLAlchemy queries against the engines listed below; do not rewrite SQL into pandas when it reads or writes an external database.\n")
	}
	if len(cc.MacroFunctions) > 0 {
		prompt.WriteString(fmt.Sprintf("- These functions already exist and can be called directly: %s.\n", strings.Join(cc.MacroFunctions, ", ")))
	}
	prompt.WriteString("\n")

	if cc.HasSQL && len(cc.Databases) > 0 {
		prompt.WriteString("## Databases Referenced\n\n")
		for _, db := range cc.Databases {
			prompt.WriteString(fmt.Sprintf("- %s (%s)", db.Name, db.Dialect))
			if len(db.Tables) > 0 {
				prompt.WriteString(": tables " + strings.Join(db.Tables, ", "))
			}
			prompt.WriteString("\n")
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## SAS Source\n\n```sas\n")
	prompt.WriteString(cc.Source)
	prompt.WriteString("\n```\n\n")
	prompt.WriteString(ResponseFormat)

	return prompt.String()
}
