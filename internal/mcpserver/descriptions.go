package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// and how to read what comes back.

func describeAnalyze() string {
	return `Runs the CLE conflict analyzer over C/C++ sources and returns the resulting enclave topology or the conflicts that prevent one.

USE WHEN:
- Checking whether the current CLE annotations partition cleanly into enclaves
- After editing #pragma cle blocks or label definitions
- Before highlighting, so the topology reflects the latest sources

INTERPRETING RESULTS:
- result Success: every function and global was assigned a level; the topology is stored for highlight and lens
- result Conflict: the annotations are inconsistent; each conflict lists its source sites and remedies
- Conflicts keep the previous topology in place
- An error means the prebuild step, the analyzer process or its message failed; nothing was changed

RETURNS:
- result, number of files analyzed
- topology: levels, functions and global_scoped_vars with name, level and line
- conflicts: file, range, code (conflict name), message, data (remedies)`
}

func describeHighlight() string {
	return `Projects the last topology onto one source file, coloring each function definition by its enclave level.

USE WHEN:
- Reviewing which enclave a function in a file ended up in
- Explaining the partition to a user looking at a specific file

INTERPRETING RESULTS:
- The first command is always clear, which removes earlier highlights
- Each highlight carries the function name, its level and a color; colors are stable per level order
- Functions the topology does not mention are left uncolored
- The file must sit directly inside a configured source directory

RETURNS:
- highlights: kind, range, color, level, name`
}

func describeLens() string {
	return `Lists the enclave level of every function definition in a file, positioned at the start of the definition.

USE WHEN:
- Annotating a file listing with levels
- Quickly checking levels without colors

INTERPRETING RESULTS:
- One lens per function assigned by the topology
- Unassigned functions produce no lens

RETURNS:
- lenses: range, title (the level)`
}

func describeDefinition() string {
	return `Finds the #pragma cle def that defines the label referenced on a given line.

USE WHEN:
- Inspecting the JSON definition of a label used in a begin or end pragma
- Following a label from a use site to its definition

INTERPRETING RESULTS:
- found false means the line carries no label or the label has no definition
- When a label is defined more than once, the first in source walk order wins
- Line numbers are zero-based

RETURNS:
- label, found, locations: path, range, text of the definition`
}

func describeReferences() string {
	return `Lists every use of a CLE label across the source directories.

USE WHEN:
- Estimating the impact of changing a label definition
- Auditing where a level annotation is applied

INTERPRETING RESULTS:
- Accepts a label directly or a path and line to resolve it from
- Begin, end and bare label pragmas all count as uses; the definition itself is not listed
- An empty list means the label is defined but unused

RETURNS:
- label, found, locations: path, range, text`
}

func describeRename() string {
	return `Computes the edits that rename a CLE label at its definition and at every use.

USE WHEN:
- Renaming a label consistently across files
- Previewing the scope of a rename before applying it

INTERPRETING RESULTS:
- The edits are not applied; apply them with your own file tools
- The new name must be a C identifier
- Each edit replaces only the label token

RETURNS:
- label, edits: path, range, new_text`
}

func describeHover() string {
	return `Shows the full definition of the label referenced on a given line, as a fenced C block.

USE WHEN:
- Reading the level and cdf rules of a label without opening its file

INTERPRETING RESULTS:
- found false means the line carries no resolvable label

RETURNS:
- found, definition`
}

func describeLabels() string {
	return `Lists every #pragma cle def in the source set.

USE WHEN:
- Finding out which labels exist before annotating code
- Spotting labels defined more than once

INTERPRETING RESULTS:
- Definitions are listed in walk order, then file order
- A label defined twice appears twice; lookups use the first

RETURNS:
- found, locations: path, range, label, text (the full definition)`
}

func describeWrap() string {
	return `Wraps a selection that starts on a function definition in a #pragma cle begin/end pair.

USE WHEN:
- Assigning a function to an enclave by labeling it
- Preparing the edit a user would get from the editor's Wrap in CLE Label action

INTERPRETING RESULTS:
- offered false means the selection is empty or does not start on the first line of a function definition
- The edit replaces the selection; the file is not modified
- The snippet is the editor template with $TM_SELECTED_TEXT and a ${1:LABEL} placeholder

RETURNS:
- offered, action: title, kind, path, function, range, snippet, edit (range, newText)`
}

func describeOpenDocument() string {
	return `Provides the unsaved text of a source file. Label lookups, wrap and highlight read it instead of the file on disk.

USE WHEN:
- The user is editing a file and has not saved it
- Checking how a planned edit changes label resolution

INTERPRETING RESULTS:
- Later calls replace the content; close_document reverts to disk
- The analyzer reads files itself and never sees open documents

RETURNS:
- path, open, bytes`
}

func describeCloseDocument() string {
	return `Drops the text given to open_document so the file is read from disk again.

USE WHEN:
- The user saved or discarded their edits

INTERPRETING RESULTS:
- Closing a document that was never opened is not an error

RETURNS:
- path, open`
}

func describeSourceSet() string {
	return `Lists the C/C++ files that analysis and label lookups operate on.

USE WHEN:
- Checking which files the analyzer will receive
- Diagnosing why a label or function is not found

INTERPRETING RESULTS:
- Files are listed in walk order; excluded directories and gitignored files are absent

RETURNS:
- source_dirs, files`
}
