package ddl

import (
	"strconv"

	"github.com/kartikbazzad/sharddb/internal/catalog"
	"github.com/kartikbazzad/sharddb/internal/errors"
)

// ParseCreateProcedureClauses parses and validates the clause substring that
// follows a CREATE PROCEDURE declaration.
//
// Roles from ALLOW clauses are merged into the caller-supplied accumulator.
// The returned PartitionClause is nil when there was no partition-type
// clause: the procedure is multi-partition by default. At most one
// partition-type clause (PARTITION or DIRECTED) is permitted; ALLOW may
// repeat freely.
func ParseCreateProcedureClauses(clauses string, roles *RoleList) (*PartitionClause, error) {
	if clauses == "" {
		return nil, nil
	}

	nodes, err := scanClauses(clauses)
	if err != nil {
		return nil, err
	}

	var part *PartitionClause
	for _, node := range nodes {
		switch c := node.(type) {
		case AllowClause:
			for _, role := range c.Roles {
				roles.Add(role)
			}

		case *PartitionClause:
			// Can't mix and match types; and no repetition of clauses
			if part != nil {
				if part.Directed == c.Directed {
					return nil, errors.Compilef("", "Only one %s clause is allowed for CREATE PROCEDURE.", node.clauseKind())
				}
				return nil, errors.Compilef("", "Cannot combine %s and %s clauses for CREATE PROCEDURE.",
					part.clauseKind(), node.clauseKind())
			}
			part = c
		}
	}

	return part, nil
}

// scanClauses tokenizes the clause substring into tagged clause nodes,
// consuming it in full. Anything that is not an ALLOW, PARTITION, or
// DIRECTED clause is a compile error.
func scanClauses(clauses string) ([]Clause, error) {
	var nodes []Clause

	lx := newLexer(clauses)
	for {
		tok := lx.next()
		if tok.kind == tokenEOF {
			return nodes, nil
		}

		switch {
		case isKeyword(tok, "ALLOW"):
			ac, err := parseAllow(lx)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, ac)

		case isKeyword(tok, "DIRECTED"):
			nodes = append(nodes, &PartitionClause{Directed: true})

		case isKeyword(tok, "PARTITION"):
			pc, err := parsePartition(lx)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, pc)

		default:
			return nil, errors.Compilef("", "unexpected token %q in CREATE PROCEDURE clause", tok.text)
		}
	}
}

// parseAllow consumes a comma-separated role list after the ALLOW keyword.
func parseAllow(lx *lexer) (AllowClause, error) {
	tok := lx.next()
	if tok.kind != tokenIdent {
		return AllowClause{}, errors.Compilef("", "ALLOW clause requires at least one role name")
	}
	ac := AllowClause{Roles: []string{tok.text}}

	for lx.peek().kind == tokenComma {
		lx.next() // comma
		tok = lx.next()
		if tok.kind != tokenIdent && tok.kind != tokenNumber {
			return AllowClause{}, errors.Compilef("", "ALLOW clause has a trailing comma with no role name")
		}
		ac.Roles = append(ac.Roles, tok.text)
	}
	return ac, nil
}

// parsePartition consumes ON TABLE t COLUMN c [PARAMETER n]
// [AND ON TABLE t2 COLUMN c2 [PARAMETER m]] after the PARTITION keyword.
func parsePartition(lx *lexer) (*PartitionClause, error) {
	pc := &PartitionClause{}

	table, column, err := parseKeyTriple(lx)
	if err != nil {
		return nil, err
	}
	pc.Table, pc.Column = table, column

	if idx, ok, err := parseOptionalParameter(lx); err != nil {
		return nil, err
	} else if ok {
		pc.ParamIndex = idx
	}

	if !isKeyword(lx.peek(), "AND") {
		return pc, nil
	}
	lx.next() // AND

	table2, column2, err := parseKeyTriple(lx)
	if err != nil {
		return nil, err
	}
	pc.Table2, pc.Column2 = table2, column2
	pc.HasSecondKey = true

	if idx, ok, err := parseOptionalParameter(lx); err != nil {
		return nil, err
	} else if ok {
		pc.ParamIndex2 = idx
		pc.ParamIndex2Set = true
	}

	return pc, nil
}

// parseKeyTriple consumes ON TABLE <ident> COLUMN <ident>.
func parseKeyTriple(lx *lexer) (string, string, error) {
	if tok := lx.next(); !isKeyword(tok, "ON") {
		return "", "", errors.Compilef("", "PARTITION clause expects ON, found %q", tok.text)
	}
	if tok := lx.next(); !isKeyword(tok, "TABLE") {
		return "", "", errors.Compilef("", "PARTITION clause expects TABLE, found %q", tok.text)
	}
	table := lx.next()
	if table.kind != tokenIdent {
		return "", "", errors.Compilef("", "PARTITION clause is missing a table name")
	}
	if tok := lx.next(); !isKeyword(tok, "COLUMN") {
		return "", "", errors.Compilef("", "PARTITION clause expects COLUMN, found %q", tok.text)
	}
	column := lx.next()
	if column.kind != tokenIdent {
		return "", "", errors.Compilef("", "PARTITION clause is missing a column name")
	}
	return table.text, column.text, nil
}

// parseOptionalParameter consumes PARAMETER <n> when present.
func parseOptionalParameter(lx *lexer) (int, bool, error) {
	if !isKeyword(lx.peek(), "PARAMETER") {
		return 0, false, nil
	}
	lx.next() // PARAMETER
	tok := lx.next()
	if tok.kind != tokenNumber {
		return 0, false, errors.Compilef("", "PARAMETER expects a non-negative integer, found %q", tok.text)
	}
	idx, err := strconv.Atoi(tok.text)
	if err != nil {
		return 0, false, errors.Compilef("", "PARAMETER index %q is out of range", tok.text)
	}
	return idx, true, nil
}

// AddProcedurePartitionInfo is the second validation pass: it checks
// identifier syntax, requires an explicit second parameter index whenever a
// second key is present, and registers the finished spec into the directory.
//
// A nil clause means the procedure is multi-partition; nothing is
// registered and no spec is returned. On any error nothing is registered.
func AddProcedurePartitionInfo(procName string, pc *PartitionClause, dir *catalog.Directory) (*catalog.PartitionSpec, error) {
	if err := catalog.ValidateProcedureName(procName); err != nil {
		return nil, &errors.CompileError{Procedure: procName, Message: err.Error()}
	}

	if pc == nil {
		return nil, nil
	}

	var spec *catalog.PartitionSpec
	switch {
	case pc.Directed:
		// Single partition with no key data.
		spec = catalog.NewDirectedSpec()

	default:
		if err := catalog.ValidateIdentifier("table", pc.Table); err != nil {
			return nil, &errors.CompileError{Procedure: procName, Message: err.Error()}
		}
		if err := catalog.ValidateIdentifier("column", pc.Column); err != nil {
			return nil, &errors.CompileError{Procedure: procName, Message: err.Error()}
		}

		if !pc.HasSecondKey {
			spec = catalog.NewSingleKeySpec(pc.Table, pc.Column, pc.ParamIndex)
			break
		}

		if err := catalog.ValidateIdentifier("table", pc.Table2); err != nil {
			return nil, &errors.CompileError{Procedure: procName, Message: err.Error()}
		}
		if err := catalog.ValidateIdentifier("column", pc.Column2); err != nil {
			return nil, &errors.CompileError{Procedure: procName, Message: err.Error()}
		}

		// The second key never defaults: the index must be explicit
		// regardless of the first parameter index.
		if !pc.ParamIndex2Set {
			return nil, errors.Compilef(procName,
				"Two partition procedure must specify the parameter index of the second partitioning parameter.")
		}

		spec = catalog.NewTwoKeySpec(pc.Table, pc.Column, pc.ParamIndex,
			pc.Table2, pc.Column2, pc.ParamIndex2)
	}

	dir.Put(procName, spec)
	return spec, nil
}
