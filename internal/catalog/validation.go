package catalog

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxIdentifierLen is the maximum allowed identifier length in bytes.
	MaxIdentifierLen = 128
)

// ValidateIdentifier checks a procedure, table, or column name against the
// engine's identifier rules: leading letter, then letters, digits,
// underscores or dollar signs.
func ValidateIdentifier(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name cannot be empty", kind)
	}

	if !utf8.ValidString(name) {
		return fmt.Errorf("%s name must be valid UTF-8", kind)
	}

	if len(name) > MaxIdentifierLen {
		return fmt.Errorf("%s name exceeds maximum length of %d bytes", kind, MaxIdentifierLen)
	}

	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) {
				return fmt.Errorf("%s name %q must start with a letter", kind, name)
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '$' {
			return fmt.Errorf("%s name %q contains invalid character %q", kind, name, r)
		}
	}

	return nil
}

// ValidateProcedureName checks a procedure name: one or more identifier
// segments joined by dots, as in the generated TABLE.insert defaults.
func ValidateProcedureName(name string) error {
	if name == "" {
		return fmt.Errorf("procedure name cannot be empty")
	}
	if len(name) > MaxIdentifierLen {
		return fmt.Errorf("procedure name exceeds maximum length of %d bytes", MaxIdentifierLen)
	}
	for _, segment := range strings.Split(name, ".") {
		if err := ValidateIdentifier("procedure", segment); err != nil {
			return err
		}
	}
	return nil
}
