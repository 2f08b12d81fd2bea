// Package catalog holds the compiled partitioning contract of every stored
// procedure: the PartitionSpec built at DDL compile time and the directory
// the router reads at invocation time.
package catalog

import "fmt"

// PartitionSpec is the partitioning contract of one procedure.
//
// Exactly one of the following shapes is valid:
//   - directed: pinned to a fixed partition, no key data
//   - single key: Table/Column/ParamIndex
//   - two keys: additionally Table2/Column2/ParamIndex2
//
// A spec is constructed once during DDL compilation and never mutated.
type PartitionSpec struct {
	Directed bool

	Table      string
	Column     string
	ParamIndex int

	Table2      string
	Column2     string
	ParamIndex2 int

	twoKey bool
}

// NewDirectedSpec returns the spec of a directed procedure.
func NewDirectedSpec() *PartitionSpec {
	return &PartitionSpec{Directed: true}
}

// NewSingleKeySpec returns a spec routed by one table/column/parameter triple.
func NewSingleKeySpec(table, column string, paramIndex int) *PartitionSpec {
	return &PartitionSpec{
		Table:      table,
		Column:     column,
		ParamIndex: paramIndex,
	}
}

// NewTwoKeySpec returns a spec routed by two co-partitioned key triples.
func NewTwoKeySpec(table, column string, paramIndex int, table2, column2 string, paramIndex2 int) *PartitionSpec {
	return &PartitionSpec{
		Table:       table,
		Column:      column,
		ParamIndex:  paramIndex,
		Table2:      table2,
		Column2:     column2,
		ParamIndex2: paramIndex2,
		twoKey:      true,
	}
}

// SinglePartition reports whether invocations under this spec execute on
// exactly one partition.
func (s *PartitionSpec) SinglePartition() bool {
	return s != nil
}

// TwoKey reports whether a second partitioning key is present.
func (s *PartitionSpec) TwoKey() bool {
	return s.twoKey
}

// ParamIndexes returns the argument positions that supply partition key
// values, in key order.
func (s *PartitionSpec) ParamIndexes() []int {
	if s.Directed {
		return nil
	}
	if s.twoKey {
		return []int{s.ParamIndex, s.ParamIndex2}
	}
	return []int{s.ParamIndex}
}

func (s *PartitionSpec) String() string {
	switch {
	case s.Directed:
		return "DIRECTED"
	case s.twoKey:
		return fmt.Sprintf("PARTITION ON %s.%s PARAMETER %d AND ON %s.%s PARAMETER %d",
			s.Table, s.Column, s.ParamIndex, s.Table2, s.Column2, s.ParamIndex2)
	default:
		return fmt.Sprintf("PARTITION ON %s.%s PARAMETER %d", s.Table, s.Column, s.ParamIndex)
	}
}
