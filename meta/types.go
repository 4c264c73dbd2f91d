// Package meta implements the versioned schema catalog: the durable store,
// the in-memory multi-revision cache, and the transactional service façade
// that sits in front of both.
package meta

import (
	"github.com/google/uuid"

	"github.com/vsearchio/vsearch/cmn"
)

// IndexColumn describes one vector column of a collection.
type IndexColumn struct {
	ColumnName string
	ColumnUID  string
	IndexType  cmn.IndexType
	DataType   cmn.DataType
	Dimension  int
	Parameters map[string]string
}

// Repository describes the optional CDC source a collection proxy-writes
// from. Its presence on a revision selects proxy write mode.
type Repository struct {
	Name          string
	ConnectionURI string
	User          string
	Password      string
	TableName     string
}

// Collection is one immutable revision of a named collection's schema.
// Revisions sharing the same UID form the history of one logical
// collection; at most one of them is Current at any time.
type Collection struct {
	Name     string
	UID      string
	UUID     string
	Revision uint64

	Current bool
	Status  cmn.CollectionStatus

	Readable bool
	Writable bool

	MaxDocsPerSegment uint64

	ForwardColumns []string
	IndexColumns   []IndexColumn

	Repository *Repository
}

// CreateParam is the user-supplied shape for create_collection: everything
// in Collection except the system-assigned identity/lifecycle fields.
type CreateParam struct {
	Name              string
	MaxDocsPerSegment uint64
	ForwardColumns    []string
	IndexColumns      []IndexColumn
	Repository        *Repository
}

// UpdateParam carries the mutable subset of fields a caller may change via
// update_collection. Nil pointers mean "leave unchanged". IndexColumns, when
// non-nil, is matched positionally against the existing columns; only the
// ColumnName may legitimately differ (a rename), everything else must match
// the current value or the update is rejected.
type UpdateParam struct {
	Name              string
	MaxDocsPerSegment *uint64
	ForwardColumns    []string
	IndexColumns      []IndexColumn
	Repository        *Repository
}

// Validate enforces the §3 invariants a freshly-built CreateParam must
// satisfy before a uid/uuid is even minted.
func (p *CreateParam) Validate() error {
	if p.Name == "" {
		return cmn.NewError(cmn.CodeEmptyCollectionName, "name is empty")
	}
	if len(p.IndexColumns) == 0 {
		return cmn.NewError(cmn.CodeEmptyColumns, "index_columns is empty")
	}
	for _, ic := range p.IndexColumns {
		if ic.ColumnName == "" {
			return cmn.NewError(cmn.CodeEmptyColumnName, "index column name is empty")
		}
		if ic.Dimension <= 0 {
			return cmn.NewError(cmn.CodeInvalidRecord, "index column %q dimension must be > 0", ic.ColumnName)
		}
		if ic.DataType == cmn.DataTypeUndefined {
			return cmn.NewError(cmn.CodeInvalidDataType, "index column %q has undefined data_type", ic.ColumnName)
		}
	}
	for _, fc := range p.ForwardColumns {
		if fc == "" {
			return cmn.NewError(cmn.CodeEmptyColumnName, "forward column name is empty")
		}
	}
	return nil
}

// newIdentity mints a fresh uid+uuid pair for a brand-new collection.
func newIdentity() (uid, uu string) {
	return uuid.NewString(), uuid.NewString()
}

// newRevisionUUID mints the uuid for a new revision of an existing uid.
func newRevisionUUID() string {
	return uuid.NewString()
}

// fromCreateParam builds revision-0 of a new collection.
func fromCreateParam(p *CreateParam) *Collection {
	uid, uu := newIdentity()
	cols := make([]IndexColumn, len(p.IndexColumns))
	for i, ic := range p.IndexColumns {
		ic.ColumnUID = uuid.NewString()
		cols[i] = ic
	}
	return &Collection{
		Name:              p.Name,
		UID:               uid,
		UUID:              uu,
		Revision:          0,
		Current:           false,
		Status:            cmn.StatusInitialized,
		Readable:          false,
		Writable:          false,
		MaxDocsPerSegment: p.MaxDocsPerSegment,
		ForwardColumns:    append([]string(nil), p.ForwardColumns...),
		IndexColumns:      cols,
		Repository:        p.Repository,
	}
}

// mergeUpdate produces the next revision of prev by applying the mutable
// fields in p, enforcing the immutability rules from §3. A column rename
// (ColumnName differs from the existing one at the same position) is the
// one allowed change to an index column; it mints that column a fresh UID.
// Any other divergence in an index column (data type, index type,
// dimension) is rejected.
func mergeUpdate(prev *Collection, p *UpdateParam) (*Collection, error) {
	next := *prev
	next.Revision = prev.Revision + 1
	next.UUID = newRevisionUUID()
	next.Current = false
	next.Status = prev.Status

	if p.MaxDocsPerSegment != nil {
		next.MaxDocsPerSegment = *p.MaxDocsPerSegment
	}
	if p.ForwardColumns != nil {
		next.ForwardColumns = append([]string(nil), p.ForwardColumns...)
	}
	if p.Repository != nil {
		r := *p.Repository
		next.Repository = &r
	}

	if p.IndexColumns != nil {
		if len(p.IndexColumns) != len(prev.IndexColumns) {
			return nil, cmn.NewError(cmn.CodeMismatchedIndexColumn, "index column count cannot change on update")
		}
		cols := make([]IndexColumn, len(prev.IndexColumns))
		for i, want := range p.IndexColumns {
			have := prev.IndexColumns[i]
			if want.DataType != have.DataType {
				return nil, cmn.NewError(cmn.CodeUpdateDataTypeField, "column %q", have.ColumnName)
			}
			if want.IndexType != have.IndexType {
				return nil, cmn.NewError(cmn.CodeUpdateIndexTypeField, "column %q", have.ColumnName)
			}
			if want.Dimension != have.Dimension {
				return nil, cmn.NewError(cmn.CodeMismatchedDimension, "column %q", have.ColumnName)
			}
			col := have
			col.Parameters = want.Parameters
			if want.ColumnName != "" && want.ColumnName != have.ColumnName {
				col.ColumnName = want.ColumnName
				col.ColumnUID = uuid.NewString()
			}
			cols[i] = col
		}
		next.IndexColumns = cols
	} else {
		cols := make([]IndexColumn, len(prev.IndexColumns))
		copy(cols, prev.IndexColumns)
		next.IndexColumns = cols
	}

	return &next, nil
}
