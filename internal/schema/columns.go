// Package schema creates and verifies the per-tenant table set.
//
// Every entity table stores one canonical JSON document per record. The
// typed columns the external storage interface expects are generated
// columns computed by SQLite from fixed JSON paths, never written by
// application code, so they can never drift from the document.
package schema

// Kind identifies one entity table.
type Kind string

// The ten entity kinds of the object store.
const (
	KindPerson     Kind = "person"
	KindFamily     Kind = "family"
	KindEvent      Kind = "event"
	KindPlace      Kind = "place"
	KindSource     Kind = "source"
	KindCitation   Kind = "citation"
	KindRepository Kind = "repository"
	KindMedia      Kind = "media"
	KindNote       Kind = "note"
	KindTag        Kind = "tag"
)

// Kinds lists every entity kind in schema-creation order.
var Kinds = []Kind{
	KindPerson, KindFamily, KindEvent, KindPlace, KindSource,
	KindCitation, KindRepository, KindMedia, KindNote, KindTag,
}

// Support tables that carry the tenant prefix alongside the entity tables.
const (
	ReferenceTable = "reference"
	MetadataTable  = "metadata"
)

// Shared tables carry no prefix and are visible to every tenant.
const (
	SurnameTable   = "surname"
	NameGroupTable = "name_group"
)

// DerivedColumn declares one generated column: its name, the JSON path it
// is computed from, and its SQL type. This table is the single source of
// truth; the DDL renderer and the coercion layer both consume it.
type DerivedColumn struct {
	Name     string
	JSONPath string
	SQLType  string
}

// derivedColumns maps each entity kind to its generated columns.
//
// The paths mirror the external collaborator's serialized document layout;
// changing one is a schema revision and must bump currentSchemaVersion.
var derivedColumns = map[Kind][]DerivedColumn{
	KindPerson: {
		{Name: "gramps_id", JSONPath: "$.gramps_id", SQLType: "TEXT"},
		{Name: "given_name", JSONPath: "$.primary_name.first_name", SQLType: "TEXT"},
		{Name: "surname", JSONPath: "$.primary_name.surname_list[0].surname", SQLType: "TEXT"},
		{Name: "gender", JSONPath: "$.gender", SQLType: "INTEGER"},
		{Name: "private", JSONPath: "$.private", SQLType: "BOOLEAN"},
	},
	KindFamily: {
		{Name: "gramps_id", JSONPath: "$.gramps_id", SQLType: "TEXT"},
		{Name: "father_handle", JSONPath: "$.father_handle", SQLType: "TEXT"},
		{Name: "mother_handle", JSONPath: "$.mother_handle", SQLType: "TEXT"},
		{Name: "private", JSONPath: "$.private", SQLType: "BOOLEAN"},
	},
	KindEvent: {
		{Name: "gramps_id", JSONPath: "$.gramps_id", SQLType: "TEXT"},
		{Name: "event_type", JSONPath: "$.type.value", SQLType: "INTEGER"},
		{Name: "description", JSONPath: "$.description", SQLType: "TEXT"},
		{Name: "private", JSONPath: "$.private", SQLType: "BOOLEAN"},
	},
	KindPlace: {
		{Name: "gramps_id", JSONPath: "$.gramps_id", SQLType: "TEXT"},
		{Name: "title", JSONPath: "$.title", SQLType: "TEXT"},
		{Name: "code", JSONPath: "$.code", SQLType: "TEXT"},
		{Name: "private", JSONPath: "$.private", SQLType: "BOOLEAN"},
	},
	KindSource: {
		{Name: "gramps_id", JSONPath: "$.gramps_id", SQLType: "TEXT"},
		{Name: "title", JSONPath: "$.title", SQLType: "TEXT"},
		{Name: "author", JSONPath: "$.author", SQLType: "TEXT"},
		{Name: "private", JSONPath: "$.private", SQLType: "BOOLEAN"},
	},
	KindCitation: {
		{Name: "gramps_id", JSONPath: "$.gramps_id", SQLType: "TEXT"},
		{Name: "source_handle", JSONPath: "$.source_handle", SQLType: "TEXT"},
		{Name: "confidence", JSONPath: "$.confidence", SQLType: "INTEGER"},
		{Name: "private", JSONPath: "$.private", SQLType: "BOOLEAN"},
	},
	KindRepository: {
		{Name: "gramps_id", JSONPath: "$.gramps_id", SQLType: "TEXT"},
		{Name: "repo_name", JSONPath: "$.name", SQLType: "TEXT"},
		{Name: "private", JSONPath: "$.private", SQLType: "BOOLEAN"},
	},
	KindMedia: {
		{Name: "gramps_id", JSONPath: "$.gramps_id", SQLType: "TEXT"},
		{Name: "path", JSONPath: "$.path", SQLType: "TEXT"},
		{Name: "mime", JSONPath: "$.mime", SQLType: "TEXT"},
		{Name: "private", JSONPath: "$.private", SQLType: "BOOLEAN"},
	},
	KindNote: {
		{Name: "gramps_id", JSONPath: "$.gramps_id", SQLType: "TEXT"},
		{Name: "note_type", JSONPath: "$.type.value", SQLType: "INTEGER"},
		{Name: "private", JSONPath: "$.private", SQLType: "BOOLEAN"},
	},
	KindTag: {
		{Name: "tag_name", JSONPath: "$.name", SQLType: "TEXT"},
		{Name: "color", JSONPath: "$.color", SQLType: "TEXT"},
		{Name: "priority", JSONPath: "$.priority", SQLType: "INTEGER"},
	},
}

// DerivedColumns returns the generated-column declarations for a kind.
func DerivedColumns(kind Kind) []DerivedColumn {
	return derivedColumns[kind]
}

// RefPath declares where a kind's document holds handles of another kind.
// Reference edges are recomputed from these paths on every commit, making
// backlinks a pure function of the committed documents.
type RefPath struct {
	Path   string
	Target Kind
}

// refPaths mirrors the collaborator's serialized layout, like
// derivedColumns does.
var refPaths = map[Kind][]RefPath{
	KindPerson: {
		{Path: "$.family_list[*]", Target: KindFamily},
		{Path: "$.parent_family_list[*]", Target: KindFamily},
		{Path: "$.event_ref_list[*].ref", Target: KindEvent},
		{Path: "$.citation_list[*]", Target: KindCitation},
		{Path: "$.note_list[*]", Target: KindNote},
		{Path: "$.media_list[*].ref", Target: KindMedia},
		{Path: "$.tag_list[*]", Target: KindTag},
	},
	KindFamily: {
		{Path: "$.father_handle", Target: KindPerson},
		{Path: "$.mother_handle", Target: KindPerson},
		{Path: "$.child_ref_list[*].ref", Target: KindPerson},
		{Path: "$.event_ref_list[*].ref", Target: KindEvent},
		{Path: "$.citation_list[*]", Target: KindCitation},
		{Path: "$.note_list[*]", Target: KindNote},
		{Path: "$.tag_list[*]", Target: KindTag},
	},
	KindEvent: {
		{Path: "$.place", Target: KindPlace},
		{Path: "$.citation_list[*]", Target: KindCitation},
		{Path: "$.note_list[*]", Target: KindNote},
		{Path: "$.media_list[*].ref", Target: KindMedia},
	},
	KindPlace: {
		{Path: "$.placeref_list[*].ref", Target: KindPlace},
		{Path: "$.citation_list[*]", Target: KindCitation},
		{Path: "$.note_list[*]", Target: KindNote},
		{Path: "$.media_list[*].ref", Target: KindMedia},
	},
	KindSource: {
		{Path: "$.note_list[*]", Target: KindNote},
		{Path: "$.media_list[*].ref", Target: KindMedia},
		{Path: "$.reporef_list[*].ref", Target: KindRepository},
	},
	KindCitation: {
		{Path: "$.source_handle", Target: KindSource},
		{Path: "$.note_list[*]", Target: KindNote},
		{Path: "$.media_list[*].ref", Target: KindMedia},
	},
	KindRepository: {
		{Path: "$.note_list[*]", Target: KindNote},
	},
	KindMedia: {
		{Path: "$.citation_list[*]", Target: KindCitation},
		{Path: "$.note_list[*]", Target: KindNote},
		{Path: "$.tag_list[*]", Target: KindTag},
	},
	KindNote: {
		{Path: "$.tag_list[*]", Target: KindTag},
	},
	KindTag: {},
}

// RefPaths returns the reference-path declarations for a kind.
func RefPaths(kind Kind) []RefPath {
	return refPaths[kind]
}

// PrefixedTables returns every table name that carries the tenant prefix:
// the entity tables plus the reference and metadata support tables.
func PrefixedTables() []string {
	names := make([]string, 0, len(Kinds)+2)
	for _, k := range Kinds {
		names = append(names, string(k))
	}
	return append(names, ReferenceTable, MetadataTable)
}

// SharedTables returns the unprefixed, cross-tenant table names.
func SharedTables() []string {
	return []string{SurnameTable, NameGroupTable}
}

// ValidKind reports whether kind names an entity table.
func ValidKind(kind Kind) bool {
	_, ok := derivedColumns[kind]
	return ok
}
