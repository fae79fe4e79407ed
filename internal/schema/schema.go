package schema

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/AppleFlash/BackgroundRealm/internal/query"
)

//go:embed default.cue
var defaultSource string

// Kind describes one record kind.
type Kind struct {
	// Name is the kind's identifier, e.g. "User".
	Name string

	// PrimaryKey is the body field holding the record identity. Empty means
	// the kind is keyless: every save appends a new record.
	PrimaryKey string

	// Lists names the body fields holding embedded ordered child lists.
	Lists []string
}

// Keyed reports whether records of k have an identity key.
func (k Kind) Keyed() bool { return k.PrimaryKey != "" }

// HasList reports whether field is one of k's embedded lists.
func (k Kind) HasList(field string) bool { return slices.Contains(k.Lists, field) }

// Schema is an immutable set of kinds.
type Schema struct {
	kinds map[string]Kind
	names []string
}

// New builds a Schema, validating every kind.
func New(kinds ...Kind) (*Schema, error) {
	s := &Schema{kinds: make(map[string]Kind, len(kinds))}
	for _, k := range kinds {
		if err := validateKind(k); err != nil {
			return nil, err
		}
		if _, dup := s.kinds[k.Name]; dup {
			return nil, &CompileError{Field: "kind." + k.Name, Message: "duplicate kind"}
		}
		k.Lists = slices.Clone(k.Lists)
		s.kinds[k.Name] = k
		s.names = append(s.names, k.Name)
	}
	slices.Sort(s.names)
	return s, nil
}

// Kind looks up a kind by name.
func (s *Schema) Kind(name string) (Kind, bool) {
	k, ok := s.kinds[name]
	return k, ok
}

// Kinds returns every kind sorted by name.
func (s *Schema) Kinds() []Kind {
	out := make([]Kind, len(s.names))
	for i, name := range s.names {
		out[i] = s.kinds[name]
	}
	return out
}

func validateKind(k Kind) error {
	if !query.ValidField(k.Name) {
		return &CompileError{Field: "kind", Message: fmt.Sprintf("invalid kind name %q", k.Name)}
	}
	if k.PrimaryKey != "" && !query.ValidField(k.PrimaryKey) {
		return &CompileError{Field: "kind." + k.Name + ".primaryKey", Message: fmt.Sprintf("invalid field %q", k.PrimaryKey)}
	}
	for _, l := range k.Lists {
		if !query.ValidField(l) {
			return &CompileError{Field: "kind." + k.Name + ".lists", Message: fmt.Sprintf("invalid field %q", l)}
		}
		if l == k.PrimaryKey {
			return &CompileError{Field: "kind." + k.Name + ".lists", Message: "primary key cannot be a list"}
		}
	}
	return nil
}

// Default returns the built-in schema.
func Default() *Schema {
	s, err := CompileString(defaultSource, "default.cue")
	if err != nil {
		panic(fmt.Sprintf("schema: built-in schema does not compile: %v", err))
	}
	return s
}

// LoadFile compiles the CUE file at path.
func LoadFile(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return CompileString(string(src), path)
}

// CompileString compiles CUE source declaring kinds:
//
//	kind: UserContainer: {
//		primaryKey: "id"
//		lists: ["users"]
//	}
func CompileString(src, filename string) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return Compile(v)
}

// Compile reads the kinds declared under the top-level "kind" field of v.
// Uses the CUE SDK's Go API directly.
func Compile(v cue.Value) (*Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	kindsVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindsVal.Exists() {
		return nil, &CompileError{Field: "kind", Message: "no kinds declared", Pos: v.Pos()}
	}

	iter, err := kindsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var kinds []Kind
	for iter.Next() {
		k, err := compileKind(iter.Selector().Unquoted(), iter.Value())
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return New(kinds...)
}

func compileKind(name string, v cue.Value) (Kind, error) {
	k := Kind{Name: name}

	pkVal := v.LookupPath(cue.ParsePath("primaryKey"))
	if pkVal.Exists() {
		pk, err := pkVal.String()
		if err != nil {
			return Kind{}, &CompileError{
				Field:   "kind." + name + ".primaryKey",
				Message: "must be a string",
				Pos:     pkVal.Pos(),
			}
		}
		k.PrimaryKey = pk
	}

	listsVal := v.LookupPath(cue.ParsePath("lists"))
	if listsVal.Exists() {
		it, err := listsVal.List()
		if err != nil {
			return Kind{}, &CompileError{
				Field:   "kind." + name + ".lists",
				Message: "must be a list of strings",
				Pos:     listsVal.Pos(),
			}
		}
		for it.Next() {
			s, err := it.Value().String()
			if err != nil {
				return Kind{}, &CompileError{
					Field:   "kind." + name + ".lists",
					Message: "must be a list of strings",
					Pos:     it.Value().Pos(),
				}
			}
			k.Lists = append(k.Lists, s)
		}
	}
	return k, nil
}

// CompileError is a schema compilation error with an optional CUE source
// position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
