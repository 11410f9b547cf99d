package gen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"go.uber.org/zap"
	"golang.org/x/tools/imports"

	"github.com/arkframe/record/naming"
)

const (
	recordPkg = "github.com/arkframe/record"
	sqlPkg    = "github.com/arkframe/record/dialect/sql"

	header = "Code generated by recordgen. DO NOT EDIT."
)

// TypeName returns the Go type name of the model.
func (m *ModelSpec) TypeName() string {
	return exported(m.Name)
}

// packageDir returns the directory and package name of the model's constant
// and predicate package.
func (m *ModelSpec) packageDir() string {
	return strings.ToLower(m.TypeName())
}

// exported converts a config name to an exported Go identifier. Trailing
// "id" becomes "ID" per Go initialism convention.
func exported(name string) string {
	s := inflect.Camelize(name)
	if strings.HasSuffix(s, "Id") {
		s = strings.TrimSuffix(s, "Id") + "ID"
	}
	return s
}

// Generator scaffolds model files from a Config.
type Generator struct {
	cfg *Config
	log *zap.Logger
}

// New returns a Generator for the given config. A nil logger disables
// logging.
func New(cfg *Config, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{cfg: cfg, log: log}
}

// Generate writes one model file per configured model into the output
// directory, plus a per-model package of column constants and typed
// predicate fields.
func (g *Generator) Generate(ctx context.Context) error {
	if err := os.MkdirAll(g.cfg.Out, 0o755); err != nil {
		return err
	}
	for i := range g.cfg.Models {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := &g.cfg.Models[i]
		if err := g.writeFile(g.genModel(m), g.cfg.Out, naming.Snake(m.TypeName())+".go"); err != nil {
			return err
		}
		if err := g.writeFile(g.genPackage(m), filepath.Join(g.cfg.Out, m.packageDir()), m.packageDir()+".go"); err != nil {
			return err
		}
		g.log.Info("generated model",
			zap.String("model", m.TypeName()),
			zap.String("table", m.Table),
		)
	}
	return nil
}

// genModel generates the model struct file.
func (g *Generator) genModel(m *ModelSpec) *jen.File {
	f := jen.NewFile(g.cfg.Package)
	f.HeaderComment(header)

	fields := []jen.Code{jen.Qual(recordPkg, "Model")}
	for _, fs := range m.Fields {
		fields = append(fields, jen.Id(exported(fs.Name)).Add(fieldType(fs)))
	}
	for _, parent := range m.BelongsTo {
		fields = append(fields, jen.Id(exported(naming.ForeignKey(parent))).Int64())
	}

	f.Commentf("%s is the %s model.", m.TypeName(), m.Name)
	f.Type().Id(m.TypeName()).Struct(fields...)

	// A TableName method is only emitted when the config overrides the
	// conventional name.
	if m.Table != naming.TableName(m.TypeName()) {
		f.Comment("TableName overrides the conventional table name.")
		f.Func().Params(jen.Id(m.TypeName())).Id("TableName").Params().String().Block(
			jen.Return(jen.Lit(m.Table)),
		)
	}
	return f
}

// genPackage generates the per-model constant and predicate package.
func (g *Generator) genPackage(m *ModelSpec) *jen.File {
	f := jen.NewFile(m.packageDir())
	f.HeaderComment(header)

	cols := m.columns()
	consts := []jen.Code{
		jen.Comment("Table is the table the model is stored in."),
		jen.Id("Table").Op("=").Lit(m.Table),
	}
	for _, c := range cols {
		consts = append(consts, jen.Id("Field"+exported(c.field)).Op("=").Lit(c.column))
	}
	f.Const().Defs(consts...)

	f.Comment("Predicate is the predicate type of the model's typed fields.")
	f.Type().Id("Predicate").Op("=").Func().Params(jen.Op("*").Qual(sqlPkg, "Selector"))

	var vars []jen.Code
	for _, c := range cols {
		v := predicateField(c)
		if v != nil {
			vars = append(vars, v)
		}
	}
	if len(vars) > 0 {
		f.Var().Defs(vars...)
	}
	return f
}

type column struct {
	field  string // Go-ish name used for the constant ("ID", "created_at" source)
	column string // physical column name
	typ    string // config type name
}

// columns returns the model's physical columns in declaration order,
// convention columns first.
func (m *ModelSpec) columns() []column {
	cols := []column{
		{field: "id", column: "id", typ: "int64"},
		{field: "created_at", column: "created_at", typ: "time"},
		{field: "updated_at", column: "updated_at", typ: "time"},
		{field: "deleted_at", column: "deleted_at", typ: "time"},
	}
	for _, f := range m.Fields {
		cols = append(cols, column{field: f.Name, column: naming.ColumnName(exported(f.Name)), typ: f.Type})
	}
	for _, parent := range m.BelongsTo {
		fk := naming.ForeignKey(parent)
		cols = append(cols, column{field: fk, column: fk, typ: "int64"})
	}
	return cols
}

// predicateField returns the typed predicate var for a column, or nil for
// types with no typed field helper.
func predicateField(c column) jen.Code {
	name := exported(c.field)
	ref := jen.Id("Field" + name)
	switch c.typ {
	case "string":
		return jen.Id(name).Op("=").Qual(sqlPkg, "StringField").Index(jen.Id("Predicate")).Call(ref)
	case "int", "int64":
		return jen.Id(name).Op("=").Qual(sqlPkg, "Int64Field").Index(jen.Id("Predicate")).Call(ref)
	case "bool":
		return jen.Id(name).Op("=").Qual(sqlPkg, "BoolField").Index(jen.Id("Predicate")).Call(ref)
	case "time":
		return jen.Id(name).Op("=").Qual(sqlPkg, "TimeField").Index(jen.List(jen.Id("Predicate"), jen.Qual("time", "Time"))).Call(ref)
	}
	return nil
}

// fieldType returns the Go type expression for a field spec.
func fieldType(fs FieldSpec) jen.Code {
	t := fieldTypes[fs.Type]
	var code *jen.Statement
	switch {
	case t.name == "[]byte":
		// Byte slices are already nullable.
		return jen.Index().Byte()
	case t.pkg != "":
		code = jen.Qual(t.pkg, t.name)
	default:
		code = jen.Id(t.name)
	}
	if fs.Nullable {
		return jen.Op("*").Add(code)
	}
	return code
}

// writeFile renders a jennifer file, runs it through goimports, and writes
// it to disk.
func (g *Generator) writeFile(f *jen.File, dir, filename string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return fmt.Errorf("gen: rendering %s: %w", filename, err)
	}
	path := filepath.Join(dir, filename)
	src, err := imports.Process(path, buf.Bytes(), nil)
	if err != nil {
		return fmt.Errorf("gen: formatting %s: %w", filename, err)
	}
	return os.WriteFile(path, src, 0o644)
}
