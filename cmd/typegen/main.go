// Command typegen generates TypeScript declarations for the HTTP and chat
// socket payloads consumed by the web UI. Run from the project root:
//
//	go run ./cmd/typegen -out static/types.d.ts
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
)

// sourceDirs are the packages whose structs describe wire payloads.
var sourceDirs = []string{"protocol", "store"}

// structsToGenerate lists the Go structs to emit, in output order.
var structsToGenerate = []string{
	// Chat socket
	"ChatRequest",
	"ChatEvent",
	// HTTP
	"ErrorResponse",
	"StatusResponse",
	"VoicesResponse",
	"TranscriptionResponse",
	"HealthResponse",
	"KnowledgeFile",
	"KnowledgeListResponse",
	"KnowledgeFileResponse",
	"KnowledgeSaveRequest",
	"KnowledgeMutationResponse",
	"Values",
	"SettingsUpdateResponse",
	"HistoryEntry",
	"HistoryResponse",
}

// tsRenames maps Go struct names to preferred TypeScript names.
var tsRenames = map[string]string{
	"Values": "Settings",
}

var typeMapping = map[string]string{
	"string":         "string",
	"int":            "number",
	"int64":          "number",
	"float32":        "number",
	"float64":        "number",
	"bool":           "boolean",
	"any":            "unknown",
	"map[string]any": "Record<string, unknown>",
}

// structInfo is a parsed struct with its wire fields.
type structInfo struct {
	name   string
	fields []fieldInfo
}

type fieldInfo struct {
	jsonName string
	goType   string
	optional bool
}

// generator holds what was parsed from the source packages.
type generator struct {
	structs map[string]*structInfo
	aliases map[string]string   // named type -> underlying primitive
	enums   map[string][]string // named type -> declared string constants
}

func newGenerator() *generator {
	return &generator{
		structs: map[string]*structInfo{},
		aliases: map[string]string{},
		enums:   map[string][]string{},
	}
}

func main() {
	outPath := flag.String("out", "static/types.d.ts", "output TypeScript file path")
	flag.Parse()

	root, err := os.Getwd()
	if err != nil {
		fatal("getwd: %v", err)
	}

	g := newGenerator()
	for _, dir := range sourceDirs {
		if err := g.parseDir(filepath.Join(root, dir)); err != nil {
			fatal("parse %s: %v", dir, err)
		}
	}

	out := g.render()
	absOut := *outPath
	if !filepath.IsAbs(absOut) {
		absOut = filepath.Join(root, absOut)
	}
	if err := os.MkdirAll(filepath.Dir(absOut), 0o755); err != nil {
		fatal("mkdir: %v", err)
	}
	if err := os.WriteFile(absOut, out, 0o644); err != nil {
		fatal("write: %v", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s (%d bytes)\n", absOut, len(out))
}

// parseDir collects structs, named primitive types and string constants
// from the non-test files of one package.
func (g *generator) parseDir(dir string) error {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, dir, func(fi os.FileInfo) bool {
		return !strings.HasSuffix(fi.Name(), "_test.go")
	}, 0)
	if err != nil {
		return err
	}

	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			for _, decl := range file.Decls {
				genDecl, ok := decl.(*ast.GenDecl)
				if !ok {
					continue
				}
				switch genDecl.Tok {
				case token.TYPE:
					for _, spec := range genDecl.Specs {
						ts := spec.(*ast.TypeSpec)
						switch t := ts.Type.(type) {
						case *ast.Ident:
							g.aliases[ts.Name.Name] = t.Name
						case *ast.StructType:
							g.structs[ts.Name.Name] = parseStruct(ts.Name.Name, t)
						}
					}
				case token.CONST:
					for _, spec := range genDecl.Specs {
						vs, ok := spec.(*ast.ValueSpec)
						if !ok || vs.Type == nil {
							continue
						}
						typeName := typeExprToString(vs.Type)
						for _, val := range vs.Values {
							if lit, ok := val.(*ast.BasicLit); ok && lit.Kind == token.STRING {
								g.enums[typeName] = append(g.enums[typeName], strings.Trim(lit.Value, `"`))
							}
						}
					}
				}
			}
		}
	}
	return nil
}

// parseStruct keeps json-tagged fields; omitempty fields become optional.
func parseStruct(name string, st *ast.StructType) *structInfo {
	si := &structInfo{name: name}
	for _, field := range st.Fields.List {
		if field.Tag == nil {
			continue
		}
		tag := reflect.StructTag(strings.Trim(field.Tag.Value, "`")).Get("json")
		jsonName, opts, _ := strings.Cut(tag, ",")
		if jsonName == "" || jsonName == "-" {
			continue
		}
		si.fields = append(si.fields, fieldInfo{
			jsonName: jsonName,
			goType:   typeExprToString(field.Type),
			optional: strings.Contains(opts, "omitempty"),
		})
	}
	return si
}

func typeExprToString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + typeExprToString(t.X)
	case *ast.ArrayType:
		return "[]" + typeExprToString(t.Elt)
	case *ast.MapType:
		return "map[" + typeExprToString(t.Key) + "]" + typeExprToString(t.Value)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.InterfaceType:
		return "any"
	default:
		return "unknown"
	}
}

func tsName(goName string) string {
	if rename, ok := tsRenames[goName]; ok {
		return rename
	}
	return goName
}

// resolveType converts a Go type string to a TypeScript type.
func (g *generator) resolveType(goType string) string {
	clean := strings.TrimPrefix(goType, "*")
	if ts, ok := typeMapping[clean]; ok {
		return ts
	}
	if strings.HasPrefix(clean, "[]") {
		return g.resolveType(clean[2:]) + "[]"
	}
	if strings.HasPrefix(clean, "map[") {
		return "Record<string, unknown>"
	}
	if _, ok := g.structs[clean]; ok {
		return tsName(clean)
	}
	if _, ok := g.enums[clean]; ok {
		return clean
	}
	if underlying, ok := g.aliases[clean]; ok {
		return g.resolveType(underlying)
	}
	return "unknown"
}

func (g *generator) render() []byte {
	var buf bytes.Buffer
	buf.WriteString("// Code generated by cmd/typegen; DO NOT EDIT.\n\n")

	for _, name := range sortedKeys(g.enums) {
		quoted := make([]string, len(g.enums[name]))
		for i, v := range g.enums[name] {
			quoted[i] = "'" + v + "'"
		}
		fmt.Fprintf(&buf, "export type %s = %s\n\n", name, strings.Join(quoted, " | "))
	}

	for _, goName := range structsToGenerate {
		si, ok := g.structs[goName]
		if !ok {
			fmt.Fprintf(os.Stderr, "warning: struct %q not found, skipping\n", goName)
			continue
		}
		fmt.Fprintf(&buf, "export interface %s {\n", tsName(goName))
		for _, f := range si.fields {
			opt := ""
			if f.optional {
				opt = "?"
			}
			fmt.Fprintf(&buf, "  %s%s: %s\n", f.jsonName, opt, g.resolveType(f.goType))
		}
		buf.WriteString("}\n\n")
	}
	return buf.Bytes()
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "typegen: "+format+"\n", args...)
	os.Exit(1)
}
