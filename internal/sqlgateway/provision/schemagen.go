package provision

import (
	"strings"

	"github.com/nexusdb/sqlgateway/internal/sqlgateway/ddl"
	"github.com/tidwall/gjson"
)

// AppFile is one declared file of the application being provisioned. Only
// JSON manifests are inspected; everything else is ignored.
type AppFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// fieldTypes maps manifest field types to supported column types. Unknown
// types fall back to text rather than failing the analysis.
var fieldTypes = map[string]string{
	"string":    "text",
	"text":      "text",
	"integer":   "integer",
	"int":       "integer",
	"bigint":    "bigint",
	"number":    "numeric",
	"float":     "double precision",
	"boolean":   "boolean",
	"bool":      "boolean",
	"date":      "date",
	"datetime":  "timestamptz",
	"timestamp": "timestamptz",
	"json":      "jsonb",
	"uuid":      "uuid",
}

// analyzeAppFiles derives table definitions from entity declarations in the
// application's JSON manifests. The whole analysis is best-effort: files
// that are not valid JSON or declare nothing usable are skipped silently.
func analyzeAppFiles(files []AppFile) []ddl.TableDefinition {
	tables := []ddl.TableDefinition{}
	seen := map[string]bool{}

	for _, file := range files {
		if !strings.HasSuffix(file.Path, ".json") || !gjson.Valid(file.Content) {
			continue
		}
		entities := gjson.Get(file.Content, "entities")
		if !entities.Exists() {
			entities = gjson.Get(file.Content, "models")
		}
		if !entities.IsArray() {
			continue
		}

		entities.ForEach(func(_, entity gjson.Result) bool {
			name := entity.Get("name").String()
			if name == "" || seen[name] {
				return true
			}
			table := entityToTable(name, entity)
			if table != nil {
				seen[name] = true
				tables = append(tables, *table)
			}
			return true
		})
	}
	return tables
}

func entityToTable(name string, entity gjson.Result) *ddl.TableDefinition {
	table := &ddl.TableDefinition{
		Schema: "app",
		Name:   strings.ToLower(name),
		Columns: []ddl.ColumnDefinition{{
			Name:          "id",
			Type:          "uuid",
			IsPrimaryKey:  true,
			DefaultValue:  "gen_random_uuid()",
			DefaultIsExpr: true,
		}},
	}

	fields := entity.Get("fields")
	if !fields.IsArray() {
		return nil
	}
	fields.ForEach(func(_, field gjson.Result) bool {
		fieldName := strings.ToLower(field.Get("name").String())
		if fieldName == "" || fieldName == "id" {
			return true
		}
		colType, ok := fieldTypes[strings.ToLower(field.Get("type").String())]
		if !ok {
			colType = "text"
		}
		table.Columns = append(table.Columns, ddl.ColumnDefinition{
			Name:       fieldName,
			Type:       colType,
			IsNullable: !field.Get("required").Bool(),
		})
		return true
	})

	if len(table.Columns) == 1 {
		return nil
	}
	return table
}
