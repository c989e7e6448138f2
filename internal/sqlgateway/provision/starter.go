package provision

import (
	_ "embed"

	"github.com/nexusdb/sqlgateway/internal/common/apperrors"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/ddl"
	"github.com/nexusdb/sqlgateway/internal/sqlgateway/gwerror"
	"sigs.k8s.io/yaml"
)

//go:embed starter.yaml
var starterSchemaYaml []byte

// StarterSchema is the template applied to a fresh tenant database when the
// caller asks for schema initialization.
type StarterSchema struct {
	Schemas []ddl.SchemaDefinition `json:"schemas"`
	Tables  []ddl.TableDefinition  `json:"tables"`
	Indexes []ddl.IndexDefinition  `json:"indexes"`
}

func loadStarterSchema() (*StarterSchema, apperrors.Error) {
	schema := &StarterSchema{}
	if err := yaml.Unmarshal(starterSchemaYaml, schema); err != nil {
		return nil, gwerror.ErrProvisioning.MsgErr("invalid starter schema template", err)
	}
	return schema, nil
}

// Compile renders the full template into one ordered statement sequence
// suitable for atomic execution.
func (s *StarterSchema) Compile() ([]string, apperrors.Error) {
	statements := []string{}
	for i := range s.Schemas {
		stmts, err := ddl.CompileCreateSchema(&s.Schemas[i])
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmts...)
	}
	for i := range s.Tables {
		stmts, err := ddl.CompileCreateTable(&s.Tables[i])
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmts...)
	}
	for i := range s.Indexes {
		stmts, err := ddl.CompileCreateIndex(&s.Indexes[i])
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmts...)
	}
	return statements, nil
}
