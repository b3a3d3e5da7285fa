package extract

import (
	"context"
	"database/sql"

	"github.com/agentstation/lumea/internal/dbopen"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/logging"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// stagingQuery joins communes to their department in the staging database.
const stagingQuery = `
SELECT c.code_insee, c.nom_commune, d.code_department, d.nom_department
FROM Commune c
JOIN Department d ON c.department_id = d.department_id
ORDER BY d.department_id, c.nom_commune`

var stagingColumns = []string{"code_insee", "nom_commune", "code_department", "nom_department"}

// RelationalStaging extracts communes and departments from the staging
// SQLite database.
type RelationalStaging struct {
	path string
}

// NewRelationalStaging creates the staging extractor for the database at path.
func NewRelationalStaging(path string) *RelationalStaging {
	return &RelationalStaging{path: path}
}

// Source implements Extractor.
func (s *RelationalStaging) Source() types.SourceID { return types.RelationalStaging }

// Extract implements Extractor.
func (s *RelationalStaging) Extract(ctx context.Context) (*sources.Table, error) {
	db, err := dbopen.Open(s.path, dbopen.WithoutWAL())
	if err != nil {
		return nil, errors.WrapResource("open", "staging database", s.path, err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, stagingQuery)
	if err != nil {
		return nil, errors.WrapResource("query", "staging database", s.path, err)
	}
	defer func() { _ = rows.Close() }()

	table := sources.NewTable(types.RelationalStaging, stagingColumns...)
	for rows.Next() {
		var insee, name, code, department sql.NullString
		if err := rows.Scan(&insee, &name, &code, &department); err != nil {
			return nil, errors.WrapResource("scan", "staging database", s.path, err)
		}
		table.AppendValues(insee.String, name.String, code.String, department.String)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapResource("query", "staging database", s.path, err)
	}

	logging.FromContext(ctx).Debug().
		Str("path", s.path).
		Int("rows", table.Len()).
		Msg("Staging database read")
	return table, nil
}
