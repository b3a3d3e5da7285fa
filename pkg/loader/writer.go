package loader

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/agentstation/lumea/internal/dbopen"
	"github.com/agentstation/lumea/pkg/canonical"
	"github.com/agentstation/lumea/pkg/conflict"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/keys"
	"github.com/agentstation/lumea/pkg/report"
	"github.com/agentstation/lumea/pkg/types"
)

// writer holds the state of one load transaction. The key maps resolve
// symbolic references to row ids without re-querying the store.
type writer struct {
	ctx    context.Context
	tx     *sql.Tx
	result *Result
	logger *zerolog.Logger

	departments map[string]int64
	communes    map[string]int64
}

func (w *writer) write(ds *canonical.Dataset) error {
	if err := w.writeDepartments(ds.Departments); err != nil {
		return err
	}
	if err := w.writeCommunes(ds.Communes); err != nil {
		return err
	}
	return w.writeSites(ds.Sites)
}

type storedDepartment struct {
	id           int64
	name         string
	nameRegional string
}

// existingDepartments indexes stored departments by identity key, so a
// stored spelling that differs in case, accents or apostrophes still
// matches the canonical department.
func (w *writer) existingDepartments() (map[keys.Key]storedDepartment, error) {
	rows, err := w.tx.QueryContext(w.ctx, `SELECT id, name, name_regional FROM department`)
	if err != nil {
		return nil, errors.WrapResource("query", TableDepartment, "", err)
	}
	defer rows.Close()

	stored := make(map[keys.Key]storedDepartment)
	for rows.Next() {
		var d storedDepartment
		if err := rows.Scan(&d.id, &d.name, &d.nameRegional); err != nil {
			return nil, errors.WrapResource("query", TableDepartment, "", err)
		}
		if k, ok := keys.Department(d.name); ok {
			stored[k] = d
		}
	}
	return stored, rows.Err()
}

// writeDepartments inserts departments whose identity is not stored yet.
// A department stored under another spelling keeps that spelling.
func (w *writer) writeDepartments(departments []canonical.Department) error {
	stored, err := w.existingDepartments()
	if err != nil {
		return err
	}

	for _, d := range departments {
		key := d.Key.String()
		identity, ok := keys.Department(d.Name)
		if !ok {
			w.drop(types.EntityDepartment, report.ReasonMissingKey, fmt.Sprintf("%s: empty name", key))
			continue
		}
		existing, ok := stored[identity]
		switch {
		case !ok:
			res, err := w.tx.ExecContext(w.ctx,
				`INSERT INTO department (name, name_regional) VALUES (?, ?)`, d.Name, d.NameRegional)
			if err != nil {
				return w.fail(TableDepartment, key, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return w.fail(TableDepartment, key, err)
			}
			existing = storedDepartment{id: id, name: d.Name, nameRegional: d.NameRegional}
			stored[identity] = existing
			w.result.Inserted[TableDepartment]++

		case existing.nameRegional == "" && d.NameRegional != "":
			if _, err := w.tx.ExecContext(w.ctx,
				`UPDATE department SET name_regional = ? WHERE id = ?`, d.NameRegional, existing.id); err != nil {
				return w.fail(TableDepartment, key, err)
			}
			existing.nameRegional = d.NameRegional
			stored[identity] = existing
			w.result.Updated[TableDepartment]++

		default:
			w.result.Unchanged[TableDepartment]++
		}
		if existing.name != d.Name {
			w.logger.Debug().
				Str("department", d.Name).
				Str("stored", existing.name).
				Msg("Department already stored under another spelling")
		}
		w.departments[key] = existing.id
	}
	return nil
}

func (w *writer) writeCommunes(communes []canonical.Commune) error {
	for _, c := range communes {
		key := c.Key.String()
		departmentID, ok := w.departments[c.DepartmentRef.String()]
		if !ok {
			w.drop(types.EntityCommune, report.ReasonMissingReference, fmt.Sprintf("%s: department %s not stored", key, c.DepartmentRef))
			continue
		}

		var (
			id            int64
			nameRegional  string
			heritageLabel bool
		)
		var err error
		if c.InseeCode != "" {
			err = w.tx.QueryRowContext(w.ctx,
				`SELECT id, name_regional, heritage_label FROM commune WHERE insee_code = ?`,
				c.InseeCode).Scan(&id, &nameRegional, &heritageLabel)
		} else {
			err = w.tx.QueryRowContext(w.ctx,
				`SELECT id, name_regional, heritage_label FROM commune
				 WHERE name = ? AND department_id = ? AND insee_code IS NULL`,
				c.Name, departmentID).Scan(&id, &nameRegional, &heritageLabel)
		}

		switch {
		case stderrors.Is(err, sql.ErrNoRows):
			res, err := w.tx.ExecContext(w.ctx,
				`INSERT INTO commune (name, name_regional, insee_code, heritage_label, department_id)
				 VALUES (?, ?, ?, ?, ?)`,
				c.Name, c.NameRegional, nullString(c.InseeCode), c.HeritageLabel, departmentID)
			if err != nil {
				return w.fail(TableCommune, key, err)
			}
			if id, err = res.LastInsertId(); err != nil {
				return w.fail(TableCommune, key, err)
			}
			w.result.Inserted[TableCommune]++

		case err != nil:
			return errors.WrapResource("query", TableCommune, key, err)

		case (nameRegional == "" && c.NameRegional != "") || (c.HeritageLabel && !heritageLabel):
			if _, err := w.tx.ExecContext(w.ctx,
				`UPDATE commune
				 SET name_regional = CASE WHEN name_regional = '' THEN ? ELSE name_regional END,
				     heritage_label = MAX(heritage_label, ?)
				 WHERE id = ?`,
				c.NameRegional, c.HeritageLabel, id); err != nil {
				return w.fail(TableCommune, key, err)
			}
			w.result.Updated[TableCommune]++

		default:
			w.result.Unchanged[TableCommune]++
		}
		w.communes[key] = id
	}
	return nil
}

func (w *writer) writeSites(sites []canonical.Site) error {
	for i := range sites {
		s := &sites[i]
		key := s.Key.String()
		communeID, ok := w.communes[s.CommuneRef.String()]
		if !ok {
			w.drop(types.EntitySite, report.ReasonMissingReference, fmt.Sprintf("%s: commune %s not stored", key, s.CommuneRef))
			continue
		}

		var id int64
		err := w.tx.QueryRowContext(w.ctx, `SELECT id FROM site WHERE identity = ?`, key).Scan(&id)
		switch {
		case err == nil:
			w.result.Unchanged[TableSite]++
			continue
		case !stderrors.Is(err, sql.ErrNoRows):
			return errors.WrapResource("query", TableSite, key, err)
		}

		provider, err := w.provider(s.ProviderRef)
		if err != nil {
			return err
		}

		var lat, lon any
		if v, ok := s.Latitude(); ok {
			lat = v
		}
		if v, ok := s.Longitude(); ok {
			lon = v
		}

		if _, err := w.tx.ExecContext(w.ctx,
			`INSERT INTO site (identity, name, is_activity, is_place, description, latitude, longitude,
			                   commune_id, provider_id, anonymized, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			key, s.Name, s.IsActivity, s.IsPlace, s.Description, lat, lon,
			communeID, provider, s.Anonymized,
			conflict.FormatTime(s.CreatedAt), conflict.FormatTime(s.UpdatedAt)); err != nil {
			return w.fail(TableSite, key, err)
		}
		w.result.Inserted[TableSite]++
	}
	return nil
}

// provider returns the owner id to store, or nil when the reference is
// absent or points at no stored provider.
func (w *writer) provider(ref *int64) (any, error) {
	if ref == nil {
		return nil, nil
	}
	var id int64
	err := w.tx.QueryRowContext(w.ctx, `SELECT id FROM provider WHERE id = ?`, *ref).Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case stderrors.Is(err, sql.ErrNoRows):
		w.logger.Debug().Int64("provider_id", *ref).Msg("Unknown provider, owner left empty")
		return nil, nil
	default:
		return nil, errors.WrapResource("query", TableProvider, fmt.Sprint(*ref), err)
	}
}

func (w *writer) drop(entity types.EntityType, reason report.Reason, detail string) {
	w.result.Drops = append(w.result.Drops, report.Drop{
		Stage:  report.StageLoad,
		Entity: entity,
		Reason: reason,
		Detail: detail,
	})
	w.logger.Debug().
		Str("entity", entity.String()).
		Str("reason", string(reason)).
		Str("detail", detail).
		Msg("Row dropped")
}

// fail maps driver constraint failures to LoadIntegrityError.
func (w *writer) fail(table, key string, err error) error {
	if dbopen.IsConstraint(err) {
		return errors.NewLoadIntegrityError(table, key, err)
	}
	return errors.WrapResource("insert", table, key, err)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
