package loader

import (
	"context"
	"database/sql"

	"github.com/agentstation/lumea/internal/dbopen"
	"github.com/agentstation/lumea/pkg/errors"
)

// Destination tables in write order.
const (
	TableDepartment = "department"
	TableCommune    = "commune"
	TableSite       = "site"
	TableProvider   = "provider"
	TableRole       = "role"
)

// Tables lists every destination table in foreign-key-safe order.
func Tables() []string {
	return []string{TableRole, TableProvider, TableDepartment, TableCommune, TableSite}
}

// loadOrder is the dependent table group written by Load.
var loadOrder = []string{TableDepartment, TableCommune, TableSite}

const schema = `
CREATE TABLE IF NOT EXISTS role (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS provider (
	id       INTEGER PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	role_id  INTEGER REFERENCES role(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS department (
	id            INTEGER PRIMARY KEY,
	name          TEXT NOT NULL UNIQUE,
	name_regional TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS commune (
	id             INTEGER PRIMARY KEY,
	name           TEXT NOT NULL,
	name_regional  TEXT NOT NULL DEFAULT '',
	insee_code     TEXT UNIQUE,
	heritage_label INTEGER NOT NULL DEFAULT 0,
	department_id  INTEGER NOT NULL REFERENCES department(id) ON DELETE RESTRICT
);

CREATE UNIQUE INDEX IF NOT EXISTS commune_name_department
	ON commune (name, department_id) WHERE insee_code IS NULL;

CREATE TABLE IF NOT EXISTS site (
	id          INTEGER PRIMARY KEY,
	identity    TEXT NOT NULL,
	name        TEXT NOT NULL,
	is_activity INTEGER NOT NULL DEFAULT 0,
	is_place    INTEGER NOT NULL DEFAULT 1,
	description TEXT NOT NULL DEFAULT '',
	latitude    REAL,
	longitude   REAL,
	commune_id  INTEGER NOT NULL REFERENCES commune(id) ON DELETE RESTRICT,
	provider_id INTEGER REFERENCES provider(id) ON DELETE SET NULL,
	anonymized  INTEGER NOT NULL DEFAULT 0,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL,
	CHECK (is_activity = 1 OR is_place = 1)
);

CREATE UNIQUE INDEX IF NOT EXISTS site_identity ON site (identity);
CREATE INDEX IF NOT EXISTS site_commune ON site (commune_id);
`

// Roles seeded into the role table.
var Roles = []string{"admin", "visiteur", "prestataire"}

// Department the store always carries, whatever the sources say.
const (
	seedDepartment         = "Côtes-d'Armor"
	seedDepartmentRegional = "Aodoù-an-Arvor"
)

// EnsureSchema creates the destination tables when they do not exist and
// seeds the fixed rows. It is safe to call on every run.
func (l *Loader) EnsureSchema(ctx context.Context) error {
	err := dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, schema); err != nil {
			return errors.WrapResource("create", "schema", "", err)
		}
		for _, role := range Roles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO role (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, role); err != nil {
				return errors.WrapResource("insert", TableRole, role, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO department (name, name_regional) VALUES (?, ?)
			 ON CONFLICT(name) DO UPDATE SET name_regional = excluded.name_regional
			 WHERE department.name_regional = ''`,
			seedDepartment, seedDepartmentRegional); err != nil {
			return errors.WrapResource("insert", TableDepartment, seedDepartment, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.logger.Debug().Strs("roles", Roles).Msg("Schema ready")
	return nil
}
