package types

// EntityType identifies a canonical entity produced by reconciliation.
type EntityType string

const (
	// EntityDepartment is an administrative department.
	EntityDepartment EntityType = "department"

	// EntityCommune is a commune belonging to one department.
	EntityCommune EntityType = "commune"

	// EntitySite is a tourist site or activity located in one commune.
	EntitySite EntityType = "site"
)

// String returns the string representation of an entity type.
func (e EntityType) String() string {
	return string(e)
}

// EntityTypes returns the entity types in foreign-key dependency order.
func EntityTypes() []EntityType {
	return []EntityType{EntityDepartment, EntityCommune, EntitySite}
}
