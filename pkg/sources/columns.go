package sources

import (
	"strings"

	"github.com/agentstation/lumea/pkg/types"
)

// Canonical column vocabulary shared by every normalized source table.
const (
	ColDepartmentName         = "department_name"
	ColDepartmentNameRegional = "department_name_regional"
	ColDepartmentCode         = "department_code"
	ColCommuneName            = "commune_name"
	ColCommuneNameRegional    = "commune_name_regional"
	ColCommuneCombined        = "commune_combined" // "insee#name"
	ColInseeCode              = "insee_code"
	ColHeritageLabel          = "heritage_label"
	ColSiteName               = "site_name"
	ColSiteType               = "site_type"
	ColIsActivity             = "is_activity"
	ColIsPlace                = "is_place"
	ColDescription            = "description"
	ColLatitude               = "latitude"
	ColLongitude              = "longitude"
	ColPointGeo               = "point_geo" // "lat,lon"
	ColSportCategory          = "sport_category"
	ColCultureCategory        = "culture_category"
	ColProviderID             = "provider_id"
	ColCreatedAt              = "created_at"
	ColUpdatedAt              = "updated_at"
)

// commonAliases apply to every source.
var commonAliases = map[string]string{
	"nom_department":        ColDepartmentName,
	"nom_departement":       ColDepartmentName,
	"nom_department_breton": ColDepartmentNameRegional,
	"code_department":       ColDepartmentCode,
	"code_departement":      ColDepartmentCode,
	"nom_commune":           ColCommuneName,
	"nom_commune_breton":    ColCommuneNameRegional,
	"code_insee":            ColInseeCode,
	"label_cite_caractere":  ColHeritageLabel,
	"nom_site":              ColSiteName,
	"type_site":             ColSiteType,
	"est_activite":          ColIsActivity,
	"est_lieu":              ColIsPlace,
	"prestataire_id":        ColProviderID,
}

// sourceAliases hold the source-specific spellings.
var sourceAliases = map[types.SourceID]map[string]string{
	types.CatalogAPI: {
		"nom": ColCommuneName,
	},
	types.DocumentStore: {
		"code_postal_et_nom_commune": ColCommuneCombined,
	},
	types.FlatFile: {
		"updated":                           ColUpdatedAt,
		"syndicobjectname":                  ColSiteName,
		"gmaplatitude":                      ColLatitude,
		"gmaplongitude":                     ColLongitude,
		"detailidentadresseinsee":           ColInseeCode,
		"detailidentadressecommune":         ColCommuneName,
		"detailidentcategorieactsport":      ColSportCategory,
		"detailidentcategorieactcult":       ColCultureCategory,
		"detailidentdescriptioncommerciale": ColDescription,
	},
}

// expectedColumns lists, per source, the canonical columns of which at least
// one must be present for the table to be usable.
var expectedColumns = map[types.SourceID][]string{
	types.CatalogAPI:        {ColInseeCode, ColCommuneName},
	types.DocumentStore:     {ColSiteName},
	types.RelationalStaging: {ColInseeCode, ColCommuneName, ColDepartmentName},
	types.FlatFile:          {ColSiteName},
	types.ScrapedPage:       {ColDepartmentName, ColCommuneName},
}

// Canonical resolves a raw column name to the canonical vocabulary for the
// given source. Unknown names are returned lower-cased and trimmed.
func Canonical(source types.SourceID, column string) string {
	name := strings.ToLower(strings.TrimSpace(column))
	if aliases, ok := sourceAliases[source]; ok {
		if canonical, ok := aliases[name]; ok {
			return canonical
		}
	}
	if canonical, ok := commonAliases[name]; ok {
		return canonical
	}
	return name
}

// ExpectedColumns returns the columns of which a table from source must
// carry at least one.
func ExpectedColumns(source types.SourceID) []string {
	if cols, ok := expectedColumns[source]; ok {
		return append([]string(nil), cols...)
	}
	return []string{ColDepartmentName, ColCommuneName, ColInseeCode, ColSiteName}
}
