package extract

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/agentstation/lumea/pkg/constants"
	"github.com/agentstation/lumea/pkg/errors"
	"github.com/agentstation/lumea/pkg/logging"
	"github.com/agentstation/lumea/pkg/sources"
	"github.com/agentstation/lumea/pkg/types"
)

// documentColumns are the document fields kept, in snapshot order.
var documentColumns = []string{
	"nom_site",
	"code_postal_et_nom_commune",
	"type_site",
	"latitude",
	"longitude",
	"point_geo",
	"description",
	"est_activite",
	"est_lieu",
	"prestataire_id",
}

// DocumentStore extracts tourist sites from a MongoDB collection.
type DocumentStore struct {
	uri        string
	database   string
	collection string
}

// NewDocumentStore creates the document store extractor.
func NewDocumentStore(uri, database, collection string) *DocumentStore {
	return &DocumentStore{uri: uri, database: database, collection: collection}
}

// Source implements Extractor.
func (d *DocumentStore) Source() types.SourceID { return types.DocumentStore }

// Extract implements Extractor.
func (d *DocumentStore) Extract(ctx context.Context) (*sources.Table, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.DocumentStoreTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(d.uri))
	if err != nil {
		return nil, errors.WrapResource("connect", "document store", d.database, err)
	}
	defer func() { _ = client.Disconnect(context.WithoutCancel(ctx)) }()

	cursor, err := client.Database(d.database).Collection(d.collection).Find(ctx, bson.D{})
	if err != nil {
		return nil, errors.WrapResource("query", "document store", d.collection, err)
	}

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.WrapResource("fetch", "document store", d.collection, err)
	}

	table := DocumentsTable(docs)
	logging.FromContext(ctx).Debug().
		Str("database", d.database).
		Str("collection", d.collection).
		Int("rows", table.Len()).
		Msg("Documents fetched")
	return table, nil
}

// DocumentsTable flattens site documents into a table. Unknown fields and
// the document id are ignored.
func DocumentsTable(docs []bson.M) *sources.Table {
	table := sources.NewTable(types.DocumentStore, documentColumns...)
	values := make([]string, len(documentColumns))
	for _, doc := range docs {
		for i, col := range documentColumns {
			if col == "point_geo" {
				values[i] = pointGeo(doc[col])
				continue
			}
			values[i] = bsonString(doc[col])
		}
		table.AppendValues(values...)
	}
	return table
}

func bsonString(v any) string {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format("2006-01-02T15:04:05Z07:00")
	case primitive.Decimal128:
		return x.String()
	default:
		return stringify(v)
	}
}

// pointGeo renders a location as "lat,lon". Documents carry either the
// string form, a [lat, lon] pair or a GeoJSON point.
func pointGeo(v any) string {
	switch x := v.(type) {
	case string:
		return stringify(x)
	case bson.A:
		if len(x) == 2 {
			return fmt.Sprintf("%s,%s", stringify(x[0]), stringify(x[1]))
		}
	case bson.M:
		if coords, ok := x["coordinates"].(bson.A); ok && len(coords) == 2 {
			// GeoJSON orders longitude first
			return fmt.Sprintf("%s,%s", stringify(coords[1]), stringify(coords[0]))
		}
	case bson.D:
		return pointGeo(x.Map())
	}
	return ""
}
