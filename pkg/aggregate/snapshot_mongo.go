package aggregate

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harborgrid-justin/cadcore/common/mmongo"
	"github.com/harborgrid-justin/cadcore/pkg/cadmodel"
)

// snapshotDocument mirrors cadmodel.Snapshot with bson tags; kept
// separate so the wire model can evolve independently of the domain type.
type snapshotDocument struct {
	AggregateID   string            `bson:"aggregate_id"`
	AggregateType string            `bson:"aggregate_type"`
	Version       uint64            `bson:"version"`
	Data          []byte            `bson:"data"`
	Timestamp     int64             `bson:"timestamp"`
	Metadata      map[string]string `bson:"metadata,omitempty"`
}

func toDocument(s cadmodel.Snapshot) snapshotDocument {
	return snapshotDocument{
		AggregateID:   s.AggregateID,
		AggregateType: s.AggregateType,
		Version:       s.Version,
		Data:          s.Data,
		Timestamp:     s.Timestamp.UnixNano(),
		Metadata:      s.Metadata,
	}
}

func (d snapshotDocument) toSnapshot() cadmodel.Snapshot {
	return cadmodel.Snapshot{
		AggregateID:   d.AggregateID,
		AggregateType: d.AggregateType,
		Version:       d.Version,
		Data:          d.Data,
		Timestamp:     time.Unix(0, d.Timestamp).UTC(),
		Metadata:      d.Metadata,
	}
}

// MongoSnapshotStore persists aggregate snapshots in a MongoDB
// collection, one document per (aggregate_id, version).
type MongoSnapshotStore struct {
	connection *mmongo.MongoConnection
	collection string
}

// NewMongoSnapshotStore returns a store writing to the given collection
// name in the connection's configured database.
func NewMongoSnapshotStore(mc *mmongo.MongoConnection, collection string) *MongoSnapshotStore {
	return &MongoSnapshotStore{connection: mc, collection: collection}
}

func (s *MongoSnapshotStore) coll(ctx context.Context) (*mongo.Collection, error) {
	client, err := s.connection.GetDB(ctx)
	if err != nil {
		return nil, err
	}

	return client.Database(s.connection.Database).Collection(s.collection), nil
}

func (s *MongoSnapshotStore) Save(ctx context.Context, snapshot cadmodel.Snapshot) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}

	_, err = coll.ReplaceOne(ctx,
		bson.M{"aggregate_id": snapshot.AggregateID, "version": snapshot.Version},
		toDocument(snapshot),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot for %s: %w", snapshot.AggregateID, err)
	}

	return nil
}

func (s *MongoSnapshotStore) Load(ctx context.Context, aggregateID string) (cadmodel.Snapshot, bool, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return cadmodel.Snapshot{}, false, err
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})

	var doc snapshotDocument
	if err := coll.FindOne(ctx, bson.M{"aggregate_id": aggregateID}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return cadmodel.Snapshot{}, false, nil
		}

		return cadmodel.Snapshot{}, false, fmt.Errorf("loading latest snapshot for %s: %w", aggregateID, err)
	}

	return doc.toSnapshot(), true, nil
}

func (s *MongoSnapshotStore) LoadAtVersion(ctx context.Context, aggregateID string, version uint64) (cadmodel.Snapshot, bool, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return cadmodel.Snapshot{}, false, err
	}

	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	filter := bson.M{"aggregate_id": aggregateID, "version": bson.M{"$lte": version}}

	var doc snapshotDocument
	if err := coll.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return cadmodel.Snapshot{}, false, nil
		}

		return cadmodel.Snapshot{}, false, fmt.Errorf("loading snapshot at version for %s: %w", aggregateID, err)
	}

	return doc.toSnapshot(), true, nil
}

func (s *MongoSnapshotStore) Delete(ctx context.Context, aggregateID string) error {
	coll, err := s.coll(ctx)
	if err != nil {
		return err
	}

	if _, err := coll.DeleteMany(ctx, bson.M{"aggregate_id": aggregateID}); err != nil {
		return fmt.Errorf("deleting snapshots for %s: %w", aggregateID, err)
	}

	return nil
}

func (s *MongoSnapshotStore) Versions(ctx context.Context, aggregateID string) ([]uint64, error) {
	coll, err := s.coll(ctx)
	if err != nil {
		return nil, err
	}

	cur, err := coll.Find(ctx, bson.M{"aggregate_id": aggregateID}, options.Find().SetProjection(bson.M{"version": 1}))
	if err != nil {
		return nil, fmt.Errorf("listing snapshot versions for %s: %w", aggregateID, err)
	}
	defer cur.Close(ctx)

	var versions []uint64

	for cur.Next(ctx) {
		var doc struct {
			Version uint64 `bson:"version"`
		}

		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding snapshot version for %s: %w", aggregateID, err)
		}

		versions = append(versions, doc.Version)
	}

	return versions, cur.Err()
}
