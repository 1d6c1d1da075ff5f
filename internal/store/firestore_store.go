package store

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/flakysignal/detective/internal/models"
)

const (
	firestoreFailuresCollection = "test_failures"
	firestoreClustersCollection = "flaky_clusters"
)

// FirestoreStore is the cloud DataStore binding (store.backend ==
// "firestore"), keyed by GOOGLE_APPLICATION_CREDENTIALS for service-account
// auth and GOOGLE_CLOUD_PROJECT_ID for the target project.
type FirestoreStore struct {
	client *firestore.Client
}

// firestoreFailureDoc is a TestFailure's on-disk shape: the record is kept
// as an encoding/json blob in Data, with Timestamp duplicated as a native
// Firestore field so FetchFailures can range-query on it. Firestore's own
// struct reflection (the alternative — storing TestFailure's fields
// directly as document fields via `firestore` tags) only sees exported
// fields and would silently drop FailureMetadata's hasX flags on every
// read, the same loss encoding/json has without a custom Marshaler;
// routing through Data sidesteps that by always going through
// FailureMetadata's own MarshalJSON/UnmarshalJSON.
type firestoreFailureDoc struct {
	Timestamp time.Time `firestore:"timestamp"`
	Data      string    `firestore:"data"`
}

// firestoreClusterDoc is a FailureCluster's on-disk shape, analogous to
// firestoreFailureDoc. Rank restores the order SaveClusters was given,
// which Firestore's document model otherwise has no notion of.
type firestoreClusterDoc struct {
	Rank int    `firestore:"rank"`
	Data string `firestore:"data"`
}

// NewFirestoreStore dials Firestore for the given project.
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) FetchFailures(ctx context.Context, days int) ([]models.TestFailure, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	iter := s.client.Collection(firestoreFailuresCollection).
		Where("timestamp", ">=", cutoff).
		Documents(ctx)
	defer iter.Stop()

	var out []models.TestFailure
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var fd firestoreFailureDoc
		if err := doc.DataTo(&fd); err != nil {
			return nil, err
		}
		var f models.TestFailure
		if err := json.Unmarshal([]byte(fd.Data), &f); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (s *FirestoreStore) SaveClusters(ctx context.Context, clusters []models.FailureCluster) error {
	existing := s.client.Collection(firestoreClustersCollection).Documents(ctx)
	defer existing.Stop()

	batch := s.client.Batch()
	batchSize := 0
	for {
		doc, err := existing.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		batch.Delete(doc.Ref)
		batchSize++
	}
	if batchSize > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			return err
		}
	}

	if len(clusters) == 0 {
		return nil
	}

	writeBatch := s.client.Batch()
	for i, c := range clusters {
		blob, err := json.Marshal(c)
		if err != nil {
			return err
		}
		ref := s.client.Collection(firestoreClustersCollection).Doc(c.ID)
		writeBatch.Set(ref, firestoreClusterDoc{Rank: i, Data: string(blob)})
	}
	_, err := writeBatch.Commit(ctx)
	return err
}

func (s *FirestoreStore) FetchClusters(ctx context.Context, limit int) ([]models.FailureCluster, error) {
	query := s.client.Collection(firestoreClustersCollection).OrderBy("rank", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []models.FailureCluster
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var cd firestoreClusterDoc
		if err := doc.DataTo(&cd); err != nil {
			return nil, err
		}
		var c models.FailureCluster
		if err := json.Unmarshal([]byte(cd.Data), &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
