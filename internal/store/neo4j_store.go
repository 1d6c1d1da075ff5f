package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/flakysignal/detective/internal/models"
)

// Neo4jStore is the graph-linked DataStore binding (store.backend ==
// "neo4j"). Clusters and their member failures are stored as nodes joined
// by MEMBER_OF edges, so reporting flows can walk the graph directly
// (which clusters a given failure belongs to, which files concentrate the
// most clusters) beyond what the DataStore interface itself exposes. Each
// node also carries its full JSON-encoded record in a data property, so
// FetchFailures/FetchClusters can reconstruct exact values without hand
// mapping every struct field to a Cypher property.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jStore dials Neo4j and verifies connectivity before returning.
func NewNeo4jStore(ctx context.Context, uri, username, password string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, err
	}
	return &Neo4jStore{driver: driver}, nil
}

func (s *Neo4jStore) FetchFailures(ctx context.Context, days int) ([]models.TestFailure, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	raw, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			`MATCH (f:TestFailure) WHERE f.timestamp >= $cutoff RETURN f.data AS data`,
			map[string]any{"cutoff": cutoff.Format(time.RFC3339)})
		if err != nil {
			return nil, err
		}

		var out []models.TestFailure
		for res.Next(ctx) {
			data, _ := res.Record().Get("data")
			var f models.TestFailure
			if err := json.Unmarshal([]byte(data.(string)), &f); err != nil {
				return nil, err
			}
			out = append(out, f)
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return raw.([]models.TestFailure), nil
}

func (s *Neo4jStore) SaveClusters(ctx context.Context, clusters []models.FailureCluster) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (c:FailureCluster) DETACH DELETE c`, nil); err != nil {
			return nil, err
		}

		for rank, c := range clusters {
			blob, err := json.Marshal(c)
			if err != nil {
				return nil, err
			}
			if _, err := tx.Run(ctx, `
				MERGE (c:FailureCluster {id: $id})
				SET c.rank = $rank, c.failureCount = $failureCount, c.data = $data
			`, map[string]any{
				"id": c.ID, "rank": rank, "failureCount": c.Metadata.FailureCount, "data": string(blob),
			}); err != nil {
				return nil, err
			}

			for _, f := range c.Failures {
				fblob, err := json.Marshal(f)
				if err != nil {
					return nil, err
				}
				if _, err := tx.Run(ctx, `
					MERGE (f:TestFailure {id: $id})
					SET f.timestamp = $timestamp, f.data = $data
					WITH f
					MATCH (c:FailureCluster {id: $clusterID})
					MERGE (f)-[:MEMBER_OF]->(c)
				`, map[string]any{
					"id": f.ID, "timestamp": f.Timestamp.Format(time.RFC3339), "data": string(fblob), "clusterID": c.ID,
				}); err != nil {
					return nil, err
				}
			}
		}
		return nil, nil
	})
	return err
}

func (s *Neo4jStore) FetchClusters(ctx context.Context, limit int) ([]models.FailureCluster, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	cypher := `MATCH (c:FailureCluster) RETURN c.data AS data ORDER BY c.rank ASC`
	if limit > 0 {
		cypher += fmt.Sprintf(" LIMIT %d", limit)
	}

	raw, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, nil)
		if err != nil {
			return nil, err
		}

		var out []models.FailureCluster
		for res.Next(ctx) {
			data, _ := res.Record().Get("data")
			var c models.FailureCluster
			if err := json.Unmarshal([]byte(data.(string)), &c); err != nil {
				return nil, err
			}
			out = append(out, c)
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return raw.([]models.FailureCluster), nil
}

func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}
