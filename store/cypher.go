package store

import (
	"fmt"

	"github.com/Financial-Times/mmif-rw-neo4j/mmif"
	"github.com/Financial-Times/neo-utils-go/neoutils"
	"github.com/jmcvetta/neoism"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Service persists whole MMIF files per piece of content and pipeline.
type Service interface {
	Write(contentUUID string, pipeline string, tid string, doc *mmif.Mmif) error
	Read(contentUUID string, tid string, pipeline string) (doc *mmif.Mmif, found bool, err error)
	Delete(contentUUID string, tid string, pipeline string) (found bool, err error)
	Count(pipeline string) (int, error)
	Check() error
	Initialise() error
}

// ValidationError is returned when a write is refused before reaching Neo4j.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string {
	return v.Msg
}

type service struct {
	conn neoutils.NeoConnection
}

// NewCypherMmifService stores MMIF files as a graph of file, view,
// annotation and document nodes hanging off the content's Thing node. The
// file node also keeps the serialized MMIF so it can be read back whole.
func NewCypherMmifService(cypherRunner neoutils.NeoConnection) Service {
	return service{cypherRunner}
}

func (s service) Initialise() error {
	err := s.conn.EnsureConstraints(map[string]string{
		"Thing":          "uuid",
		"MmifFile":       "key",
		"MmifView":       "key",
		"MmifAnnotation": "key",
	})
	if err != nil {
		return errors.Wrap(err, "could not ensure constraints")
	}
	return s.conn.EnsureIndexes(map[string]string{
		"MmifFile":       "pipeline",
		"MmifAnnotation": "type",
	})
}

func fileKey(contentUUID, pipeline string) string {
	return contentUUID + "/" + pipeline
}

func (s service) Read(contentUUID string, tid string, pipeline string) (*mmif.Mmif, bool, error) {
	results := []struct {
		Body string `json:"body"`
	}{}

	query := &neoism.CypherQuery{
		Statement: `
			MATCH (:Thing{uuid:{contentUUID}})-[:HAS_MMIF]->(f:MmifFile{pipeline:{pipeline}})
			RETURN f.body as body`,
		Parameters: neoism.Props{"contentUUID": contentUUID, "pipeline": pipeline},
		Result:     &results,
	}
	err := s.conn.CypherBatch([]*neoism.CypherQuery{query})
	if err != nil {
		log.WithField("transaction_id", tid).WithError(err).Errorf("Error looking up uuid %s with query %s from neoism", contentUUID, query.Statement)
		return nil, false, errors.Errorf("Error accessing MMIF datastore for uuid: %s", contentUUID)
	}
	log.WithField("transaction_id", tid).Debugf("CypherResult Read MMIF for uuid: %s found %d files", contentUUID, len(results))
	if len(results) == 0 {
		return nil, false, nil
	}
	doc, err := mmif.Parse(results[0].Body, mmif.WithValidation(false))
	if err != nil {
		return nil, true, errors.Wrapf(err, "stored MMIF for uuid %s is unreadable", contentUUID)
	}
	return doc, true, nil
}

func (s service) Delete(contentUUID string, tid string, pipeline string) (bool, error) {
	query := deleteFileQuery(contentUUID, pipeline)
	query.IncludeStats = true

	err := s.conn.CypherBatch([]*neoism.CypherQuery{query})
	if err != nil {
		return false, err
	}
	stats, err := query.Stats()
	if err != nil {
		return false, err
	}
	log.WithField("transaction_id", tid).Debugf("Deleted MMIF %s for uuid %s: %v", pipeline, contentUUID, stats.ContainsUpdates)
	return stats.ContainsUpdates, nil
}

// Write replaces the MMIF file stored for the content and pipeline.
func (s service) Write(contentUUID string, pipeline string, tid string, doc *mmif.Mmif) error {
	if contentUUID == "" {
		return ValidationError{"Content uuid is required"}
	}
	if doc == nil {
		return ValidationError{fmt.Sprintf("No MMIF supplied for content %s", contentUUID)}
	}

	queries, err := writeQueries(contentUUID, pipeline, doc)
	if err != nil {
		return errors.Wrap(err, "create MMIF query failed")
	}
	log.WithField("transaction_id", tid).Debugf("Writing MMIF %s for content uuid %s in %d statements", pipeline, contentUUID, len(queries))
	return s.conn.CypherBatch(queries)
}

func (s service) Count(pipeline string) (int, error) {
	results := []struct {
		Count int `json:"c"`
	}{}

	query := &neoism.CypherQuery{
		Statement:  `MATCH (f:MmifFile{pipeline:{pipeline}}) RETURN count(f) as c`,
		Parameters: neoism.Props{"pipeline": pipeline},
		Result:     &results,
	}
	if err := s.conn.CypherBatch([]*neoism.CypherQuery{query}); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Count, nil
}

func (s service) Check() error {
	return neoutils.Check(s.conn)
}

func deleteFileQuery(contentUUID, pipeline string) *neoism.CypherQuery {
	return &neoism.CypherQuery{
		Statement: `
			MATCH (f:MmifFile{key:{key}})
			OPTIONAL MATCH (f)-[:HAS_VIEW|HAS_DOCUMENT]->(child)
			OPTIONAL MATCH (child)-[:HAS_ANNOTATION]->(a)
			DETACH DELETE a, child, f`,
		Parameters: neoism.Props{"key": fileKey(contentUUID, pipeline)},
	}
}

func writeQueries(contentUUID, pipeline string, doc *mmif.Mmif) ([]*neoism.CypherQuery, error) {
	body, err := doc.Serialize(false)
	if err != nil {
		return nil, err
	}
	key := fileKey(contentUUID, pipeline)
	queries := []*neoism.CypherQuery{
		deleteFileQuery(contentUUID, pipeline),
		{
			Statement: `
				MERGE (c:Thing{uuid:{contentUUID}})
				CREATE (c)-[:HAS_MMIF]->(f:MmifFile{key:{key}})
				SET f={props}`,
			Parameters: neoism.Props{
				"contentUUID": contentUUID,
				"key":         key,
				"props": neoism.Props{
					"key":      key,
					"uuid":     contentUUID,
					"pipeline": pipeline,
					"version":  doc.Metadata().Version(),
					"body":     body,
				},
			},
		},
	}

	for _, d := range doc.Documents().Items() {
		queries = append(queries, createDocumentQuery(key, d))
	}
	for _, v := range doc.Views().Items() {
		q, err := createViewQuery(key, v)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, nil
}

func createDocumentQuery(fileKey string, d *mmif.Document) *neoism.CypherQuery {
	return &neoism.CypherQuery{
		Statement: `
			MATCH (f:MmifFile{key:{fileKey}})
			CREATE (f)-[:HAS_DOCUMENT]->(d:MmifDocument)
			SET d={props}`,
		Parameters: neoism.Props{
			"fileKey": fileKey,
			"props": neoism.Props{
				"id":       d.ID(),
				"type":     d.AtType(),
				"mime":     d.Mime(),
				"location": d.Location(),
			},
		},
	}
}

func createViewQuery(fileKey string, v *mmif.View) (*neoism.CypherQuery, error) {
	viewKey := fileKey + ":" + v.ID()
	anns := make([]neoism.Props, 0, v.Annotations().Len())
	for _, a := range v.Annotations().Items() {
		props, err := a.Serialize(false)
		if err != nil {
			return nil, err
		}
		anns = append(anns, neoism.Props{
			"key":        viewKey + ":" + a.ID(),
			"id":         a.ID(),
			"type":       a.AtType(),
			"annotation": props,
		})
	}

	md := v.Metadata()
	viewProps := neoism.Props{
		"key":      viewKey,
		"id":       v.ID(),
		"app":      md.App(),
		"document": md.Document(),
		"contains": md.Contains().Keys(),
	}
	if !md.Timestamp().IsZero() {
		viewProps["timestamp"] = md.Timestamp().Unix()
	}

	return &neoism.CypherQuery{
		Statement: `
			MATCH (f:MmifFile{key:{fileKey}})
			CREATE (f)-[:HAS_VIEW]->(v:MmifView)
			SET v={viewProps}
			WITH v
			UNWIND {annotations} AS ann
			CREATE (v)-[:HAS_ANNOTATION]->(a:MmifAnnotation)
			SET a=ann`,
		Parameters: neoism.Props{
			"fileKey":     fileKey,
			"viewProps":   viewProps,
			"annotations": anns,
		},
	}, nil
}
