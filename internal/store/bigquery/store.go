package bigquery

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/hypejunction/payments/internal/entity"
)

const (
	defaultDatasetID   = "payments"
	entitiesTable      = "entities"
	relationshipsTable = "entity_relationships"
)

// metaNamePattern restricts metadata field names used in JSON paths to
// identifier characters, since the path cannot be parameterized.
var metaNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func projectID() string {
	return os.Getenv("PAYMENTS_BQ_PROJECT")
}

func datasetID() string {
	if ds := os.Getenv("PAYMENTS_BQ_DATASET"); ds != "" {
		return ds
	}
	return defaultDatasetID
}

// Store is the BigQuery-backed implementation of the entity and
// relationship store boundaries. It holds a shared BigQuery client to
// avoid creating a new connection for each operation.
type Store struct {
	client  *bigquery.Client
	project string
	dataset string
}

// NewStore creates a Store with its own client, configured from
// PAYMENTS_BQ_PROJECT and PAYMENTS_BQ_DATASET.
func NewStore(ctx context.Context) (*Store, error) {
	project := projectID()
	if project == "" {
		return nil, fmt.Errorf("NewStore: PAYMENTS_BQ_PROJECT is not set")
	}
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating client: %w", err)
	}
	return NewStoreWithClient(client, project, datasetID()), nil
}

// NewStoreWithClient creates a Store around an existing client.
func NewStoreWithClient(client *bigquery.Client, project, dataset string) *Store {
	return &Store{client: client, project: project, dataset: dataset}
}

// Close closes the underlying client.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", s.project, s.dataset, name)
}

// prefixColumns qualifies each column in a comma-separated list with a
// table alias for use in joins.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

const entityColumns = `
		guid,
		type,
		subtype,
		owner_guid,
		name,
		description,
		metadata,
		time_created,
		created_date`

// Load implements entity.Store. When the same guid was saved more than
// once, the newest row wins.
func (s *Store) Load(ctx context.Context, guid string) (*entity.Entity, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE guid = @guid
		ORDER BY time_created DESC
		LIMIT 1
	`, entityColumns, s.table(entitiesTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "guid", Value: guid},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Load: reading query: %w", err)
	}

	var row EntityRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("Load: iterating: %w", err)
	}
	return entityFromRow(&row)
}

// Save implements entity.Store. It assigns a guid and creation time on
// first save and upserts the row by guid.
func (s *Store) Save(ctx context.Context, e *entity.Entity) error {
	if e == nil {
		return fmt.Errorf("Save: entity is required")
	}
	if e.GUID == "" {
		e.GUID = uuid.NewString()
	}
	if e.TimeCreated.IsZero() {
		e.TimeCreated = time.Now().UTC()
	}

	row, err := rowFromEntity(e)
	if err != nil {
		return fmt.Errorf("Save: %w", err)
	}

	query := fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @guid AS guid) src
		ON t.guid = src.guid
		WHEN MATCHED THEN UPDATE SET
			type = @type,
			subtype = @subtype,
			owner_guid = @owner_guid,
			name = @name,
			description = @description,
			metadata = SAFE.PARSE_JSON(@metadata)
		WHEN NOT MATCHED THEN INSERT (%s)
		VALUES (
			@guid,
			@type,
			@subtype,
			@owner_guid,
			@name,
			@description,
			SAFE.PARSE_JSON(@metadata),
			@time_created,
			@created_date
		)
	`, s.table(entitiesTable), entityColumns)

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "guid", Value: row.GUID},
		{Name: "type", Value: row.Type},
		{Name: "subtype", Value: row.Subtype.StringVal},
		{Name: "owner_guid", Value: row.OwnerGUID.StringVal},
		{Name: "name", Value: row.Name.StringVal},
		{Name: "description", Value: row.Description.StringVal},
		{Name: "metadata", Value: row.Metadata.JSONVal},
		{Name: "time_created", Value: row.TimeCreated},
		{Name: "created_date", Value: row.CreatedDate},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("Save: running merge: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("Save: waiting for merge: %w", err)
	}
	if status.Err() != nil {
		return fmt.Errorf("Save: merge failed: %w", status.Err())
	}
	return nil
}

// QueryByMetadata implements entity.Store. The metadata field name is
// interpolated into a JSON path, so it is restricted to identifier
// characters; the value is parameterized.
func (s *Store) QueryByMetadata(ctx context.Context, name, value string, limit int, oldestFirst bool) ([]*entity.Entity, error) {
	if !metaNamePattern.MatchString(name) {
		return nil, fmt.Errorf("QueryByMetadata: invalid metadata field name %q", name)
	}

	direction := "DESC"
	if oldestFirst {
		direction = "ASC"
	}
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE JSON_VALUE(metadata, '$.%s') = @value
		ORDER BY time_created %s
		LIMIT @limit
	`, entityColumns, s.table(entitiesTable), name, direction)

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "value", Value: value},
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryByMetadata: reading query: %w", err)
	}

	var result []*entity.Entity
	for {
		var row EntityRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryByMetadata: iterating: %w", err)
		}
		e, err := entityFromRow(&row)
		if err != nil {
			return nil, fmt.Errorf("QueryByMetadata: %w", err)
		}
		result = append(result, e)
	}
	return result, nil
}

// Add implements entity.Relationships.
func (s *Store) Add(ctx context.Context, fromGUID, role, toGUID string) error {
	if fromGUID == "" || role == "" || toGUID == "" {
		return fmt.Errorf("Add: fromGUID, role and toGUID are required")
	}

	ins := s.client.Dataset(s.dataset).Table(relationshipsTable).Inserter()
	row := &RelationshipRow{
		FromGUID:  fromGUID,
		Role:      role,
		ToGUID:    toGUID,
		CreatedTS: time.Now().UTC(),
	}
	if err := ins.Put(ctx, row); err != nil {
		return fmt.Errorf("Add: inserting relationship: %w", err)
	}
	return nil
}

// Inbound implements entity.Relationships: the entities on the from-side
// of relationships of the given role pointing at toGUID.
func (s *Store) Inbound(ctx context.Context, role, toGUID string, limit int) ([]*entity.Entity, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s r
		JOIN %s e ON e.guid = r.from_guid
		WHERE r.role = @role
		  AND r.to_guid = @to_guid
		ORDER BY r.created_ts ASC
		LIMIT @limit
	`, prefixColumns("e", entityColumns), s.table(relationshipsTable), s.table(entitiesTable))

	q := s.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "role", Value: role},
		{Name: "to_guid", Value: toGUID},
		{Name: "limit", Value: int64(limit)},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Inbound: reading query: %w", err)
	}

	var result []*entity.Entity
	for {
		var row EntityRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Inbound: iterating: %w", err)
		}
		e, err := entityFromRow(&row)
		if err != nil {
			return nil, fmt.Errorf("Inbound: %w", err)
		}
		result = append(result, e)
	}
	return result, nil
}
