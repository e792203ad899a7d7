package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/hypejunction/payments/internal/entity"
)

// EntityRow is the entities table schema. The metadata bag is stored as
// a JSON column; created_date is the partitioning column.
type EntityRow struct {
	GUID string `bigquery:"guid"` // REQUIRED

	Type    string              `bigquery:"type"`    // REQUIRED
	Subtype bigquery.NullString `bigquery:"subtype"` // NULLABLE

	OwnerGUID   bigquery.NullString `bigquery:"owner_guid"`  // NULLABLE
	Name        bigquery.NullString `bigquery:"name"`        // NULLABLE
	Description bigquery.NullString `bigquery:"description"` // NULLABLE

	Metadata bigquery.NullJSON `bigquery:"metadata"` // NULLABLE JSON

	TimeCreated time.Time  `bigquery:"time_created"` // REQUIRED
	CreatedDate civil.Date `bigquery:"created_date"` // REQUIRED, partition column
}

// RelationshipRow is the entity_relationships table schema: one directed
// named link between two entity identifiers.
type RelationshipRow struct {
	FromGUID  string    `bigquery:"from_guid"`
	Role      string    `bigquery:"role"`
	ToGUID    string    `bigquery:"to_guid"`
	CreatedTS time.Time `bigquery:"created_ts"`
}

// rowFromEntity maps an entity to its table row.
func rowFromEntity(e *entity.Entity) (*EntityRow, error) {
	row := &EntityRow{
		GUID:        e.GUID,
		Type:        e.Type,
		Subtype:     nullString(e.Subtype),
		OwnerGUID:   nullString(e.OwnerGUID),
		Name:        nullString(e.Name),
		Description: nullString(e.Description),
		TimeCreated: e.TimeCreated,
		CreatedDate: civil.DateOf(e.TimeCreated),
	}
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("rowFromEntity: encoding metadata: %w", err)
		}
		row.Metadata = bigquery.NullJSON{JSONVal: string(raw), Valid: true}
	}
	return row, nil
}

// entityFromRow maps a table row back to an entity.
func entityFromRow(row *EntityRow) (*entity.Entity, error) {
	e := &entity.Entity{
		GUID:        row.GUID,
		Type:        row.Type,
		Subtype:     row.Subtype.StringVal,
		OwnerGUID:   row.OwnerGUID.StringVal,
		Name:        row.Name.StringVal,
		Description: row.Description.StringVal,
		TimeCreated: row.TimeCreated,
	}
	if row.Metadata.Valid && row.Metadata.JSONVal != "" {
		if err := json.Unmarshal([]byte(row.Metadata.JSONVal), &e.Metadata); err != nil {
			return nil, fmt.Errorf("entityFromRow: decoding metadata for %s: %w", row.GUID, err)
		}
	}
	return e, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
