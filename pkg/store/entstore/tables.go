package entstore

import (
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	eventsTable    = "journal_events"
	snapshotsTable = "journal_snapshots"
)

var jsonText = map[string]string{dialect.Postgres: "text", dialect.SQLite: "text"}

var (
	eventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "event_id", Type: field.TypeString, Unique: true},
		{Name: "journal_id", Type: field.TypeString},
		{Name: "seq", Type: field.TypeInt64},
		{Name: "type", Type: field.TypeString},
		{Name: "payload", Type: field.TypeString, Nullable: true, SchemaType: jsonText},
		// Unix nanoseconds.
		{Name: "created_at", Type: field.TypeInt64},
	}
	eventsTableDef = &schema.Table{
		Name:       eventsTable,
		Columns:    eventsColumns,
		PrimaryKey: []*schema.Column{eventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "journal_events_journal_seq", Unique: true, Columns: []*schema.Column{eventsColumns[2], eventsColumns[3]}},
		},
	}

	snapshotsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "snapshot_id", Type: field.TypeString, Unique: true},
		{Name: "journal_id", Type: field.TypeString},
		{Name: "upto_seq", Type: field.TypeInt64},
		{Name: "state", Type: field.TypeString, Nullable: true, SchemaType: jsonText},
		{Name: "created_at", Type: field.TypeInt64},
	}
	snapshotsTableDef = &schema.Table{
		Name:       snapshotsTable,
		Columns:    snapshotsColumns,
		PrimaryKey: []*schema.Column{snapshotsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "journal_snapshots_journal_seq", Unique: true, Columns: []*schema.Column{snapshotsColumns[2], snapshotsColumns[3]}},
		},
	}

	tables = []*schema.Table{eventsTableDef, snapshotsTableDef}
)
