package db

import (
	"encoding/json"
	"time"
)

// Term maps slang.terms.
type Term struct {
	TermID         string    `gorm:"column:term_id;type:uuid;primaryKey;default:gen_random_uuid()"`
	Text           string    `gorm:"column:text;type:text;not null"`
	NormalizedText string    `gorm:"column:normalized_text;type:text;not null;index"`
	CreatedAt      time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Term) TableName() string { return "slang.terms" }

// TrackerConfig maps slang.tracker_configs. One row per tracked term.
type TrackerConfig struct {
	TermID         string          `gorm:"column:term_id;type:uuid;primaryKey"`
	Sensitivity    string          `gorm:"column:sensitivity;type:text;not null;default:medium"`
	SourcesEnabled json.RawMessage `gorm:"column:sources_enabled;type:jsonb;not null;default:'[]'"`
	ResultCap      *int            `gorm:"column:result_cap;type:integer"`
	LastRunAt      *time.Time      `gorm:"column:last_run_at;type:timestamptz"`
	CreatedAt      time.Time       `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (TrackerConfig) TableName() string { return "slang.tracker_configs" }

// SourceRule maps slang.source_rules. Admin-managed, read-only during runs.
type SourceRule struct {
	Name            string          `gorm:"column:name;type:text;primaryKey"`
	Enabled         bool            `gorm:"column:enabled;type:boolean;not null;default:true"`
	PerRunCap       *int            `gorm:"column:per_run_cap;type:integer"`
	DomainAllowlist json.RawMessage `gorm:"column:domain_allowlist;type:jsonb;not null;default:'[]'"`
	DomainBlocklist json.RawMessage `gorm:"column:domain_blocklist;type:jsonb;not null;default:'[]'"`
	MinScore        int             `gorm:"column:min_score;type:integer;not null;default:0"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (SourceRule) TableName() string { return "slang.source_rules" }

// Sighting maps slang.sightings. (term_id, url) is unique; url holds the
// dedup key and link the address as the source returned it.
type Sighting struct {
	SightingID   int64     `gorm:"column:sighting_id;primaryKey;autoIncrement"`
	SightingUUID string    `gorm:"column:sighting_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	TermID       string    `gorm:"column:term_id;type:uuid;not null"`
	URL          string    `gorm:"column:url;type:text;not null"`
	Link         string    `gorm:"column:link;type:text;not null"`
	Title        string    `gorm:"column:title;type:text;not null;default:''"`
	Snippet      string    `gorm:"column:snippet;type:text;not null;default:''"`
	Source       string    `gorm:"column:source;type:text;not null"`
	MatchType    string    `gorm:"column:match_type;type:text;not null"`
	Score        int       `gorm:"column:score;type:integer;not null"`
	Language     *string   `gorm:"column:language;type:text"`
	FirstSeenAt  time.Time `gorm:"column:first_seen_at;type:timestamptz;not null"`
	LastSeenAt   time.Time `gorm:"column:last_seen_at;type:timestamptz;not null"`
}

func (Sighting) TableName() string { return "slang.sightings" }

// TrackerRun maps slang.tracker_runs.
type TrackerRun struct {
	RunID            int64      `gorm:"column:run_id;primaryKey;autoIncrement"`
	RunUUID          string     `gorm:"column:run_uuid;type:uuid;not null;unique"`
	TermID           string     `gorm:"column:term_id;type:uuid;not null"`
	Status           string     `gorm:"column:status;type:text;not null;default:running"`
	StartedAt        time.Time  `gorm:"column:started_at;type:timestamptz;not null"`
	FinishedAt       *time.Time `gorm:"column:finished_at;type:timestamptz"`
	QueriesGenerated int        `gorm:"column:queries_generated;type:integer;not null;default:0"`
	ResultsFound     int        `gorm:"column:results_found;type:integer;not null;default:0"`
	ResultsProcessed int        `gorm:"column:results_processed;type:integer;not null;default:0"`
	SightingsWritten int        `gorm:"column:sightings_written;type:integer;not null;default:0"`
	MinScore         int        `gorm:"column:min_score;type:integer;not null;default:0"`
	WriteErrors      int        `gorm:"column:write_errors;type:integer;not null;default:0"`
	ErrorMessage     *string    `gorm:"column:error_message;type:text"`
}

func (TrackerRun) TableName() string { return "slang.tracker_runs" }

func autoMigrateModels() []any {
	return []any{
		&Term{},
		&TrackerConfig{},
		&SourceRule{},
		&Sighting{},
		&TrackerRun{},
	}
}
