package models

import (
	"time"
)

// Performer is the deduplicated identity of one performer across sources.
// Table: performers
// CanonicalName is not unique: distinct performers can share a stage name,
// and disambiguation happens through external ids, never by merging rows.
type Performer struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	CanonicalName string  `gorm:"size:255;not null;index:idx_performers_canonical_name" json:"canonical_name"`
	NameKana      *string `gorm:"size:255" json:"name_kana,omitempty"`
	NameRomaji    *string `gorm:"size:255" json:"name_romaji,omitempty"`
	BirthDate     *time.Time `json:"birth_date,omitempty"`
	ProfileURL    *string `gorm:"size:1024" json:"profile_url,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_performers_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Aliases     []PerformerAlias      `gorm:"foreignKey:PerformerID" json:"aliases,omitempty"`
	ExternalIDs []PerformerExternalID `gorm:"foreignKey:PerformerID" json:"external_ids,omitempty"`
	Products    []CanonicalProduct    `gorm:"many2many:product_performers" json:"products,omitempty"`
}

func (Performer) TableName() string { return "performers" }

// PerformerAlias is an alternate stage name attached to a performer. Aliases
// only ever accumulate; discovering one never merges two performer rows.
// Table: performer_aliases
// Unique by (performer_id, alias_name); alias_name alone is indexed for
// lookup but not unique because two performers can share an alias.
type PerformerAlias struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	PerformerID uint    `gorm:"not null;uniqueIndex:uk_performer_aliases_performer_alias" json:"performer_id"`
	AliasName   string  `gorm:"size:255;not null;uniqueIndex:uk_performer_aliases_performer_alias;index:idx_performer_aliases_alias_name" json:"alias_name"`
	SourceASP   *ASPName `gorm:"size:32" json:"source_asp,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Performer *Performer `gorm:"foreignKey:PerformerID" json:"performer,omitempty"`
}

func (PerformerAlias) TableName() string { return "performer_aliases" }

// PerformerExternalID ties a performer to an id in an external system (a
// source site's actress id or a wiki page id).
// Table: performer_external_ids
// Unique by (provider, external_id): an external id resolves to at most one
// performer.
type PerformerExternalID struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	PerformerID uint   `gorm:"not null;index:idx_performer_external_ids_performer_id" json:"performer_id"`
	Provider    string `gorm:"size:64;not null;uniqueIndex:uk_performer_external_ids_provider_id" json:"provider"`
	ExternalID  string `gorm:"size:255;not null;uniqueIndex:uk_performer_external_ids_provider_id" json:"external_id"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`

	// Relations
	Performer *Performer `gorm:"foreignKey:PerformerID" json:"performer,omitempty"`
}

func (PerformerExternalID) TableName() string { return "performer_external_ids" }

// PerformerFilter represents filter criteria for performer queries
type PerformerFilter struct {
	ID            *uint
	CanonicalName *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// PerformerAliasFilter represents filter criteria for alias queries
type PerformerAliasFilter struct {
	ID          *uint
	PerformerID *uint
	AliasName   *string
}

// PerformerExternalIDFilter represents filter criteria for external id queries
type PerformerExternalIDFilter struct {
	ID          *uint
	PerformerID *uint
	Provider    *string
	ExternalID  *string
}
