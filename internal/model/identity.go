// Package model defines the persisted persona data types.
package model

import (
	"fmt"
	"strings"
)

// Required identity field keys. Keys are stored lowercase; the on-disk
// IDENTITY.txt format writes them uppercase.
const (
	FieldName         = "name"
	FieldCreator      = "creator"
	FieldRelationship = "relationship"
	FieldMission      = "mission"
	FieldHeritage     = "moral_heritage"
)

// RequiredFields are the keys every identity record must carry, non-empty.
var RequiredFields = []string{
	FieldName,
	FieldCreator,
	FieldRelationship,
	FieldMission,
	FieldHeritage,
}

// IdentityRecord is the plain-layer persona identity: named string fields
// keyed lowercase.
type IdentityRecord struct {
	Fields map[string]string `json:"fields"`
}

// NewIdentityRecord builds a record from the required fields.
func NewIdentityRecord(name, creator, relationship, mission, heritage string) *IdentityRecord {
	return &IdentityRecord{Fields: map[string]string{
		FieldName:         name,
		FieldCreator:      creator,
		FieldRelationship: relationship,
		FieldMission:      mission,
		FieldHeritage:     heritage,
	}}
}

// Get returns a field value by key (case-insensitive).
func (r *IdentityRecord) Get(key string) string {
	return r.Fields[strings.ToLower(key)]
}

// Set stores a field value under a lowercase key.
func (r *IdentityRecord) Set(key, value string) {
	if r.Fields == nil {
		r.Fields = map[string]string{}
	}
	r.Fields[strings.ToLower(key)] = value
}

// Name returns the persona's name field.
func (r *IdentityRecord) Name() string { return r.Get(FieldName) }

// Creator returns the creator field.
func (r *IdentityRecord) Creator() string { return r.Get(FieldCreator) }

// Relationship returns the relationship label field.
func (r *IdentityRecord) Relationship() string { return r.Get(FieldRelationship) }

// Mission returns the mission field.
func (r *IdentityRecord) Mission() string { return r.Get(FieldMission) }

// Heritage returns the moral heritage field.
func (r *IdentityRecord) Heritage() string { return r.Get(FieldHeritage) }

// Validate checks that every required field is present and non-empty.
func (r *IdentityRecord) Validate() error {
	var missing []string
	for _, key := range RequiredFields {
		if strings.TrimSpace(r.Fields[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("identity missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
