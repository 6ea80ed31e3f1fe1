package accessory

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Category classifies an accessory for the home-automation host.
type Category string

const (
	CategoryFan    Category = "fan"
	CategoryOutlet Category = "outlet"
	CategorySwitch Category = "switch"
	CategoryBulb   Category = "bulb"
)

// Valid reports whether the category is one of the bridged families.
func (c Category) Valid() bool {
	switch c {
	case CategoryFan, CategoryOutlet, CategorySwitch, CategoryBulb:
		return true
	}
	return false
}

// namespace is the fixed UUIDv5 namespace for accessory identifiers.
// Changing it would re-identify every accessory, so it never changes.
var namespace = uuid.MustParse("8f9d2c41-7a35-4e8b-9c16-d0b4e5f6a712")

// UUIDFor derives the accessory identifier from a device composite id.
//
// The derivation is a pure function of the input: the same device
// always maps to the same accessory across polls and process restarts,
// independent of fetch order. Sub-devices produce distinct identifiers
// because their composite ids differ.
func UUIDFor(compositeID string) string {
	return uuid.NewSHA1(namespace, []byte(compositeID)).String()
}

// Record is the persisted representation of one bridged device.
//
// UUID is derived from CompositeID via UUIDFor; Context holds the raw
// device descriptor as seen at the last reconciliation, so the
// accessory can be rebuilt from persistence alone.
type Record struct {
	UUID        string          `json:"uuid"`
	CompositeID string          `json:"composite_id"`
	Name        string          `json:"name"`
	Category    Category        `json:"category"`
	Context     json.RawMessage `json:"context"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// DeepCopy returns an independent copy of the record.
// Used by the registry cache to prevent external mutation.
func (r *Record) DeepCopy() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Context != nil {
		cp.Context = make(json.RawMessage, len(r.Context))
		copy(cp.Context, r.Context)
	}
	return &cp
}
