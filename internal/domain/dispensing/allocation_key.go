package dispensing

import (
	"strconv"
	"strings"
)

// AllocationKey indexes the lot store.
// Tracking-record scoped requirements never collide with material scoped ones.
type AllocationKey string

const (
	trackingKeyPrefix  = "insumo-"
	materialKeyPrefix  = "producto-"
	packagingKeyPrefix = "empaque-"
)

// TrackingKey builds the key of a requirement linked to a tracking record
func TrackingKey(trackingRecordID int64) AllocationKey {
	return AllocationKey(trackingKeyPrefix + strconv.FormatInt(trackingRecordID, 10))
}

// MaterialKey builds the key of a requirement without tracking record
func MaterialKey(materialID string) AllocationKey {
	return AllocationKey(materialKeyPrefix + materialID)
}

// PackagingKey builds the key of a packaging material
func PackagingKey(materialID string) AllocationKey {
	return AllocationKey(packagingKeyPrefix + materialID)
}

// ParseAllocationKey validates a key received from a client
func ParseAllocationKey(s string) (AllocationKey, error) {
	k := AllocationKey(s)
	if _, ok := k.TrackingRecord(); ok {
		return k, nil
	}
	if _, ok := k.MaterialID(); ok {
		return k, nil
	}
	return "", ErrInvalidAllocationKey.WithMessage("invalid allocation key: " + s)
}

// TrackingRecord returns the tracking record id encoded in the key
func (k AllocationKey) TrackingRecord() (int64, bool) {
	raw, ok := strings.CutPrefix(string(k), trackingKeyPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// MaterialID returns the material id of material and packaging keys
func (k AllocationKey) MaterialID() (string, bool) {
	for _, prefix := range []string{materialKeyPrefix, packagingKeyPrefix} {
		if id, ok := strings.CutPrefix(string(k), prefix); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// IsPackaging returns true for packaging material keys
func (k AllocationKey) IsPackaging() bool {
	return strings.HasPrefix(string(k), packagingKeyPrefix)
}

func (k AllocationKey) String() string {
	return string(k)
}
