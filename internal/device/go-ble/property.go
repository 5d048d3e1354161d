package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blebridge/internal/device"
)

var propertyMap = []struct {
	ble ble.Property
	dev device.Property
}{
	{ble.CharBroadcast, device.PropBroadcast},
	{ble.CharRead, device.PropRead},
	{ble.CharWriteNR, device.PropWriteWithoutResponse},
	{ble.CharWrite, device.PropWrite},
	{ble.CharNotify, device.PropNotify},
	{ble.CharIndicate, device.PropIndicate},
}

// convertProperties maps go-ble property flags onto device.Property bits.
func convertProperties(p ble.Property) device.Property {
	var result device.Property
	for _, m := range propertyMap {
		if p&m.ble != 0 {
			result |= m.dev
		}
	}
	return result
}

// parseUUIDs converts normalized UUID strings into a go-ble discovery filter.
func parseUUIDs(uuids []string) ([]ble.UUID, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	result := make([]ble.UUID, 0, len(uuids))
	for _, u := range uuids {
		parsed, err := ble.Parse(device.NormalizeUUID(u))
		if err != nil {
			return nil, err
		}
		result = append(result, parsed)
	}
	return result, nil
}
