package camera

import (
	"context"
	"fmt"
)

// SelectDevice は検出されたデバイスから撮影に最適な1台を選ぶ
//
// 望遠カメラがあれば位置に関係なくそれを選ぶ（近距離での歪みが最も少ない）。
// なければ列挙順の先頭を選ぶ。列挙順はプラットフォームのデバイスカタログが
// 決めるもので、機種ごとに安定している。空の場合はErrNoDeviceFoundを返す。
func SelectDevice(devices []Device) (Device, error) {
	if len(devices) == 0 {
		return nil, ErrNoDeviceFound
	}

	for _, dev := range devices {
		if dev.Info().Kind == KindTelephoto {
			return dev, nil
		}
	}

	return devices[0], nil
}

// FilterDevices は検出条件に一致するデバイスを元の順序のまま返す
func FilterDevices(devices []Device, query DiscoveryQuery) []Device {
	matched := make([]Device, 0, len(devices))
	for _, dev := range devices {
		if query.Matches(dev.Info()) {
			matched = append(matched, dev)
		}
	}
	return matched
}

// DiscoverAndSelect はデバイスを検出して最適な1台を選ぶ
func DiscoverAndSelect(ctx context.Context, discovery Discovery, query DiscoveryQuery) (Device, []Device, error) {
	devices, err := discovery.DiscoverDevices(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("デバイスの検出に失敗: %w", err)
	}

	selected, err := SelectDevice(devices)
	if err != nil {
		return nil, devices, err
	}

	return selected, devices, nil
}
