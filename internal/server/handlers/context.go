package handlers

import "context"

// contextKey тип для ключей контекста
type contextKey string

// DeviceIDKey ключ для хранения device_id аутентифицированного устройства
const DeviceIDKey contextKey = "device_id"

// WithDeviceID returns a copy of ctx carrying the authenticated device
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, DeviceIDKey, deviceID)
}

// GetDeviceID извлекает device_id из контекста запроса
func GetDeviceID(ctx context.Context) (string, bool) {
	deviceID, ok := ctx.Value(DeviceIDKey).(string)
	return deviceID, ok && deviceID != ""
}
