package domain

// TrackingStatus 是外部定位服务返回的车辆状态
type TrackingStatus string

const (
	TrackingStatusMoving  TrackingStatus = "MOVING"
	TrackingStatusIdle    TrackingStatus = "IDLE"
	TrackingStatusParked  TrackingStatus = "PARKED"
	TrackingStatusOffline TrackingStatus = "OFFLINE"
	TrackingStatusUnknown TrackingStatus = "UNKNOWN"
)
