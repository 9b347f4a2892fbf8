package handler

type ContextKey string

var (
	SessionCtxKey       ContextKey = "session"
	VehicleNumberCtxKey ContextKey = "vehicleNumber"
)
