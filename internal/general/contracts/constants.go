package contracts

// Exchanges
const (
	ExchangeTrackingTopic = "tracking_topic"
)

// Queues
const (
	QueueShipmentStatusUpdates = "shipment_status_updates"
	QueueTrackingCommands      = "tracking_commands"
	QueueTrackingEvents        = "tracking_events"
)

// Routing patterns
const (
	RouteSessionStatusPrefix   = "session.status."   // {status}
	RouteLocationUpdatePrefix  = "location.update."  // {employee_id}
	RouteCompletionPrefix      = "route.completion." // detected|cancelled|confirmed
	RouteShipmentEventPrefix   = "shipment.event."   // pickup|delivery
	RouteTrackingCommandPrefix = "tracking.command." // {type}
)

// Completion stages carried by RouteCompletionMessage.
const (
	CompletionDetected  = "detected"
	CompletionCancelled = "cancelled"
	CompletionConfirmed = "confirmed"
)

// Tracking command types.
const (
	CommandConfirmCompletion = "confirm_completion"
	CommandCancelCompletion  = "cancel_completion"
)

// Live feed message types.
const (
	WSTypeAuth                = "auth"
	WSTypeSubscribe           = "subscribe_tracking"
	WSTypeUnsubscribe         = "unsubscribe_tracking"
	WSTypeActiveSessions      = "active_sessions"
	WSTypeLocationUpdate      = "location_update"
	WSTypeSessionStatus       = "session_status_change"
	WSTypeCompletionDetected  = "route_completion_detected"
	WSTypeCompletionCancelled = "route_completion_cancelled"
	WSTypeSubscriptions       = "subscriptions"
	WSTypeError               = "error"
)
