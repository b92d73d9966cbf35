package broker

// Server → client events. These names are part of the external wire
// contract; existing widget and dashboard clients switch on them.
const (
	EventChatStarted        = "chat:started"
	EventChatAssigned       = "chat:assigned"
	EventChatMessage        = "chat:message"
	EventChatCustomerTyping = "chat:customer_typing"
	EventChatCSTyping       = "chat:cs_typing"
	EventChatQueuePosition  = "chat:queue_position"
	EventChatTransferred    = "chat:transferred"
	EventChatTransferredIn  = "chat:transferred_in"
	EventChatTransferredOut = "chat:transferred_out"
	EventChatResolved       = "chat:resolved"
	EventChatEnded          = "chat:ended"
	EventChatCustomerLeft   = "chat:customer_left"
	EventChatNewAssigned    = "chat:new_assigned"
	EventQueueUpdate        = "queue:update"
	EventQueueNewChat       = "queue:new_chat"
	EventCSStatusChanged    = "cs:status_changed"
	EventStatsUpdate        = "stats:update"
	EventSystemError        = "system:error"
	EventSystemAnnouncement = "system:announcement"
	EventSessionRestored    = "session:restored"
)

// Client → server events.
const (
	EventCustomerStartChat   = "customer:start_chat"
	EventCustomerSendMessage = "customer:send_message"
	EventCustomerTyping      = "customer:typing"
	EventCustomerEndChat     = "customer:end_chat"
	EventCustomerRating      = "customer:rating"

	EventCSSetStatus    = "cs:set_status"
	EventCSAcceptChat   = "cs:accept_chat"
	EventCSSendMessage  = "cs:send_message"
	EventCSTyping       = "cs:typing"
	EventCSResolveChat  = "cs:resolve_chat"
	EventCSTransferChat = "cs:transfer_chat"

	EventAdminSubscribeStats = "admin:subscribe_stats"
	EventAdminForceAssign    = "admin:force_assign"
	EventAdminBroadcast      = "admin:broadcast"
)
