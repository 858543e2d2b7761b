package supportbot

// Per-call parameter keys written by the advisors and read back by Service.
const (
	paramSentiment       = "sentiment"
	paramTicketUID       = "ticket_uid"
	paramEscalationNote  = "escalation_note"
	paramResponseLength  = "response_length"
	paramResponseText    = "response_text"
	paramSafetyViolation = "safety_violation"
)
