package realtime

// Frame types exchanged over the realtime channel.
const (
	FrameAuthenticate = "authenticate"
	FrameSubscribe    = "subscribe"
	FrameUnsubscribe  = "unsubscribe"

	FrameAuthSuccess = "auth_success"
	FrameNewMessage  = "new_message"
	FrameError       = "error"
)

// ClientFrame is a message from client to hub.
type ClientFrame struct {
	Type       string `json:"type"`
	Credential string `json:"credential,omitempty"`
	TicketID   string `json:"ticketId,omitempty"`
}

// ServerFrame is a message from hub to client. Message carries a
// domain.TicketMessage for new_message frames and a reason string for
// error frames.
type ServerFrame struct {
	Type    string `json:"type"`
	Message any    `json:"message,omitempty"`
}

func authSuccessFrame() ServerFrame {
	return ServerFrame{Type: FrameAuthSuccess}
}

func errorFrame(reason string) ServerFrame {
	return ServerFrame{Type: FrameError, Message: reason}
}
