package hub

// Push event names delivered over the persistent connection. Every event
// carries enough of the mutated entity's new state for the client to update
// its view without a follow-up fetch.
const (
	EventMemberJoined  = "member_joined"
	EventMemberLeft    = "member_left"
	EventMemberKicked  = "member_kicked"
	EventLobbyClosed   = "lobby_closed"
	EventGameStarted   = "game_started"
	EventChatMessage   = "chat_message"
	EventInvite        = "invite_received"
	EventFriendRequest = "friend_request_received"

	// EventFriendshipChanged tells a party that the other side accepted or
	// dissolved the friendship.
	EventFriendshipChanged = "friendship_changed"

	// EventGameDataChanged announces a new game state version. It carries
	// the new data_id only; clients fetch the blob when they want it.
	EventGameDataChanged = "game_data_changed"
)
