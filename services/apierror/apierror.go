package apierror

import (
	"fmt"
	"net/http"
)

// StatusCode is a unique identifier for an error. Codes in the range of
// 1000..2000 represent client errors that could be handled by the client,
// codes in the range of 2000..3000 represent server errors.
type StatusCode int

const (
	Unauthenticated            StatusCode = 1000
	NotFound                   StatusCode = 1001
	InvalidContentType         StatusCode = 1002
	InvalidJson                StatusCode = 1003
	PayloadOverflow            StatusCode = 1004
	LoginFailed                StatusCode = 1005
	UsernameAlreadyOccupied    StatusCode = 1006
	InvalidPassword            StatusCode = 1007
	EmptyJson                  StatusCode = 1008
	InvalidUsername            StatusCode = 1009
	InvalidDisplayName         StatusCode = 1010
	FriendshipAlreadyRequested StatusCode = 1011
	AlreadyFriends             StatusCode = 1012
	MissingPrivileges          StatusCode = 1013
	InvalidMaxPlayersCount     StatusCode = 1014
	AlreadyInALobby            StatusCode = 1015
	InvalidUuid                StatusCode = 1016
	InvalidLobbyUuid           StatusCode = 1017
	InvalidFriendUuid          StatusCode = 1018
	GameNotFound               StatusCode = 1019
	InvalidMessage             StatusCode = 1020
	WsNotConnected             StatusCode = 1021
	LobbyFull                  StatusCode = 1022
	InvalidPlayerUuid          StatusCode = 1023
	AlreadyInThisLobby         StatusCode = 1024
	InternalServerError        StatusCode = 2000
	DatabaseError              StatusCode = 2001
	SessionError               StatusCode = 2002
)

// ApiError is the error that is returned by every controller and service.
// It serializes to the wire envelope {"status_code": ..., "message": ...}.
type ApiError struct {
	Code    StatusCode `json:"status_code"`
	Message string     `json:"message"`
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// New creates an ApiError with an explicit message.
func New(code StatusCode, message string) *ApiError {
	return &ApiError{Code: code, Message: message}
}

// Of creates an ApiError with the default message of the code.
func Of(code StatusCode) *ApiError {
	return &ApiError{Code: code, Message: defaultMessage(code)}
}

// HTTPStatus maps the status code partition to the HTTP status that should
// carry the envelope: 400 for client errors, 500 for server errors.
func (e *ApiError) HTTPStatus() int {
	if e.Code >= 2000 {
		return http.StatusInternalServerError
	}
	if e.Code == Unauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusBadRequest
}

func defaultMessage(code StatusCode) string {
	switch code {
	case Unauthenticated:
		return "Unauthenticated"
	case NotFound:
		return "Resource not found"
	case InvalidContentType:
		return "Invalid content type"
	case InvalidJson:
		return "Invalid json"
	case PayloadOverflow:
		return "Payload overflow"
	case LoginFailed:
		return "The login was not successful"
	case UsernameAlreadyOccupied:
		return "Username is already occupied"
	case InvalidPassword:
		return "Invalid password"
	case EmptyJson:
		return "Received an empty json"
	case InvalidUsername:
		return "Invalid username"
	case InvalidDisplayName:
		return "Invalid display name"
	case FriendshipAlreadyRequested:
		return "Friendship was already requested"
	case AlreadyFriends:
		return "You are already friends"
	case MissingPrivileges:
		return "Missing privileges"
	case InvalidMaxPlayersCount:
		return "Invalid max players count"
	case AlreadyInALobby:
		return "You are already in a lobby"
	case InvalidUuid:
		return "Invalid uuid"
	case InvalidLobbyUuid:
		return "Invalid lobby uuid"
	case InvalidFriendUuid:
		return "Invalid friend uuid"
	case GameNotFound:
		return "Game not found"
	case InvalidMessage:
		return "Invalid message"
	case WsNotConnected:
		return "Websocket is not connected"
	case LobbyFull:
		return "The lobby is full"
	case InvalidPlayerUuid:
		return "Invalid player uuid"
	case AlreadyInThisLobby:
		return "You are already in this lobby"
	case DatabaseError:
		return "Database error occurred"
	case SessionError:
		return "Session error occurred"
	default:
		return "Internal server error"
	}
}
