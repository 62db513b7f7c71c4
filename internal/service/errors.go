package service

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrInviteNotFound       = errors.New("invite link not found")

	ErrInviteInactive   = errors.New("invite link is not active")
	ErrNotGroup         = errors.New("conversation is not a group")
	ErrAlreadyMember    = errors.New("user is already a member of this conversation")
	ErrNotParticipant   = errors.New("user is not an active participant of this conversation")
	ErrNotAdmin         = errors.New("only group admins can perform this action")
	ErrEmailTaken       = errors.New("email already taken")
	ErrInvalidCreds     = errors.New("invalid email or password")
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrPrivateNeedsPair = errors.New("a private conversation needs exactly one other participant")
	ErrContentRequired  = errors.New("content is required for text messages")
	ErrReplyMismatch    = errors.New("reply target belongs to another conversation")
	ErrMarkupInName     = errors.New("names cannot contain markup")
)

// Kind groups service errors by how callers should react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindValidation
	KindUnauthorized
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrUserNotFound, KindNotFound},
	{ErrConversationNotFound, KindNotFound},
	{ErrMessageNotFound, KindNotFound},
	{ErrInviteNotFound, KindNotFound},
	{ErrNotParticipant, KindForbidden},
	{ErrNotAdmin, KindForbidden},
	{ErrAlreadyMember, KindConflict},
	{ErrEmailTaken, KindConflict},
	{ErrInviteInactive, KindValidation},
	{ErrNotGroup, KindValidation},
	{ErrPrivateNeedsPair, KindValidation},
	{ErrContentRequired, KindValidation},
	{ErrReplyMismatch, KindValidation},
	{ErrMarkupInName, KindValidation},
	{ErrInvalidCreds, KindUnauthorized},
	{ErrInvalidToken, KindUnauthorized},
}

// KindOf classifies err. Anything that is not a known service error is
// KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	var verr interface{ HasErrors() bool }
	if errors.As(err, &verr) && verr.HasErrors() {
		return KindValidation
	}
	return KindInternal
}
