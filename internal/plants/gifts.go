package plants

import (
	"errors"
	"strings"
	"time"
)

// Gift statuses. Only a pending gift can change status.
const (
	GiftPending   = "pending"
	GiftAccepted  = "accepted"
	GiftDeclined  = "declined"
	GiftCancelled = "cancelled"
)

// GiftAction is what a user asks to do with a gift.
type GiftAction string

const (
	ActionAccept  GiftAction = "accept"
	ActionDecline GiftAction = "decline"
	ActionCancel  GiftAction = "cancel"
)

var (
	ErrGiftNotPending = errors.New("gift is no longer pending")
	ErrGiftForbidden  = errors.New("gift is not addressed to this user")
	ErrGiftToSelf     = errors.New("a plant can not be gifted to its owner")
)

// PlantGift records the transfer of a plant from a sender to a receiver.
// PlantId becomes nil once the original plant is gone, NewPlantId is set when
// the receiver accepts.
type PlantGift struct {
	Id            int        `json:"id"`
	PlantId       *int       `json:"plant_id"`
	PlantName     string     `json:"plant_name"`
	SenderId      int        `json:"sender_id"`
	SenderName    string     `json:"sender_name"`
	ReceiverEmail string     `json:"receiver_email"`
	ReceiverId    *int       `json:"receiver_id"`
	Token         string     `json:"-"`
	Message       string     `json:"message"`
	Status        string     `json:"status"`
	NewPlantId    *int       `json:"new_plant_id"`
	CreatedAt     time.Time  `json:"created_at"`
	RespondedAt   *time.Time `json:"responded_at"`
}

// GiftTransfer is the outcome of an accepted gift. SenderTasks are the tasks
// of the original plant as they were before the transfer, so that their
// calendar events can be cleaned up.
type GiftTransfer struct {
	Gift        PlantGift
	SenderTasks []PlantTask
}

// IsReceiver reports whether u is the addressee of g.
func (g PlantGift) IsReceiver(u User) bool {
	if g.ReceiverId != nil && *g.ReceiverId == u.Id {
		return true
	}
	return strings.EqualFold(g.ReceiverEmail, u.Email)
}

// CheckGiftTransition tells whether actor may apply action to g. Accept and
// decline are for the receiver, cancel is for the sender, and nothing may
// happen to a gift that is not pending.
func CheckGiftTransition(g PlantGift, actor User, action GiftAction) error {
	switch action {
	case ActionAccept, ActionDecline:
		if !g.IsReceiver(actor) {
			return ErrGiftForbidden
		}
	case ActionCancel:
		if g.SenderId != actor.Id {
			return ErrGiftForbidden
		}
	default:
		return invalid("unknown gift action %q", action)
	}
	if g.Status != GiftPending {
		return ErrGiftNotPending
	}
	return nil
}

// StatusAfter returns the status a pending gift takes after action.
func StatusAfter(action GiftAction) string {
	switch action {
	case ActionAccept:
		return GiftAccepted
	case ActionDecline:
		return GiftDeclined
	case ActionCancel:
		return GiftCancelled
	}
	return GiftPending
}

// ReceivedCopy returns the plant as it is created for the receiver of a
// gift: same attributes, new owner, no identity.
func ReceivedCopy(p Plant, receiverId int) Plant {
	c := p
	c.Id = 0
	c.UserId = receiverId
	c.Tasks = nil
	c.Photos = nil
	c.Notes = nil
	c.Tags = nil
	return c
}
