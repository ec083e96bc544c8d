package handlers

import (
	"context"
	"github.com/google/uuid"
	"github.com/mgmu/greenhouse/internal/mail"
	"github.com/mgmu/greenhouse/internal/messages"
	"github.com/mgmu/greenhouse/internal/plants"
	"net/http"
	"net/url"
	"strings"
)

/* Returns a handler for the "/api/gifts/" URL.
 * On GET or HEAD, sends the gifts sent or received by the user, newest first.
 * On POST, offers a plant of the user to the owner of an email address, who
 * is told by mail, and sends the gift back with a 201 status code.
 */
func (e *Env) Gifts() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := e.DB.GetUser(r.Context(), currentUser(r))
		if err != nil {
			e.fail(w, r, err)
			return
		}
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			list, err := e.DB.GetGifts(r.Context(), user)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			writeJSON(w, r, http.StatusOK, list)
		case http.MethodPost:
			e.sendGift(w, r, user)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead, http.MethodPost)
		}
	}
}

func (e *Env) sendGift(w http.ResponseWriter, r *http.Request, sender plants.User) {
	var req messages.JsonNewGift
	if err := decode(r, &req); err != nil {
		e.fail(w, r, err)
		return
	}
	email, err := plants.SanitizeEmail(req.ReceiverEmail)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	if strings.EqualFold(email, sender.Email) {
		e.fail(w, r, plants.ErrGiftToSelf)
		return
	}
	msg, err := plants.SanitizeGiftMessage(req.Message)
	if err != nil {
		e.fail(w, r, err)
		return
	}
	plantId := req.PlantId
	id, err := e.DB.CreateGift(r.Context(), plants.PlantGift{
		PlantId:       &plantId,
		SenderId:      sender.Id,
		ReceiverEmail: email,
		Token:         uuid.NewString(),
		Message:       msg,
	})
	if err != nil {
		e.fail(w, r, err)
		return
	}
	g, err := e.DB.GetGift(r.Context(), id)
	if err != nil {
		e.fail(w, r, err)
		return
	}

	if e.Mailer != nil {
		invite := mail.GiftInvite{
			To:         g.ReceiverEmail,
			SenderName: sender.Name,
			PlantName:  g.PlantName,
			Message:    g.Message,
			Link:       strings.TrimSuffix(e.BaseURL, "/") + "/gifts?token=" + url.QueryEscape(g.Token),
		}
		e.background("gift invite", sender.Id, func(context.Context) error {
			return e.Mailer.SendGiftInvite(invite)
		})
	}
	writeJSON(w, r, http.StatusCreated, g)
}

// GiftInvite sends the gift of an invitation link to its receiver or its
// sender. Anybody else gets a 404, like for an unknown token.
func (e *Env) GiftInvite() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, http.MethodGet, http.MethodHead)
			return
		}
		user, err := e.DB.GetUser(r.Context(), currentUser(r))
		if err != nil {
			e.fail(w, r, err)
			return
		}
		g, err := e.DB.GetGiftByToken(r.Context(), r.PathValue("token"))
		if err != nil {
			e.fail(w, r, err)
			return
		}
		if !g.IsReceiver(user) && g.SenderId != user.Id {
			e.fail(w, r, plants.ErrGiftForbidden)
			return
		}
		writeJSON(w, r, http.StatusOK, g)
	}
}

/* Returns a handler for the "/api/gifts/{id}/{action}/" URLs.
 * The receiver accepts or declines a pending gift, the sender cancels it. On
 * acceptance the plant moves to the receiver along with its tasks, photos,
 * notes and tags, and the new plant identifier is sent back.
 */
func (e *Env) GiftAction(action plants.GiftAction) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		id, err := pathId(r)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		user, err := e.DB.GetUser(r.Context(), currentUser(r))
		if err != nil {
			e.fail(w, r, err)
			return
		}

		if action == plants.ActionAccept {
			transfer, err := e.DB.AcceptGift(r.Context(), user, id)
			if err != nil {
				e.fail(w, r, err)
				return
			}
			e.deleteEvents(transfer.Gift.SenderId, transfer.SenderTasks)
			if e.Calendar != nil {
				e.background("calendar sync", user.Id, func(ctx context.Context) error {
					return e.Calendar.SyncUser(ctx, user.Id)
				})
			}
			newId := 0
			if transfer.Gift.NewPlantId != nil {
				newId = *transfer.Gift.NewPlantId
			}
			writeJSON(w, r, http.StatusOK, messages.JsonAcceptedGift{Gift: transfer.Gift, PlantId: newId})
			return
		}

		g, err := e.DB.GetGift(r.Context(), id)
		if err != nil {
			e.fail(w, r, err)
			return
		}
		if err := plants.CheckGiftTransition(g, user, action); err != nil {
			e.fail(w, r, err)
			return
		}
		if err := e.DB.SetGiftStatus(r.Context(), id, plants.StatusAfter(action)); err != nil {
			e.fail(w, r, err)
			return
		}
		if g, err = e.DB.GetGift(r.Context(), id); err != nil {
			e.fail(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, g)
	}
}
