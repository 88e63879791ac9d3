package service

import (
	"github.com/iliyamo/runly/internal/apperr"
	"github.com/iliyamo/runly/internal/model"
)

// The guard functions decide whether actor may act on a resource that the
// caller has just loaded. They never touch the store and return nil when
// the action is allowed, or a FORBIDDEN (occasionally VALIDATION_ERROR)
// error otherwise. A nil actor is always UNAUTHORIZED.

// RequireIdentity rejects anonymous callers.
func RequireIdentity(actor *model.Identity) error {
	if actor == nil {
		return apperr.Unauthorized("Not signed in.")
	}
	return nil
}

// CanModifyRun allows only the host to edit or delete a run.
func CanModifyRun(actor *model.Identity, run *model.Run) error {
	if err := RequireIdentity(actor); err != nil {
		return err
	}
	if actor.UserID != run.HostUserID {
		return apperr.Forbidden("Only the host can change this run.")
	}
	return nil
}

// RequireAdmin allows admins only.
func RequireAdmin(actor *model.Identity) error {
	if err := RequireIdentity(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return apperr.Forbidden("Admin access required.")
	}
	return nil
}

// CanAccessChat allows run members to read and post messages.
func CanAccessChat(actor *model.Identity, isMember bool) error {
	if err := RequireIdentity(actor); err != nil {
		return err
	}
	if !isMember {
		return apperr.Forbidden("Join the run to use its chat.")
	}
	return nil
}

// CanModifyMessage allows only the author to edit or delete a message.
// Admins get no exception here.
func CanModifyMessage(actor *model.Identity, msg *model.Message) error {
	if err := RequireIdentity(actor); err != nil {
		return err
	}
	if actor.UserID != msg.FromUserID {
		return apperr.Forbidden("Only the author can change this message.")
	}
	return nil
}

// CanRate checks a new rating of run. The host may not rate their own run,
// non-members may not rate at all, and a second rating conflicts.
func CanRate(actor *model.Identity, run *model.Run, isMember, alreadyRated bool) error {
	if err := RequireIdentity(actor); err != nil {
		return err
	}
	if actor.UserID == run.HostUserID {
		return apperr.Validation("You cannot rate yourself.", map[string][]string{
			"runId": {"You cannot rate yourself."},
		})
	}
	if !isMember {
		return apperr.Forbidden("Only participants can rate this run.")
	}
	if alreadyRated {
		return apperr.Conflict("You already rated this run.")
	}
	return nil
}

// CanModifyRating allows the author or an admin.
func CanModifyRating(actor *model.Identity, rating *model.Rating) error {
	if err := RequireIdentity(actor); err != nil {
		return err
	}
	if actor.UserID != rating.FromUserID && !actor.IsAdmin() {
		return apperr.Forbidden("Only the author or an admin can change this rating.")
	}
	return nil
}

// CanDeleteUser allows admins to delete anyone but themselves.
func CanDeleteUser(actor *model.Identity, targetID uint64) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == targetID {
		return apperr.Forbidden("You cannot delete your own account.")
	}
	return nil
}

// MessageRecipient returns the recipient of a chat message: the host, or
// the sender when the sender is the host.
func MessageRecipient(senderID uint64, run *model.Run) uint64 {
	if senderID == run.HostUserID {
		return senderID
	}
	return run.HostUserID
}
