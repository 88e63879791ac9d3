package handler

import (
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/samber/lo"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/model"
    "github.com/iliyamo/runly/internal/repository"
    "github.com/iliyamo/runly/internal/service"
)

// ChatHandler serves the per-run message board.
type ChatHandler struct {
    *Deps
}

func NewChatHandler(d *Deps) *ChatHandler { return &ChatHandler{Deps: d} }

type messageReq struct {
    Content string `json:"content" validate:"required,min=1,max=1000"`
}

type messageItem struct {
    MessageID    uint64 `json:"messageId"`
    Content      string `json:"content"`
    SentAtIso    string `json:"sentAtIso"`
    FromUserID   uint64 `json:"fromUserId"`
    FromUsername string `json:"fromUsername"`
}

// memberRun loads :runId and checks that the caller belongs to it.
func (h *ChatHandler) memberRun(c echo.Context, id *model.Identity) (*model.Run, error) {
    runID, err := pathID(c, "runId")
    if err != nil {
        return nil, err
    }
    return h.memberRunByID(c, id, runID)
}

func (h *ChatHandler) memberRunByID(c echo.Context, id *model.Identity, runID uint64) (*model.Run, error) {
    ctx, cancel := reqCtx(c)
    defer cancel()

    run, err := h.Runs.GetByID(ctx, runID)
    if err != nil {
        return nil, storeErr(err, "Run")
    }
    member, err := h.Members.IsMember(ctx, run.ID, id.UserID)
    if err != nil {
        return nil, apperr.Internal(err)
    }
    if err := service.CanAccessChat(id, member); err != nil {
        return nil, err
    }
    return run, nil
}

// List handles GET /api/chat/:runId/messages.
func (h *ChatHandler) List(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    run, err := h.memberRun(c, id)
    if err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    rows, err := h.Messages.ListByRun(ctx, run.ID)
    if err != nil {
        return apperr.Internal(err)
    }
    return ok(c, echo.Map{
        "run": echo.Map{"runId": run.ID, "title": run.Title, "hostUserId": run.HostUserID},
        "messages": lo.Map(rows, func(r repository.MessageRow, _ int) messageItem {
            return messageItem{
                MessageID:    r.Message.ID,
                Content:      r.Message.Content,
                SentAtIso:    isoTime(r.Message.SentAt),
                FromUserID:   r.Message.FromUserID,
                FromUsername: r.FromUsername,
            }
        }),
    })
}

// Post handles POST /api/chat/:runId/messages. The recipient is the host,
// or the sender when the host writes.
func (h *ChatHandler) Post(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    run, err := h.memberRun(c, id)
    if err != nil {
        return err
    }
    var req messageReq
    if err := bindAndValidate(c, &req, func() { req.Content = strings.TrimSpace(req.Content) }); err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    msg := &model.Message{
        RunID:      run.ID,
        FromUserID: id.UserID,
        ToUserID:   service.MessageRecipient(id.UserID, run),
        Content:    req.Content,
        SentAt:     h.now(),
    }
    if err := h.Messages.Create(ctx, msg); err != nil {
        return storeErr(err, "Run")
    }
    return created(c, echo.Map{"message": messageItem{
        MessageID:    msg.ID,
        Content:      msg.Content,
        SentAtIso:    isoTime(msg.SentAt),
        FromUserID:   msg.FromUserID,
        FromUsername: id.Username,
    }})
}

// ownMessage loads :messageId inside the caller's run and checks authorship.
// Both path ids are validated before anything is read.
func (h *ChatHandler) ownMessage(c echo.Context, id *model.Identity) (*model.Message, error) {
    runID, err := pathID(c, "runId")
    if err != nil {
        return nil, err
    }
    msgID, err := pathID(c, "messageId")
    if err != nil {
        return nil, err
    }
    run, err := h.memberRunByID(c, id, runID)
    if err != nil {
        return nil, err
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    msg, err := h.Messages.GetInRun(ctx, run.ID, msgID)
    if err != nil {
        return nil, storeErr(err, "Message")
    }
    if err := service.CanModifyMessage(id, msg); err != nil {
        return nil, err
    }
    return msg, nil
}

// Update handles PATCH /api/chat/:runId/messages/:messageId.
func (h *ChatHandler) Update(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    msg, err := h.ownMessage(c, id)
    if err != nil {
        return err
    }
    var req messageReq
    if err := bindAndValidate(c, &req, func() { req.Content = strings.TrimSpace(req.Content) }); err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    if err := h.Messages.UpdateContent(ctx, msg.ID, req.Content); err != nil {
        return storeErr(err, "Message")
    }
    return ok(c, echo.Map{"message": messageItem{
        MessageID:    msg.ID,
        Content:      req.Content,
        SentAtIso:    isoTime(msg.SentAt),
        FromUserID:   msg.FromUserID,
        FromUsername: id.Username,
    }})
}

// Delete handles DELETE /api/chat/:runId/messages/:messageId.
func (h *ChatHandler) Delete(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    msg, err := h.ownMessage(c, id)
    if err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    if err := h.Messages.Delete(ctx, msg.ID); err != nil {
        return apperr.Internal(err)
    }
    return ok(c, echo.Map{"deleted": true})
}
