package service

import (
	"context"
	"fmt"

	"github.com/chris44528/lux-aged-cases/internal/models"
)

// Bulk actions.
const (
	BulkSendCommunication = "send_communication"
	BulkResolve           = "resolve"
	BulkAbandon           = "abandon"
)

type BulkRequest struct {
	CaseIDs []int  `json:"case_ids"`
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

type BulkItemResult struct {
	CaseID int    `json:"case_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

type BulkResult struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Results   []BulkItemResult `json:"results"`
}

// BulkAction applies one action to each case id in turn. Best effort:
// a failing id is recorded and the rest still run, and the per-id results
// let callers see exactly which cases were touched.
func (s *Communicator) BulkAction(ctx context.Context, req BulkRequest, user *string) (BulkResult, error) {
	switch req.Action {
	case BulkSendCommunication, BulkResolve, BulkAbandon:
	default:
		return BulkResult{}, fmt.Errorf("unknown bulk action %q", req.Action)
	}

	res := BulkResult{Total: len(req.CaseIDs)}
	for _, id := range req.CaseIDs {
		var err error
		switch req.Action {
		case BulkSendCommunication:
			channel := req.Channel
			if channel == "" {
				channel = models.ChannelAuto
			}
			_, err = s.SendCommunication(ctx, id, channel, user)
		case BulkResolve:
			err = s.Store.ResolveCase(ctx, id, req.Notes, user)
		case BulkAbandon:
			err = s.Store.AbandonCase(ctx, id, req.Notes, user)
		}

		item := BulkItemResult{CaseID: id, OK: err == nil}
		if err != nil {
			item.Error = err.Error()
			res.Failed++
			s.Logger.Warn().Err(err).Int("case_id", id).Str("action", req.Action).Msg("bulk item failed")
		} else {
			res.Succeeded++
		}
		res.Results = append(res.Results, item)
	}
	return res, nil
}
