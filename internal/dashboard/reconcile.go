package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/robodigest/internal/bookmark"
	"github.com/hitoshi/robodigest/internal/model"
)

// Summarize はアイテムを要約し、結果をフィードキャッシュとブックマークの両方に反映する。
//
// 同一idの要約が処理中の場合は要約APIを呼ばずにSUMMARY_IN_PROGRESSを返す。
// 失敗時は通知を積み、どちらの状態も変更しない。
// 処理中の登録はパニックを含むすべての経路で解除する。
func (d *Dashboard) Summarize(ctx context.Context, kind model.Kind, id string) (model.ContentItem, error) {
	var item model.ContentItem
	found, admitted := false, false
	d.commit(ctx, func(s State) State {
		item, found = s.lookup(kind, id)
		if !found {
			return s
		}
		s.Tracker, admitted = s.Tracker.Begin(id)
		return s
	})
	if !found {
		return model.ContentItem{}, fmt.Errorf("summarize %s/%s: %w", kind, id, ErrItemNotFound)
	}
	if !admitted {
		d.deps.Metrics.RecordSummary(SummaryOutcomeBusy)
		return model.ContentItem{}, model.NewSummaryInProgressError(id)
	}
	defer d.commit(ctx, func(s State) State {
		s.Tracker = s.Tracker.End(id)
		return s
	})

	e, err := d.deps.Summarizer.Summarize(ctx, model.SummaryRequest{
		Title: item.Title(),
		Body:  item.Body(),
		Kind:  item.Kind,
	})
	if err == nil && (e == nil || e.TitleJA == "") {
		err = model.ErrMalformedSummary
	}
	if err != nil {
		return model.ContentItem{}, d.summaryFailed(ctx, item, err)
	}

	d.commit(ctx, func(s State) State {
		s.Feed, _ = s.Feed.UpdateItem(kind, id, e)
		if updated, ok := bookmark.ApplyEnrichment(s.Bookmarks, id, e); ok {
			s.Bookmarks = updated
			s.BookmarkRev++
		}
		return s
	})

	d.deps.Metrics.RecordSummary(SummaryOutcomeSuccess)
	d.deps.Logger.Info("要約を反映しました",
		slog.String("client_id", d.scope),
		slog.String("item_id", id),
		slog.String("type", string(kind)),
		slog.String("category", e.Category),
	)
	return item.WithEnrichment(e), nil
}

func (d *Dashboard) summaryFailed(ctx context.Context, item model.ContentItem, cause error) error {
	apiErr := model.NewSummaryFailedError()
	d.commit(ctx, func(s State) State {
		return s.notify(Notification{
			ItemID:  item.ID(),
			Kind:    string(item.Kind),
			Message: apiErr.Message,
			At:      d.deps.now(),
		})
	})

	d.deps.Metrics.RecordSummary(SummaryOutcomeFailure)
	d.deps.Logger.Error("要約の生成に失敗しました",
		slog.String("client_id", d.scope),
		slog.String("item_id", item.ID()),
		slog.String("type", string(item.Kind)),
		slog.String("error", cause.Error()),
	)
	return apiErr
}
