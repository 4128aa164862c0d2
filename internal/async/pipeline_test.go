package async

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/cardscan/constants"
	"github.com/joseph-ayodele/cardscan/internal/core"
	"github.com/joseph-ayodele/cardscan/internal/entity"
	"github.com/joseph-ayodele/cardscan/internal/llm"
	"github.com/joseph-ayodele/cardscan/internal/metrics"
	"github.com/joseph-ayodele/cardscan/internal/reconcile"
	"github.com/joseph-ayodele/cardscan/internal/repository"
)

// Runs the whole pipeline against an in-memory SQLite store.
func TestPipeline_MultiCandidateUnit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := repository.Open(ctx, repository.Config{
		DSN: "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, repository.Migrate(ctx, db, nil))

	view := reconcile.NewView()
	t.Cleanup(view.Close)
	rec := reconcile.New(repository.NewContactRepository(db.Driver, nil), view, nil)

	parser := llm.NewResponseParser(nil)
	ex := llm.ExtractorFunc(func(_ context.Context, img []byte, _ string) ([]entity.Candidate, error) {
		if string(img) == "two" {
			return llm.CandidatesFromReply(parser, "```json\n[{\"full_name\":\"Ada\",\"phone\":\"555-123-4567\"},{\"full_name\":\"Bob\",\"email\":\"BOB@X.IO\"}]\n```"), nil
		}
		return nil, &llm.UpstreamError{Status: 503, Body: "busy"}
	})

	d := newTestDispatcher(t, core.NewProcessor(nil, ex, rec, time.Second), WithMetrics(metrics.New()))
	d.OnTransition(func(tr Transition) { view.Track(tr.Unit) })

	h, err := d.Submit(ctx, Batch{POCName: "Grace", Files: []entity.Upload{
		{ClientID: "ok", Name: "two.png", Data: []byte("two")},
		{ClientID: "bad", Name: "bad.png", Data: []byte("bad")},
	}})
	require.NoError(t, err)
	waitBatch(t, h)

	res := h.Results()
	require.Len(t, res, 2)
	require.Equal(t, constants.StatusDone, res[0].Unit.Status)
	require.Len(t, res[0].Records, 2)
	assert.NotEqual(t, res[0].Records[0].StoreID, res[0].Records[1].StoreID)
	assert.Equal(t, "+15551234567", *res[0].Records[0].Phone)
	assert.Equal(t, "bob@x.io", *res[0].Records[1].Email)
	assert.Equal(t, "two.png (card 1)", *res[0].Records[0].SourceFilename)
	assert.Equal(t, "two.png (card 2)", *res[0].Records[1].SourceFilename)
	assert.Equal(t, "Grace", *res[0].Records[1].POCName)
	assert.Equal(t, constants.StatusFailed, res[1].Unit.Status)

	assert.Equal(t, entity.ViewSummary{Done: 2, Failed: 1}, view.Summary())

	all, err := rec.Reload(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
