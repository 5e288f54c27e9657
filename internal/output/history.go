package output

import (
	"context"
	"time"

	"github.com/chriskillpack/imgcap"
	"github.com/google/uuid"
)

const historyBatchSize = 100

// History records a run and its captions in the caption database.
type History struct {
	ctx       context.Context
	db        *imgcap.DB
	describer string
	model     string

	run  *imgcap.Run
	recs []imgcap.CaptionRecord

	now func() time.Time
}

var _ imgcap.Sink = &History{}

// NewHistory returns a sink that writes to db. Writes outlive cancellation
// of ctx so an interrupted run is still recorded.
func NewHistory(ctx context.Context, db *imgcap.DB, describer, model string) *History {
	return &History{
		ctx:       context.WithoutCancel(ctx),
		db:        db,
		describer: describer,
		model:     model,
		now:       time.Now,
	}
}

// RunID returns the id of the recorded run, uuid.Nil before Begin.
func (h *History) RunID() uuid.UUID {
	if h.run == nil {
		return uuid.Nil
	}
	return h.run.Id
}

func (h *History) Begin(total int) error {
	run, err := h.db.CreateRun(h.ctx, h.describer, h.model, total, h.now())
	if err != nil {
		return err
	}
	h.run = run
	h.recs = make([]imgcap.CaptionRecord, 0, total)

	return nil
}

func (h *History) Emit(res imgcap.Result) error {
	h.recs = append(h.recs, imgcap.CaptionRecord{
		Position:    res.Index,
		Path:        res.Path,
		Caption:     res.Caption,
		Failed:      res.Failed(),
		ProcessedAt: h.now(),
	})
	return nil
}

func (h *History) End() error {
	if _, err := h.db.InsertCaptions(h.ctx, h.run.Id, h.recs, historyBatchSize); err != nil {
		return err
	}

	return h.db.FinishRun(h.ctx, h.run.Id, h.now())
}
