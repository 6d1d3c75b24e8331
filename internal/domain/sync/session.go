package sync

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"

	"bloodsheltie/internal/domain/record"
)

// Transport канал запросов к приёмнику. Не допускает одновременного использования
// двумя сессиями.
type Transport interface {
	SerialNumber(ctx context.Context) (string, error)
	PageDirectory(ctx context.Context) (Directory, error)
	// ReadPages возвращает страницы диапазона подряд, начиная с FirstPage.
	// При ошибке может вернуть уже прочитанные страницы.
	ReadPages(ctx context.Context, r PageRange) ([][]byte, error)
	Close() error
}

// Opener открывает транспорт по идентификатору устройства
type Opener func(ctx context.Context, id string) (Transport, error)

const DefaultWorkers = 4

// SessionConfig параметры сессии
type SessionConfig struct {
	// Timeout общий бюджет сессии; 0 - без ограничения
	Timeout time.Duration
	// Workers число параллельно декодируемых страниц
	Workers int
}

// Session одна синхронизация с приёмником. Одноразовая.
type Session struct {
	transport Transport
	decoder   *record.Decoder
	log       *slog.Logger
	config    SessionConfig

	used  atomic.Bool
	state atomic.Int32
}

// NewSession создает сессию поверх открытого транспорта
func NewSession(t Transport, dec *record.Decoder, log *slog.Logger, config SessionConfig) *Session {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if dec == nil {
		dec = record.NewDecoder(nil)
	}

	return &Session{
		transport: t,
		decoder:   dec,
		log:       log.With("component", "sync_session"),
		config:    config,
	}
}

// State текущее состояние сессии
func (s *Session) State() State {
	return State(s.state.Load())
}

type fetchedPage struct {
	rng    PageRange
	number uint32
	data   []byte
}

type decodedPage struct {
	rng     PageRange
	page    *record.DecodedPage
	pageErr *record.PageError
}

// Run выполняет синхронизацию от метки tag.
// При ошибке Result тоже возвращается: состояние StateAborted, Tag равен tag,
// уже декодированные записи доступны, кроме случая отмены вызывающим кодом.
func (s *Session) Run(ctx context.Context, tag SyncTag) (*Result, error) {
	if !s.used.CompareAndSwap(false, true) {
		return nil, ErrSessionUsed
	}

	res := &Result{
		SyncData:    SyncData{SerialNumber: tag.SerialNumber},
		ID:          uuid.New(),
		State:       StateIdle,
		Tag:         tag,
		PreviousTag: tag,
		StartedAt:   time.Now(),
	}
	log := s.log.With("session_id", res.ID.String(), "serial", tag.SerialNumber)

	runCtx := ctx
	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	s.transition(log, res, StateRequestingPages)

	dir, err := s.transport.PageDirectory(runCtx)
	if err != nil {
		if ctxErr := s.contextError(ctx, runCtx); ctxErr != nil {
			return s.abort(log, res, ctxErr)
		}
		return s.abort(log, res, &TransportError{Err: err})
	}

	ranges, err := Resolve(dir, tag)
	if err != nil {
		return s.abort(log, res, err)
	}
	res.Ranges = ranges

	fetched, transportErr := s.fetch(runCtx, log, ranges)
	if ctxErr := s.contextError(ctx, runCtx); errors.Is(ctxErr, ErrCancelled) {
		return s.abort(log, res, ctxErr)
	}

	s.transition(log, res, StateDecodingPages)

	// бюджет сессии ограничивает только обмен с приёмником, полученное декодируется всегда
	decodeCtx := ctx
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		decodeCtx = context.WithoutCancel(ctx)
	}
	decoded, err := s.decode(decodeCtx, fetched)
	if err != nil {
		if ctxErr := s.contextError(ctx, runCtx); ctxErr != nil {
			return s.abort(log, res, ctxErr)
		}
		return s.abort(log, res, err)
	}

	s.transition(log, res, StateReconciling)
	s.collect(res, tag, decoded)

	if ctxErr := s.contextError(ctx, runCtx); ctxErr != nil {
		if errors.Is(ctxErr, ErrCancelled) {
			res.Records, res.RecordErrors, res.PageErrors = nil, nil, nil
		}
		return s.abort(log, res, ctxErr)
	}

	var failures []error
	if transportErr != nil {
		failures = append(failures, transportErr)
	}
	for _, pe := range res.PageErrors {
		failures = append(failures, pe)
	}
	if len(failures) > 0 {
		return s.abort(log, res, errors.Join(failures...))
	}

	next := tag
	for _, t := range record.Tracked() {
		next = next.WithType(t, Advance(tag.ForType(t), recordsOfType(res.Records, t)))
	}
	res.FinishedAt = time.Now()
	next.UpdatedAt = res.FinishedAt
	res.Tag = next

	s.transition(log, res, StateCommitted)
	log.Info("sync session committed",
		"records", len(res.Records),
		"corrupt_records", len(res.RecordErrors),
		"duration", res.FinishedAt.Sub(res.StartedAt))

	return res, nil
}

// fetch запрашивает диапазоны последовательно. После первой ошибки транспорта
// запросы прекращаются, уже полученные страницы возвращаются.
func (s *Session) fetch(ctx context.Context, log *slog.Logger, ranges []PageRange) ([]fetchedPage, error) {
	var out []fetchedPage

	for _, r := range ranges {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		pages, err := s.transport.ReadPages(ctx, r)
		for i, p := range pages {
			out = append(out, fetchedPage{rng: r, number: r.FirstPage + uint32(i), data: p})
		}
		if err != nil {
			log.Warn("failed to read pages", "range", r.String(), "received", len(pages), "error", err)
			rng := r
			return out, &TransportError{Range: &rng, Err: err}
		}

		log.Debug("pages received", "range", r.String(), "count", len(pages))
	}

	return out, nil
}

// decode декодирует страницы параллельно. Порядок результата совпадает с порядком fetched.
func (s *Session) decode(ctx context.Context, fetched []fetchedPage) ([]decodedPage, error) {
	out := make([]decodedPage, len(fetched))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Workers)

	for i, fp := range fetched {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			out[i].rng = fp.rng
			page, err := s.decoder.DecodePageAt(fp.data, fp.rng.RecordType, fp.number)
			if err != nil {
				var pe *record.PageError
				if !errors.As(err, &pe) {
					return fmt.Errorf("failed to decode %s page: %w", fp.rng.RecordType, err)
				}
				out[i].pageErr = pe
				return nil
			}
			out[i].page = page
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// collect переносит декодированные страницы в res: только новые записи,
// упорядоченные по (категория, номер записи). Из записей с одним номером
// остаётся та, что выбрал бы Advance.
func (s *Session) collect(res *Result, tag SyncTag, decoded []decodedPage) {
	seen := make(map[record.Type]map[uint32]int)

	for _, dp := range decoded {
		if dp.pageErr != nil {
			res.PageErrors = append(res.PageErrors, dp.pageErr)
			continue
		}
		if dp.page == nil {
			continue
		}

		res.RecordErrors = append(res.RecordErrors, dp.page.RecordErrors...)

		t := dp.rng.RecordType
		if seen[t] == nil {
			seen[t] = make(map[uint32]int)
		}
		last := tag.ForType(t)
		for _, rec := range dp.page.Records {
			n := rec.Generic().RecordNumber
			if !IsNew(rec, last) {
				continue
			}
			if i, dup := seen[t][n]; dup {
				if after(TagOf(rec), TagOf(res.Records[i])) {
					res.Records[i] = rec
				}
				continue
			}
			seen[t][n] = len(res.Records)
			res.Records = append(res.Records, rec)
		}
	}

	slices.SortStableFunc(res.Records, compareRecords)
}

// contextError различает отмену вызывающим кодом и истечение срока.
// Срок, заданный вызывающим кодом, тоже считается таймаутом.
func (s *Session) contextError(parent, run context.Context) error {
	if err := parent.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	if run.Err() != nil {
		return fmt.Errorf("%w after %s", ErrTimeout, s.config.Timeout)
	}
	return nil
}

func (s *Session) abort(log *slog.Logger, res *Result, err error) (*Result, error) {
	res.Tag = res.PreviousTag
	res.FinishedAt = time.Now()
	s.transition(log, res, StateAborted)

	if errors.Is(err, ErrCancelled) {
		log.Warn("sync session cancelled", "error", err)
	} else {
		log.Error("sync session aborted", "records", len(res.Records), "error", err)
	}

	return res, err
}

func (s *Session) transition(log *slog.Logger, res *Result, to State) {
	from := State(s.state.Swap(int32(to)))
	res.State = to
	log.Debug("sync session state", "from", from.String(), "to", to.String())
}

var trackedOrder = func() map[record.Type]int {
	order := make(map[record.Type]int)
	for i, t := range record.Tracked() {
		order[t] = i
	}
	return order
}()

func compareRecords(a, b record.Record) int {
	if c := cmp.Compare(trackedOrder[a.Type()], trackedOrder[b.Type()]); c != 0 {
		return c
	}
	return cmp.Compare(a.Generic().RecordNumber, b.Generic().RecordNumber)
}

func recordsOfType(records []record.Record, t record.Type) []record.Record {
	var out []record.Record
	for _, rec := range records {
		if rec.Type() == t {
			out = append(out, rec)
		}
	}
	return out
}
